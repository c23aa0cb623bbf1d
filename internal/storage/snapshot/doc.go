// Package snapshot persists the credential pool to a single file.
//
// The file is a JSON document mapping origin key to its credentials,
// newest-first:
//
//	{"co.uk": [{"accessToken": "...", "expiration": 1700000600000, "created": 1700000000000}]}
//
// Writes go to a temporary file that is fsynced and renamed over the
// target, so readers never observe a partial document. When a passphrase
// is configured the document is sealed inside an envelope:
//
//	{"version": 1, "cipher": "aes-gcm", "salt": "<b64>", "data": "<b64 nonce||ciphertext>"}
//
// The key is derived with Argon2id from the passphrase and the envelope's
// salt, so the same passphrase decrypts files written by earlier runs.
//
// The snapshot is a cache, not a source of truth. A file that cannot be
// read, decoded or decrypted is deleted and the store loads empty.
package snapshot
