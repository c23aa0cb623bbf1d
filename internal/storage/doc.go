// Package storage provides the Badger-backed pool store.
//
// Each origin is stored under its own key (pool/<origin>) holding the same
// per-origin record list the snapshot file uses. Values that fail to decode
// are deleted on load. A background loop runs value log GC and refreshes
// size gauges.
//
// The file snapshot in package snapshot is the default backend; Badger is
// selected with storage.backend: badger.
package storage
