// Package memory provides the in-memory credential container for sesspool.
//
// Each origin owns a List: a bounded sequence of credentials kept
// newest-first by creation time. Insertion places a credential at its
// sorted position (binary search) and trims the oldest entries past
// capacity, so the list never needs a full re-sort.
//
// Thread Safety:
//
// Store operations are safe for concurrent use. Callers that need a
// mutation and its persistence to be atomic hold their own lock around
// both (see service.Pool).
package memory
