// Package cmap provides a string-keyed sharded map for per-client state
// on hot request paths.
//
// Each shard has its own mutex, so lookups for different keys rarely
// contend. Values are created on first use and swept by predicate:
//
//	m := cmap.New[*visitor](16)
//	v := m.GetOrCreate(ip, newVisitor)
//	m.DeleteFunc(func(_ string, v *visitor) bool { return v.idle() })
package cmap
