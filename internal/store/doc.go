// Package store provides durable namespaced key/value storage for
// assistant-admin.
//
// # Architecture
//
// The KV interface is deliberately small: Get, Set, Delete, Ping and Close
// over string values addressed by (namespace, key). The web UI uses the
// per-browser cookie id as the namespace, the CLI uses "cli".
//
// Implementations:
//
//   - SQLiteStore: default, single file via modernc.org/sqlite (no cgo)
//   - RedisStore: shared storage for several instances behind a balancer
//   - MockStore: in-memory maps for tests
//
// # Schema
//
//	kv_entries(namespace, key, value, updated_at)  PRIMARY KEY (namespace, key)
//
// # Usage
//
//	kv, err := store.NewSQLiteStore("/var/lib/assistant-admin/sessions.db")
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	err = kv.Set(ctx, browserID, "adminSession", payload)
//	value, err := kv.Get(ctx, browserID, "adminSession")
//	if errors.Is(err, store.ErrNotFound) {
//	    // not logged in
//	}
package store
