// Package database provides SQLite connectivity for the ET-Bus
// coordinator daemon.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations embedded into the binary
//   - Lifecycle and health checks
//
// SQLite is a good fit here: the hub is a single writer persisting a
// small device table and a bounded state history, and the whole
// deployment is one process on one host.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/etbus.db", WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
