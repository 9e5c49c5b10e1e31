// Package database provides the SQLite store behind the bridge's state
// history log.
//
// It manages:
//   - The connection, with WAL mode and a busy timeout
//   - Versioned, forward-only schema migrations read from an fs.FS
//   - File permissions (0600) and lifecycle
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
