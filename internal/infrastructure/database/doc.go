// Package database manages the SQLite connection for Luma Core.
//
// It provides:
//   - Connection setup with WAL mode, foreign keys, and busy timeout
//   - Embedded-filesystem schema migrations (versioned up/down SQL files)
//   - Health checks and lifecycle management
//
// The database is the single source of truth for all domain entities;
// every component serialises access through it rather than holding its
// own copy of device state.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
