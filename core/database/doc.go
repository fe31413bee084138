// Package database handles the snapshot database connection.
//
// It provides a wrapper around GORM to properly configure MySQL connections
// based on the application's configuration. The connection is optional: the
// ticketing feature disables itself gracefully when none is available.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
