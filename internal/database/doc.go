// Package database provides the PostgreSQL connection pool for the
// latest-price table.
package database
