// Package writer persists the latest price per instrument to PostgreSQL.
//
// PriceWriter accumulates ticks into batches and upserts them into the
// latest_prices table on a flush interval. Rows carry the exchange event
// time, and the upsert refuses to move a row backwards: a tick older than
// what the table already holds is a no-op.
package writer
