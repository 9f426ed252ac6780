// Package ledger keeps a durable history of cache lifecycle events in a local
// SQLite database, so operators can answer "when was this artifact built and
// how big was it" after the logs rotate away.
package ledger
