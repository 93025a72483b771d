// Package kvstore provides the SQLite-backed document store underneath the
// lifeplan repositories.
//
// The store holds the collections declared in internal/schema. Every
// document is addressed by its primary key and can be reached through the
// collection's named secondary indexes:
//   - Get / Put / PutAt / Delete: point access by primary key
//   - ListAll / ListByIndex / GetByIndex: ordered scans with an optional key
//     range, direction and bound
//   - WithTx: one transaction spanning a declared set of collections
//
// # Transactions
//
// WithTx is the unit of atomicity. The callback receives a *Tx exposing the
// same primitives scoped to that transaction; returning an error (or
// panicking) rolls everything back. A Tx refuses to touch collections it did
// not declare (ErrOutOfScope), refuses writes in ReadOnly mode (ErrReadOnly)
// and refuses use after it has finished (ErrTxDone).
//
// # Cursors
//
// Scans are lazy: Scan and ScanIndex return a Cursor (iter.Seq2) over the
// underlying rows. Take bounds a cursor and stops reading as soon as the
// bound is reached; the List* helpers materialise a cursor with Collect.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//   - one open connection: transactions from concurrent goroutines serialise
//
// An unavailable store (nil, closed, or never opened) fails every entry
// point with ErrUnavailable. This is an environment precondition and is
// never retried.
package kvstore
