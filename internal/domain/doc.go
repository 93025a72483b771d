// Package domain defines the persisted lifeplan entities and their value
// types.
//
// Every entity is stored as one JSON document in the collection of the same
// name (see internal/schema). JSON field names are the document field names
// the secondary indexes extract, so renaming a json tag is a schema change.
//
// Money is integer yen (int64). Rates are decimal fractions (0.03 = 3%)
// encoded as JSON strings. Timestamps and year-months encode as fixed-width
// strings so that index order equals chronological order.
package domain
