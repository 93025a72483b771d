// Package schema declares the persisted collections of a lifeplan database.
//
// Each collection is one SQLite table holding JSON documents keyed by the
// document's "id" field:
//
//	CREATE TABLE "plans" (id TEXT PRIMARY KEY NOT NULL, doc TEXT NOT NULL)
//
// Secondary indexes are expression indexes over json_extract(doc, '$.field').
// A compound index lists several key-path fields; natural-key invariants
// (plan+versionNo, version+scenarioKey, plan+ym, version+housingType) are
// UNIQUE expression indexes. Documents that lack an indexed field yield NULL
// and are therefore never in conflict, mirroring a key-path index that skips
// documents without the key.
//
// # Upgrades
//
// Ensure creates missing tables and indexes. A live index that exists but is
// non-unique while the registry declares it unique is schema drift: Ensure
// fails with *DriftError rather than running with a silently weakened
// invariant.
package schema
