// Package registry resolves human-readable names to stable entity ids.
//
// Every named thing the ledger refers to (session prototypes, users, streams,
// blob types and session paths) lives in one catalog partitioned by
// store.MetaType. Within a partition a name maps to exactly one id for the
// lifetime of the database: registration creates the entity once, later
// registrations fail unless they force an in-place update, and the id never
// changes.
//
// Stream and path ids are cached in memory for the life of a Registry. Entity
// ids are append-only and immutable, so the caches are never invalidated.
//
// Names are compared after Unicode NFC normalization, so composed and
// decomposed spellings of the same name resolve to the same entity.
package registry
