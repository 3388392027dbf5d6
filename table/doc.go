// Package table is a table-gateway layer over a store.
//
// A Manager is the per-table entry point. It hands out Selections, which
// materialize rows as Entities. Which Class wraps a row is decided per row:
//
//	selection row class  >  Settings.Tables[table]  >  DefaultClass
//
// Entities keep the fetched row plus an in-memory overlay of values set by the
// caller. Overlay values shadow row values and are never written back. Keys
// ending in "_" are language variants: with the language "cs", "title_" reads
// the column "cs_title".
//
// Related rows are reached through GroupedSelections. The first fetch of a
// grouped selection loads the related rows of every entity its referencing
// selection has materialized, in one query.
package table
