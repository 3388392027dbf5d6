// Package harness runs scenario tests of table operations.
//
// A scenario applies SQL schema scripts to a fresh SQLite database, runs a
// sequence of manager operations and checks their outcomes, the final table
// contents and the recorded trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema:
//	  - schema.sql              # relative to the scenario file
//	lang: en                    # optional
//	tables: { book: Book }      # optional class settings
//	setup:
//	  - op: create
//	    table: author
//	    values: { name: Karel Capek }
//	flow:
//	  - op: get
//	    table: book
//	    id: 1
//	    expect:
//	      result: { title: Krakatit }
//	  - op: get
//	    table: book
//	    id: 99
//	    expect:
//	      error: NOT_FOUND
//	assertions:
//	  - type: final_state
//	    table: book
//	    where: { id: 1 }
//	    expect: { year: 1924 }
//
// # Operations
//
//   - create, update: Manager.Create / Manager.Update with values
//   - get, delete: Manager.Get / Manager.Delete with id
//   - find, count: Manager.FindBy with where, order and limit
//
// # Assertion Types
//
//   - final_state: exactly one row matches where and contains expect
//   - row_count: the number of rows matching where equals count
//   - trace_count: op (optionally on table) appears exactly count times
//
// Step numbering in traces is deterministic, so traces can be compared with
// golden files (see RunWithGolden).
package harness
