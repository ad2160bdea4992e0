// Package harness executes ledger scripts: YAML files that register
// entities, drive a ledger through runs, sessions and log writes, and then
// assert on the trace of operations and on the resulting tables.
//
// # Script Format
//
//	name: end_to_end
//	description: "One user, one session, one log entry"
//	setup:
//	  - register: stream
//	    name: s1
//	  - register: user
//	    name: alice
//	    payload: { age: 30 }
//	steps:
//	  - op: start_run
//	    args: { experimenter: tester }
//	  - op: log
//	    args: { stream: s1 }
//	    expect_error: NO_ACTIVE_SESSION
//	  - op: enter
//	    args: { prototype: Exp }
//	assertions:
//	  - type: trace_count
//	    op: log
//	    count: 1
//	  - type: final_state
//	    table: session
//	    where: { id: 1 }
//	    expect: { complete: 1 }
//
// # Operations
//
//   - start_run {experimenter, config}, end_run
//   - register {kind, name, type, description, payload, force}
//   - add_user {name, role, payload}, remove_user {name}, clear_users
//   - enter {prototype, config, test_run, notes}, leave {incomplete, invalid}
//   - log {stream, data, tag, invalid, at}
//   - attach_blob {log, data, type}, attach_arrays {log, arrays, type}
//   - set_stage {name}, commit, advance {by}
//
// A step that names expect_error must fail with that error code; any other
// failure stops the script.
//
// # Assertion Types
//
//   - trace_count: an operation succeeded exactly N times
//   - trace_order: operations succeeded in the given order
//   - final_state: exactly one row of a table matches, with the expected values
//   - row_count: a table holds N rows matching where
//
// # Deterministic Execution
//
// Scripts run against an in-memory database with a frozen clock that only
// moves through advance steps, and with fixed pseudonyms, so the snapshot of
// the final ledger is byte-identical across runs and can be compared against
// a golden file.
package harness
