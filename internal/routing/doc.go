// Package routing implements the rule datastore and matching engine for
// inbound email routing. It decides, per message, which routing targets
// want the message and which destinations each target delivers to.
//
// # Overview
//
// The package is built around three pieces:
//
//   - A loader that turns a JSON rules document into an activated,
//     immutable RulesDatastore
//   - A builder that enforces the uniqueness guarantees while the
//     datastore is assembled
//   - An engine that evaluates inbound messages against the current
//     datastore snapshot and produces matched targets plus a trace
//
// # Architecture
//
// ## Core Components
//
// ### Loader
// LoadFromSource and LoadDatastore validate a rules document and build the
// datastore in one pass:
//   - Loading is all-or-nothing; a single invalid rule fails the whole
//     document
//   - Failures are accumulated, so one load attempt reports every missing
//     attribute and every failing rule check, keyed by match_priority
//   - Regex sources and CIDR whitelists are compiled at load time, never
//     during matching
//
// ### DatastoreBuilder and RulesDatastore
// The builder accepts target configs one at a time and rejects duplicate
// names, duplicate priorities and structurally identical re-submissions.
// Build freezes the collection into a RulesDatastore: immutable, sorted by
// target priority, safe for unlimited concurrent readers.
//
// ### Engine
// The engine holds the current datastore behind an atomic pointer and
// evaluates messages against it:
//   - Targets are tried in ascending priority order
//   - Within a target, rules run in ascending match priority order and
//     the first passing rule claims the target
//   - Evaluation then moves on to the next target, so one message can
//     fan out to several targets
//   - Every comparison appends a line to a human-readable trace returned
//     with the result
//
// # Document Format
//
// A rules document names its revision and carries one entry per target:
//
//	{
//	  "name": "inbound-rules",
//	  "revision_number": 42,
//	  "revision_datetime": "2024-05-01T12:00:00+00:00",
//	  "instance_type": "blue",
//	  "router_rules": [
//	    {
//	      "support": {
//	        "target_priority": 1,
//	        "destination": "DIRECT_PROCESSING",
//	        "match_rules": [
//	          {
//	            "match_priority": 1,
//	            "recipient_name": "help|support",
//	            "sender_ip_whitelist": "10.0.0.0/8, 192.168.1.0/24"
//	          }
//	        ]
//	      }
//	    }
//	  ]
//	}
//
// The three text criteria (sender_domain, sender_name, recipient_name)
// are regular expression sources evaluated as case-insensitive substring
// searches. attachment_included and the body size bounds are accepted by
// the schema but have no evaluator; a rule carrying them fails matching
// with ErrNotImplemented rather than silently passing.
//
// # Usage
//
//	instance, _ := routing.InstanceTypeFromString("blue")
//	ds, err := routing.LoadFromSource(routing.SourceConfig{
//	    Type: routing.SourceJSONFile,
//	    URI:  "rules.json",
//	}, instance)
//	if err != nil {
//	    // the error names every offending attribute and rule
//	}
//
//	engine := routing.NewEngine(ds)
//	result, err := engine.Match(
//	    []string{"support@example.com"},
//	    "alice@customer.org",
//	    "10.1.2.3",
//	)
//
// # Error Handling
//
// Outcomes are distinguished by sentinel errors usable with errors.Is:
//
//   - ErrNotActive: no activated datastore is serving yet
//   - ErrInputData: the message carried a malformed address or sender IP
//   - ErrMatchNotFound: a well-formed message matched nothing; this is a
//     routing outcome for the caller to absorb, not a fault
//   - ErrNotImplemented: a rule demanded a criterion with no evaluator
//   - ErrInitialization, ErrDuplicateTarget, ErrConfigConflict: loading
//     failed; the structured error types carry the accumulated detail
//
// # Thread Safety
//
// A RulesDatastore is immutable after Build and requires no locking. The
// engine swaps snapshots atomically; matches running during a swap finish
// on the snapshot they started with. The builder itself is single-use and
// not safe for concurrent writers.
package routing
