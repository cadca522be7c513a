package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common routing errors. The structured error types below wrap these
// sentinels, so callers can branch with errors.Is while still receiving
// the full diagnostic detail.
var (
	// ErrInitialization is returned when a rules document cannot be turned
	// into an activated datastore.
	ErrInitialization = errors.New("rules datastore initialization failed")

	// ErrDuplicateTarget is returned when a structurally identical target
	// config is submitted twice.
	ErrDuplicateTarget = errors.New("duplicate target config")

	// ErrConfigConflict is returned when a target collides with a different
	// target on a unique attribute.
	ErrConfigConflict = errors.New("conflicting target config")

	// ErrUnsupportedSourceType is returned when a rules source names a kind
	// this build cannot load.
	ErrUnsupportedSourceType = errors.New("unsupported rules source type")

	// ErrNotActive is returned when a match is requested before an activated
	// datastore is available.
	ErrNotActive = errors.New("rules datastore is not active")

	// ErrInputData is returned when an inbound message carries malformed
	// addressing data.
	ErrInputData = errors.New("invalid inbound message data")

	// ErrMatchNotFound is returned when a well-formed message matches no
	// target. It is a routing outcome, not a fault.
	ErrMatchNotFound = errors.New("no matching target found")

	// ErrNotImplemented is returned when a rule demands a filter criterion
	// that has no evaluator in this version.
	ErrNotImplemented = errors.New("match criterion not implemented")
)

// InitializationError reports everything wrong with a rules document in a
// single load attempt. Missing attributes, invalid values and per-rule
// failures are accumulated rather than reported one at a time.
type InitializationError struct {
	Source     string              // document origin, usually a file path
	Target     string              // target being parsed, empty for document-level problems
	Missing    []string            // required attributes absent from the document or target
	Problems   []string            // attributes present but invalid
	RuleErrors map[string][]string // failures per rule, keyed by match_priority
}

func (e *InitializationError) Error() string {
	var b strings.Builder
	b.WriteString("unable to initialize rules datastore")
	if e.Source != "" {
		fmt.Fprintf(&b, " from %q", e.Source)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, ", target %q", e.Target)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing required attribute(s): %s", strings.Join(e.Missing, ", "))
	}
	if len(e.Problems) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Problems, "; "))
	}
	if len(e.RuleErrors) > 0 {
		keys := make([]string, 0, len(e.RuleErrors))
		for key := range e.RuleErrors {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		b.WriteString(": rule(s) failed validation:")
		for _, key := range keys {
			fmt.Fprintf(&b, " [match_priority %s: %s]", key, strings.Join(e.RuleErrors[key], "; "))
		}
	}
	return b.String()
}

func (e *InitializationError) Unwrap() error { return ErrInitialization }

// DuplicateTargetError reports a target config that already exists in the
// datastore with identical data.
type DuplicateTargetError struct {
	TargetName string
}

func (e *DuplicateTargetError) Error() string {
	return fmt.Sprintf("duplicate entry for target %q found in source data", e.TargetName)
}

func (e *DuplicateTargetError) Unwrap() error { return ErrDuplicateTarget }

// ConfigConflictError reports a target whose name or priority is already
// taken by a different target. Conflict names the colliding attribute.
type ConfigConflictError struct {
	TargetName string
	Conflict   string // "target_name" or "target_priority"
}

func (e *ConfigConflictError) Error() string {
	return fmt.Sprintf("conflicting entry for target %q: %s already in use, each must be unique", e.TargetName, e.Conflict)
}

func (e *ConfigConflictError) Unwrap() error { return ErrConfigConflict }

// UnsupportedSourceTypeError reports a rules source kind that cannot be
// loaded by this build.
type UnsupportedSourceTypeError struct {
	Type SourceType
}

func (e *UnsupportedSourceTypeError) Error() string {
	return fmt.Sprintf("unsupported rules source type %q, must be one of: %s",
		string(e.Type), strings.Join(supportedSourceTypeNames(), ", "))
}

func (e *UnsupportedSourceTypeError) Unwrap() error { return ErrUnsupportedSourceType }

// InputDataError reports malformed addressing data on a single inbound
// message. It never reflects on the datastore or later messages.
type InputDataError struct {
	Field string
	Value string
}

func (e *InputDataError) Error() string {
	return fmt.Sprintf("invalid inbound message data: %s %q", e.Field, e.Value)
}

func (e *InputDataError) Unwrap() error { return ErrInputData }

// MatchNotFoundError reports that a well-formed message matched no target.
// Trace holds the full evaluation log for troubleshooting.
type MatchNotFoundError struct {
	Trace []string
}

func (e *MatchNotFoundError) Error() string {
	return "no matching target found for inbound message"
}

func (e *MatchNotFoundError) Unwrap() error { return ErrMatchNotFound }

// NotImplementedError reports a rule whose pattern declares a criterion
// with no evaluator. The match aborts rather than guessing at semantics.
type NotImplementedError struct {
	Criterion     string
	TargetName    string
	MatchPriority float64
	Trace         []string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("match criterion %q on target %q rule %s is not implemented",
		e.Criterion, e.TargetName, formatPriority(e.MatchPriority))
}

func (e *NotImplementedError) Unwrap() error { return ErrNotImplemented }
