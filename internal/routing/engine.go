package routing

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"
)

// MatchResult is one matched target with its destinations in delivery
// order.
type MatchResult struct {
	TargetName   string              `json:"matched_target_name"`
	Destinations []DestinationConfig `json:"destinations"`
}

// MatchResultCollection carries every matched target in evaluation order
// plus the human-readable evaluation trace that led there.
type MatchResultCollection struct {
	Results []MatchResult `json:"matched_target_results"`
	Trace   []string      `json:"matched_info_log"`
}

// Engine evaluates inbound messages against the current rules datastore.
// The snapshot reference swaps atomically on reload, so any number of
// Match calls can run concurrently with a swap; a match in flight keeps
// the snapshot it started with.
type Engine struct {
	current atomic.Pointer[RulesDatastore]
}

// NewEngine creates an engine serving ds. A nil ds is allowed; matches
// fail with ErrNotActive until a datastore is swapped in.
func NewEngine(ds *RulesDatastore) *Engine {
	e := &Engine{}
	if ds != nil {
		e.current.Store(ds)
	}
	return e
}

// Current returns the datastore snapshot serving new match requests, or
// nil when none has been installed yet.
func (e *Engine) Current() *RulesDatastore {
	return e.current.Load()
}

// Swap replaces the serving snapshot. The previous snapshot stays valid
// for matches already running against it.
func (e *Engine) Swap(ds *RulesDatastore) {
	e.current.Store(ds)
}

// Match evaluates one inbound message against the active datastore.
// Targets are tried in ascending priority order and within each target
// the rules in ascending match priority order; the first passing rule
// claims the target and evaluation moves on to the next target, so a
// message can fan out to several targets. Sender and recipient addresses
// are checked up front, the sender IP only when a whitelist rule is
// reached. Zero matched targets is reported as MatchNotFoundError.
func (e *Engine) Match(recipients []string, sender string, senderIP string) (*MatchResultCollection, error) {
	ds := e.current.Load()
	if !ds.Active() {
		return nil, ErrNotActive
	}

	senderName, senderDomain, err := SplitAddress(sender)
	if err != nil {
		return nil, &InputDataError{Field: "sender address", Value: sender}
	}

	recipientLocals := make([]string, len(recipients))
	for i, recipient := range recipients {
		local, _, err := SplitAddress(recipient)
		if err != nil {
			return nil, &InputDataError{Field: "recipient address", Value: recipient}
		}
		recipientLocals[i] = local
	}

	eval := &evaluation{
		senderName:      senderName,
		senderDomain:    senderDomain,
		senderIP:        senderIP,
		recipients:      recipients,
		recipientLocals: recipientLocals,
	}

	var results []MatchResult
	for _, target := range ds.targets {
		matched, err := eval.matchTarget(target)
		if err != nil {
			return nil, err
		}
		if matched {
			results = append(results, MatchResult{
				TargetName:   target.Name,
				Destinations: cloneDestinations(target.Destinations),
			})
		}
	}

	if len(results) == 0 {
		return nil, &MatchNotFoundError{Trace: eval.trace}
	}
	return &MatchResultCollection{Results: results, Trace: eval.trace}, nil
}

// evaluation is the per-request matching state: the split message fields,
// the lazily parsed sender IP and the growing trace.
type evaluation struct {
	senderName      string
	senderDomain    string
	senderIP        string
	recipients      []string
	recipientLocals []string

	parsedIP net.IP
	ipParsed bool

	trace []string
}

func (ev *evaluation) tracef(format string, args ...any) {
	ev.trace = append(ev.trace, fmt.Sprintf(format, args...))
}

// matchTarget runs the target's rules in ascending priority order and
// reports whether one of them passed. Evaluation of the remaining rules
// stops at the first passing one; the caller always continues with the
// next target.
func (ev *evaluation) matchTarget(target TargetConfig) (bool, error) {
	ev.tracef("evaluating target %q (priority %s) with %d rule(s)",
		target.Name, formatPriority(target.Priority), len(target.Rules))
	for _, rule := range target.Rules {
		passed, err := ev.matchRule(target.Name, rule)
		if err != nil {
			return false, err
		}
		if passed {
			ev.tracef("target %q matched by rule %s", target.Name, formatPriority(rule.MatchPriority))
			return true, nil
		}
	}
	ev.tracef("target %q: no rule matched", target.Name)
	return false, nil
}

// matchRule applies every present pattern field and stops at the first
// failing one. Every field check uses the same conjunctive short-circuit,
// so absent fields cost nothing and a failed check skips the rest of the
// rule.
func (ev *evaluation) matchRule(targetName string, rule Rule) (bool, error) {
	pattern := rule.Pattern
	priority := formatPriority(rule.MatchPriority)

	if criterion := pattern.unimplementedCriterion(); criterion != "" {
		ev.tracef("target %q rule %s: criterion %q has no evaluator", targetName, priority, criterion)
		return false, &NotImplementedError{
			Criterion:     criterion,
			TargetName:    targetName,
			MatchPriority: rule.MatchPriority,
			Trace:         ev.trace,
		}
	}

	if pattern.SenderDomain != "" {
		if !pattern.senderDomainRe.MatchString(ev.senderDomain) {
			ev.tracef("target %q rule %s: sender_domain %q did not match %q",
				targetName, priority, pattern.SenderDomain, ev.senderDomain)
			return false, nil
		}
		ev.tracef("target %q rule %s: sender_domain %q matched %q",
			targetName, priority, pattern.SenderDomain, ev.senderDomain)
	}

	if pattern.SenderName != "" {
		if !pattern.senderNameRe.MatchString(ev.senderName) {
			ev.tracef("target %q rule %s: sender_name %q did not match %q",
				targetName, priority, pattern.SenderName, ev.senderName)
			return false, nil
		}
		ev.tracef("target %q rule %s: sender_name %q matched %q",
			targetName, priority, pattern.SenderName, ev.senderName)
	}

	if pattern.RecipientName != "" {
		matched := ""
		for i, local := range ev.recipientLocals {
			if pattern.recipientNameRe.MatchString(local) {
				matched = ev.recipients[i]
				break
			}
		}
		if matched == "" {
			ev.tracef("target %q rule %s: recipient_name %q matched none of %d recipient(s)",
				targetName, priority, pattern.RecipientName, len(ev.recipientLocals))
			return false, nil
		}
		ev.tracef("target %q rule %s: recipient_name %q matched recipient %q",
			targetName, priority, pattern.RecipientName, matched)
	}

	if len(pattern.ipNetworks) > 0 {
		ip, err := ev.senderNetIP()
		if err != nil {
			ev.tracef("target %q rule %s: sender IP %q is not a usable address", targetName, priority, ev.senderIP)
			return false, err
		}
		network := containingNetwork(pattern.ipNetworks, ip)
		if network == nil {
			ev.tracef("target %q rule %s: sender IP %s outside whitelist %s",
				targetName, priority, ip, strings.Join(pattern.SenderIPWhitelist, ","))
			return false, nil
		}
		ev.tracef("target %q rule %s: sender IP %s inside whitelist network %s",
			targetName, priority, ip, network)
	}

	return true, nil
}

// senderNetIP parses the sender IP on first use and caches the outcome
// for the rest of the request.
func (ev *evaluation) senderNetIP() (net.IP, error) {
	if !ev.ipParsed {
		ev.ipParsed = true
		ev.parsedIP = net.ParseIP(ev.senderIP)
	}
	if ev.parsedIP == nil {
		return nil, &InputDataError{Field: "sender IP", Value: ev.senderIP}
	}
	return ev.parsedIP, nil
}
