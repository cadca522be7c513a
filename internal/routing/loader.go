package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"email-router/internal/common/logging"
	"email-router/internal/common/validation"
)

// Top-level attributes every rules document must carry.
var requiredDocumentAttributes = []string{
	"name",
	"revision_number",
	"revision_datetime",
	"instance_type",
	"router_rules",
}

// Elements every target entry must carry.
var requiredTargetElements = []string{
	"match_rules",
	"destination",
	"target_priority",
}

// The document format carries a single destination per target while the
// model supports several; the one destination gets this fixed sequence.
const documentDestinationSequence = 10

// LoadFromSource reads a rules document from cfg and builds an activated
// datastore for instance. Source kinds other than JSONFILE are rejected
// before any reading or parsing happens.
func LoadFromSource(cfg SourceConfig, instance InstanceType) (*RulesDatastore, error) {
	if cfg.Type != SourceJSONFile {
		return nil, &UnsupportedSourceTypeError{Type: cfg.Type}
	}
	if cfg.URI == "" {
		return nil, &InitializationError{Problems: []string{"a JSONFILE source must name a readable file, got an empty URI"}}
	}

	raw, err := os.ReadFile(cfg.URI)
	if err != nil {
		return nil, &InitializationError{Source: cfg.URI, Problems: []string{fmt.Sprintf("reading rules document: %v", err)}}
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &InitializationError{Source: cfg.URI, Problems: []string{fmt.Sprintf("decoding rules document: %v", err)}}
	}

	ds, err := LoadDatastore(doc, instance)
	if err != nil {
		var initErr *InitializationError
		if errors.As(err, &initErr) && initErr.Source == "" {
			initErr.Source = cfg.URI
		}
		return nil, err
	}

	logging.Info("rules datastore activated",
		logging.String("source", cfg.URI),
		logging.String("name", ds.Name()),
		logging.Int("revision", ds.RevisionNumber()),
		logging.String("instance", ds.InstanceType().Name),
		logging.Int("targets", ds.TargetCount()))
	return ds, nil
}

// LoadDatastore validates doc and builds an activated datastore for
// instance. Loading is all-or-nothing: a validation failure anywhere in
// the document means no datastore is produced, and failures are
// accumulated so one attempt reports everything wrong at its level.
func LoadDatastore(doc map[string]any, instance InstanceType) (*RulesDatastore, error) {
	if missing := missingAttributes(doc, requiredDocumentAttributes); len(missing) > 0 {
		return nil, &InitializationError{Missing: missing}
	}

	var problems []string

	name, nameOK := doc["name"].(string)
	if !nameOK || !validation.Passes(name, "min=3") {
		problems = append(problems, `"name" must be a string of at least 3 characters`)
	}

	revisionNumber, revisionOK := intAttribute(doc["revision_number"])
	if !revisionOK || !validation.Passes(revisionNumber, "gte=0") {
		problems = append(problems, fmt.Sprintf(`"revision_number" must be a non-negative integer, got %v`, doc["revision_number"]))
	}

	revisionTime, err := parseRevisionTime(doc["revision_datetime"])
	if err != nil {
		problems = append(problems, fmt.Sprintf(`"revision_datetime": %v`, err))
	}

	docInstance, err := documentInstanceType(doc["instance_type"], instance)
	if err != nil {
		problems = append(problems, fmt.Sprintf(`"instance_type": %v`, err))
	}

	entries, entriesOK := doc["router_rules"].([]any)
	if !entriesOK {
		problems = append(problems, `"router_rules" must be a list of target entries`)
	} else if len(entries) == 0 {
		problems = append(problems, `"router_rules" contains no target entries, nothing to route to`)
	}

	if len(problems) > 0 {
		return nil, &InitializationError{Problems: problems}
	}

	builder := NewDatastoreBuilder(name, revisionNumber, revisionTime, docInstance)

	for i, entry := range entries {
		entryMap, ok := entry.(map[string]any)
		if !ok || len(entryMap) != 1 {
			return nil, &InitializationError{Problems: []string{
				fmt.Sprintf("router_rules entry %d must be an object with exactly one target name key", i+1)}}
		}
		for targetName, body := range entryMap {
			target, err := parseTarget(targetName, body)
			if err != nil {
				return nil, err
			}
			if err := builder.AddTarget(target); err != nil {
				return nil, fmt.Errorf("adding target %q: %w", targetName, err)
			}
			logging.Debug("target config added",
				logging.String("target", target.Name),
				logging.Float64("priority", target.Priority),
				logging.Int("rules", len(target.Rules)))
		}
	}

	return builder.Build()
}

// parseTarget validates one router_rules entry and builds its target
// config. Rule-level failures are accumulated across every rule of the
// target; element-level failures end the parse for the whole document.
func parseTarget(name string, raw any) (TargetConfig, error) {
	body, ok := raw.(map[string]any)
	if !ok {
		return TargetConfig{}, &InitializationError{Target: name, Problems: []string{"target entry must be an object"}}
	}

	if missing := missingAttributes(body, requiredTargetElements); len(missing) > 0 {
		return TargetConfig{}, &InitializationError{Target: name, Missing: missing}
	}

	priority, priorityOK := numberAttribute(body["target_priority"])
	if !priorityOK || !validation.Passes(priority, "gt=0") {
		return TargetConfig{}, &InitializationError{Target: name, Problems: []string{
			fmt.Sprintf("target_priority must be a positive number, got %v", body["target_priority"])}}
	}

	rules, err := parseRules(name, body["match_rules"])
	if err != nil {
		return TargetConfig{}, err
	}

	destination, err := parseDestination(name, body)
	if err != nil {
		return TargetConfig{}, err
	}

	target, err := NewTargetConfig(name, priority, rules, []DestinationConfig{destination})
	if err != nil {
		return TargetConfig{}, &InitializationError{Target: name, Problems: []string{err.Error()}}
	}
	return target, nil
}

// parseRules validates every rule of a target, accumulating all failing
// checks per rule instead of stopping at the first. The accumulated report
// is keyed by match_priority, so a rule without a usable priority ends the
// parse immediately with its positional index instead.
func parseRules(targetName string, raw any) ([]Rule, error) {
	entries, ok := raw.([]any)
	if !ok {
		return nil, &InitializationError{Target: targetName, Problems: []string{"match_rules must be a list of rule objects"}}
	}
	if len(entries) == 0 {
		return nil, &InitializationError{Target: targetName, Problems: []string{"match_rules contains no rules"}}
	}

	ruleErrors := make(map[string][]string)
	seen := make(map[float64]bool)
	rules := make([]Rule, 0, len(entries))

	for i, entry := range entries {
		ruleMap, ok := entry.(map[string]any)
		if !ok {
			return nil, &InitializationError{Target: targetName, Problems: []string{
				fmt.Sprintf("match_rules entry %d must be an object", i+1)}}
		}

		rawPriority, present := ruleMap["match_priority"]
		if !present {
			return nil, &InitializationError{Target: targetName, Problems: []string{
				fmt.Sprintf(`"match_priority" not found in rule %d`, i+1)}}
		}
		priority, priorityOK := numberAttribute(rawPriority)
		if !priorityOK {
			return nil, &InitializationError{Target: targetName, Problems: []string{
				fmt.Sprintf(`"match_priority" in rule %d must be a number, got %v`, i+1, rawPriority)}}
		}

		key := formatPriority(priority)
		col := validation.NewCollector()

		col.Checkf(!seen[priority], "duplicate match_priority %s, rule priorities must be unique within a target", key)
		seen[priority] = true

		pattern := MatchPattern{}
		var textOK [3]bool
		pattern.SenderDomain, textOK[0] = textField(ruleMap, "sender_domain", col)
		pattern.SenderName, textOK[1] = textField(ruleMap, "sender_name", col)
		pattern.RecipientName, textOK[2] = textField(ruleMap, "recipient_name", col)

		if textOK[0] && textOK[1] && textOK[2] {
			col.Check(pattern.HasTextCriterion(),
				"at least one of sender_domain, sender_name or recipient_name is required")
		}

		pattern.senderDomainRe = compileTextField(col, "sender_domain", pattern.SenderDomain)
		pattern.senderNameRe = compileTextField(col, "sender_name", pattern.SenderName)
		pattern.recipientNameRe = compileTextField(col, "recipient_name", pattern.RecipientName)

		pattern.AttachmentIncluded = boolField(ruleMap, "attachment_included", col)
		pattern.BodySizeMinimum = sizeField(ruleMap, "body_size_minimum", col)
		pattern.BodySizeMaximum = sizeField(ruleMap, "body_size_maximum", col)
		pattern.SenderIPWhitelist, pattern.ipNetworks = whitelistField(ruleMap, col)

		if col.HasErrors() {
			ruleErrors[key] = append(ruleErrors[key], col.Errors()...)
			continue
		}

		rules = append(rules, Rule{MatchPriority: priority, Pattern: pattern})
	}

	if len(ruleErrors) > 0 {
		return nil, &InitializationError{Target: targetName, RuleErrors: ruleErrors}
	}
	return rules, nil
}

// parseDestination validates the single destination of a target entry.
func parseDestination(targetName string, body map[string]any) (DestinationConfig, error) {
	kindName, ok := body["destination"].(string)
	if !ok || kindName == "" {
		return DestinationConfig{}, &InitializationError{Target: targetName, Problems: []string{
			`"destination" must be a non-empty string`}}
	}
	kind, err := DestinationTypeFromString(kindName)
	if err != nil {
		return DestinationConfig{}, &InitializationError{Target: targetName, Problems: []string{err.Error()}}
	}

	uri := ""
	if rawURI, present := body["destination_uri"]; present {
		uri, ok = rawURI.(string)
		if !ok {
			return DestinationConfig{}, &InitializationError{Target: targetName, Problems: []string{
				`"destination_uri" must be a string when present`}}
		}
	}

	return DestinationConfig{Sequence: documentDestinationSequence, Type: kind, URI: uri}, nil
}

// textField returns the named optional rule field, treating an empty
// string as absent. A present non-string value is recorded on col and
// reported as not usable.
func textField(ruleMap map[string]any, field string, col *validation.Collector) (string, bool) {
	raw, present := ruleMap[field]
	if !present {
		return "", true
	}
	value, ok := raw.(string)
	if !ok {
		col.Checkf(false, "%s must be a string pattern, got %T", field, raw)
		return "", false
	}
	return value, true
}

// compileTextField compiles src for substring search, recording a failure
// on col when the regular expression source does not compile.
func compileTextField(col *validation.Collector, field, src string) *regexp.Regexp {
	re, err := compileSearchPattern(src)
	if err != nil {
		col.Checkf(false, "%s: invalid pattern %q: %v", field, src, err)
		return nil
	}
	return re
}

// boolField returns the named optional boolean field. An empty string is
// treated as absent, every other non-boolean value is recorded on col.
func boolField(ruleMap map[string]any, field string, col *validation.Collector) *bool {
	raw, present := ruleMap[field]
	if !present {
		return nil
	}
	switch value := raw.(type) {
	case bool:
		return &value
	case string:
		if value == "" {
			return nil
		}
	}
	col.Checkf(false, "%s must be a boolean when present, got %v", field, raw)
	return nil
}

// sizeField returns the named optional body size bound. An empty string is
// treated as absent; anything else must be a non-negative integer.
func sizeField(ruleMap map[string]any, field string, col *validation.Collector) *int {
	raw, present := ruleMap[field]
	if !present {
		return nil
	}
	if value, ok := raw.(string); ok && value == "" {
		return nil
	}
	size, ok := intAttribute(raw)
	if !ok || !validation.Passes(size, "gte=0") {
		col.Checkf(false, "%s must be a non-negative integer when present, got %v", field, raw)
		return nil
	}
	return &size
}

// whitelistField splits and parses the optional comma separated CIDR
// whitelist. Unusable entries are recorded on col and skipped; a present
// whitelist that yields no usable network is itself a failure.
func whitelistField(ruleMap map[string]any, col *validation.Collector) ([]string, []*net.IPNet) {
	raw, present := ruleMap["sender_ip_whitelist"]
	if !present {
		return nil, nil
	}
	value, ok := raw.(string)
	if !ok {
		col.Check(false, "sender_ip_whitelist must be a string of comma separated CIDR networks")
		return nil, nil
	}
	if value == "" {
		return nil, nil
	}

	var literals []string
	var networks []*net.IPNet
	for _, part := range strings.Split(value, ",") {
		literal := strings.TrimSpace(part)
		if literal == "" {
			col.Check(false, "sender_ip_whitelist contains an empty entry")
			continue
		}
		_, network, err := net.ParseCIDR(literal)
		if err != nil {
			col.Checkf(false, "sender_ip_whitelist: %q is not a CIDR network", literal)
			continue
		}
		literals = append(literals, literal)
		networks = append(networks, network)
	}
	col.Check(len(networks) > 0, "sender_ip_whitelist yielded no usable networks")
	return literals, networks
}

// intAttribute coerces a decoded JSON value to an int, rejecting
// fractional numbers and every non-numeric type including numeric
// strings.
func intAttribute(raw any) (int, bool) {
	switch value := raw.(type) {
	case float64:
		if value != math.Trunc(value) {
			return 0, false
		}
		return int(value), true
	case int:
		return value, true
	}
	return 0, false
}

// numberAttribute coerces a decoded JSON value to a float64. Numeric
// strings are accepted, matching how priority values have historically
// been written in rules documents.
func numberAttribute(raw any) (float64, bool) {
	switch value := raw.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case string:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

// documentInstanceType resolves and checks the instance_type attribute.
// The document must be authored for the instance this process runs as.
func documentInstanceType(raw any, processInstance InstanceType) (InstanceType, error) {
	value, ok := raw.(string)
	if !ok {
		return InstanceType{}, fmt.Errorf("must be a string naming a supported instance, got %T", raw)
	}
	docInstance, err := InstanceTypeFromString(value)
	if err != nil {
		return InstanceType{}, err
	}
	if docInstance != processInstance {
		return InstanceType{}, fmt.Errorf("document is authored for instance %q, this process runs as %q",
			docInstance.Name, processInstance.Name)
	}
	return docInstance, nil
}

// Timestamp layouts carrying an explicit UTC offset.
var offsetTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
}

// Naive timestamp layouts without any offset information.
var naiveTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseRevisionTime parses a revision timestamp. A literal carrying an
// explicit UTC offset converts to UTC directly; a naive literal is
// interpreted in the process local timezone and then converted to UTC.
func parseRevisionTime(raw any) (time.Time, error) {
	value, ok := raw.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp must be a string, got %T", raw)
	}
	for _, layout := range offsetTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	for _, layout := range naiveTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp %q", value)
}
