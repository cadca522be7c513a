package routing

import (
	"fmt"
	"sort"
)

// TargetConfig groups the rules and destinations of one named routing
// target. Targets evaluate in ascending Priority order across the
// datastore; Name and Priority are each unique per datastore.
type TargetConfig struct {
	Name         string              `json:"target_name"`
	Priority     float64             `json:"target_priority"`
	Rules        []Rule              `json:"rules"`
	Destinations []DestinationConfig `json:"destinations"`
}

// NewTargetConfig builds a target config with its rules sorted ascending
// by match priority and its destinations in delivery order. Both slices
// are copied. Duplicate rule priorities are rejected here even though the
// loader checks them first, so a directly constructed target holds the
// same guarantees as a loaded one.
func NewTargetConfig(name string, priority float64, rules []Rule, destinations []DestinationConfig) (TargetConfig, error) {
	if name == "" {
		return TargetConfig{}, fmt.Errorf("target name must not be empty")
	}
	if priority <= 0 {
		return TargetConfig{}, fmt.Errorf("target %q: target_priority must be a positive number, got %s",
			name, formatPriority(priority))
	}
	if len(rules) == 0 {
		return TargetConfig{}, fmt.Errorf("target %q: at least one rule is required", name)
	}
	if len(destinations) == 0 {
		return TargetConfig{}, fmt.Errorf("target %q: at least one destination is required", name)
	}

	sortedRules := make([]Rule, len(rules))
	copy(sortedRules, rules)
	sort.Slice(sortedRules, func(i, j int) bool { return sortedRules[i].Less(sortedRules[j]) })
	for i := 1; i < len(sortedRules); i++ {
		if sortedRules[i].MatchPriority == sortedRules[i-1].MatchPriority {
			return TargetConfig{}, fmt.Errorf("target %q: duplicate match_priority %s, rule priorities must be unique within a target",
				name, formatPriority(sortedRules[i].MatchPriority))
		}
	}

	sortedDestinations := make([]DestinationConfig, len(destinations))
	copy(sortedDestinations, destinations)
	sort.Slice(sortedDestinations, func(i, j int) bool { return sortedDestinations[i].Less(sortedDestinations[j]) })

	return TargetConfig{
		Name:         name,
		Priority:     priority,
		Rules:        sortedRules,
		Destinations: sortedDestinations,
	}, nil
}

// Equal compares targets structurally over name, priority, rules and
// destinations.
func (t TargetConfig) Equal(other TargetConfig) bool {
	if t.Name != other.Name || t.Priority != other.Priority {
		return false
	}
	if len(t.Rules) != len(other.Rules) || len(t.Destinations) != len(other.Destinations) {
		return false
	}
	for i := range t.Rules {
		if !t.Rules[i].Equal(other.Rules[i]) {
			return false
		}
	}
	for i := range t.Destinations {
		if t.Destinations[i] != other.Destinations[i] {
			return false
		}
	}
	return true
}
