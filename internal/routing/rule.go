package routing

// Rule pairs a match pattern with its evaluation priority inside one
// target. Rules run in ascending MatchPriority order; equal priorities
// within a target are rejected at load time so ordering never has to
// break a tie.
type Rule struct {
	MatchPriority float64      `json:"match_priority"`
	Pattern       MatchPattern `json:"match_pattern"`
}

// Less orders rules ascending by match priority.
func (r Rule) Less(other Rule) bool {
	return r.MatchPriority < other.MatchPriority
}

// Equal compares rules structurally.
func (r Rule) Equal(other Rule) bool {
	return r.MatchPriority == other.MatchPriority && r.Pattern.Equal(other.Pattern)
}
