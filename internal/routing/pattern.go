package routing

import (
	"fmt"
	"net"
	"regexp"
)

// MatchPattern is the conjunctive filter of a routing rule: every present
// field must pass for the rule to pass. The three text fields hold regular
// expression sources evaluated as case-insensitive substring searches.
// SenderIPWhitelist holds CIDR network literals. AttachmentIncluded and
// the body size bounds are part of the document schema but have no
// evaluator yet; a rule supplying them fails evaluation with
// ErrNotImplemented instead of silently passing.
type MatchPattern struct {
	SenderDomain       string   `json:"sender_domain,omitempty"`       // matched against the sender address domain
	SenderName         string   `json:"sender_name,omitempty"`         // matched against the sender address local part
	RecipientName      string   `json:"recipient_name,omitempty"`      // matched against each recipient local part
	AttachmentIncluded *bool    `json:"attachment_included,omitempty"` // schema only, no evaluator
	BodySizeMinimum    *int     `json:"body_size_minimum,omitempty"`   // schema only, no evaluator
	BodySizeMaximum    *int     `json:"body_size_maximum,omitempty"`   // schema only, no evaluator
	SenderIPWhitelist  []string `json:"sender_ip_whitelist,omitempty"` // sender IP must fall inside one network

	senderDomainRe  *regexp.Regexp
	senderNameRe    *regexp.Regexp
	recipientNameRe *regexp.Regexp
	ipNetworks      []*net.IPNet
}

// NewMatchPattern compiles the regex and CIDR sources of p into an
// evaluable pattern. Semantic constraints, such as requiring at least one
// text criterion, are enforced by the loader rather than here.
func NewMatchPattern(p MatchPattern) (MatchPattern, error) {
	var err error
	if p.senderDomainRe, err = compileSearchPattern(p.SenderDomain); err != nil {
		return MatchPattern{}, fmt.Errorf("sender_domain: %w", err)
	}
	if p.senderNameRe, err = compileSearchPattern(p.SenderName); err != nil {
		return MatchPattern{}, fmt.Errorf("sender_name: %w", err)
	}
	if p.recipientNameRe, err = compileSearchPattern(p.RecipientName); err != nil {
		return MatchPattern{}, fmt.Errorf("recipient_name: %w", err)
	}
	p.ipNetworks = nil
	for _, literal := range p.SenderIPWhitelist {
		_, network, err := net.ParseCIDR(literal)
		if err != nil {
			return MatchPattern{}, fmt.Errorf("sender_ip_whitelist: invalid CIDR network %q: %w", literal, err)
		}
		p.ipNetworks = append(p.ipNetworks, network)
	}
	return p, nil
}

// compileSearchPattern compiles src for case-insensitive substring search.
// An empty source means the field is absent and compiles to nil.
func compileSearchPattern(src string) (*regexp.Regexp, error) {
	if src == "" {
		return nil, nil
	}
	return regexp.Compile("(?i)" + src)
}

// HasTextCriterion reports whether at least one of the sender domain,
// sender name or recipient name filters is present.
func (p MatchPattern) HasTextCriterion() bool {
	return p.SenderDomain != "" || p.SenderName != "" || p.RecipientName != ""
}

// unimplementedCriterion returns the first schema field present on the
// pattern that has no evaluator, or "" when the pattern is fully
// evaluable.
func (p MatchPattern) unimplementedCriterion() string {
	switch {
	case p.AttachmentIncluded != nil:
		return "attachment_included"
	case p.BodySizeMinimum != nil:
		return "body_size_minimum"
	case p.BodySizeMaximum != nil:
		return "body_size_maximum"
	}
	return ""
}

// Equal compares patterns over their full declared field tuple. Compiled
// state is derived from the declared fields and does not participate.
func (p MatchPattern) Equal(other MatchPattern) bool {
	if p.SenderDomain != other.SenderDomain ||
		p.SenderName != other.SenderName ||
		p.RecipientName != other.RecipientName {
		return false
	}
	if !equalBoolPtr(p.AttachmentIncluded, other.AttachmentIncluded) ||
		!equalIntPtr(p.BodySizeMinimum, other.BodySizeMinimum) ||
		!equalIntPtr(p.BodySizeMaximum, other.BodySizeMaximum) {
		return false
	}
	if len(p.SenderIPWhitelist) != len(other.SenderIPWhitelist) {
		return false
	}
	for i := range p.SenderIPWhitelist {
		if p.SenderIPWhitelist[i] != other.SenderIPWhitelist[i] {
			return false
		}
	}
	return true
}
