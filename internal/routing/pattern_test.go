package routing

import (
	"testing"
)

func TestNewMatchPattern(t *testing.T) {
	tests := []struct {
		name      string
		pattern   MatchPattern
		wantError bool
	}{
		{
			name:    "single text criterion",
			pattern: MatchPattern{RecipientName: "help|support"},
		},
		{
			name: "all fields",
			pattern: MatchPattern{
				SenderDomain:      `example\.com`,
				SenderName:        "alice",
				RecipientName:     "sales",
				SenderIPWhitelist: []string{"10.0.0.0/8", "192.168.1.0/24"},
			},
		},
		{
			name:      "invalid sender domain regex",
			pattern:   MatchPattern{SenderDomain: "[unclosed"},
			wantError: true,
		},
		{
			name:      "invalid recipient regex",
			pattern:   MatchPattern{RecipientName: "(?P<broken"},
			wantError: true,
		},
		{
			name:      "bare ip is not cidr",
			pattern:   MatchPattern{SenderName: "a", SenderIPWhitelist: []string{"10.0.0.1"}},
			wantError: true,
		},
		{
			name:      "garbage cidr",
			pattern:   MatchPattern{SenderName: "a", SenderIPWhitelist: []string{"not-a-network/8"}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := NewMatchPattern(tt.pattern)
			if (err != nil) != tt.wantError {
				t.Fatalf("NewMatchPattern() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError {
				return
			}
			if tt.pattern.RecipientName != "" && compiled.recipientNameRe == nil {
				t.Error("recipient pattern should be compiled")
			}
			if len(tt.pattern.SenderIPWhitelist) != len(compiled.ipNetworks) {
				t.Errorf("compiled %d networks, want %d", len(compiled.ipNetworks), len(tt.pattern.SenderIPWhitelist))
			}
		})
	}
}

func TestMatchPattern_HasTextCriterion(t *testing.T) {
	tests := []struct {
		name    string
		pattern MatchPattern
		want    bool
	}{
		{
			name:    "sender domain only",
			pattern: MatchPattern{SenderDomain: "example"},
			want:    true,
		},
		{
			name:    "recipient only",
			pattern: MatchPattern{RecipientName: "help"},
			want:    true,
		},
		{
			name:    "whitelist only",
			pattern: MatchPattern{SenderIPWhitelist: []string{"10.0.0.0/8"}},
			want:    false,
		},
		{
			name:    "empty pattern",
			pattern: MatchPattern{},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pattern.HasTextCriterion(); got != tt.want {
				t.Errorf("HasTextCriterion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchPattern_Equal(t *testing.T) {
	truthy := true
	falsy := false
	size := 1024

	base := MatchPattern{
		SenderDomain:      "example",
		RecipientName:     "help",
		SenderIPWhitelist: []string{"10.0.0.0/8"},
	}

	tests := []struct {
		name  string
		other MatchPattern
		want  bool
	}{
		{
			name: "identical",
			other: MatchPattern{
				SenderDomain:      "example",
				RecipientName:     "help",
				SenderIPWhitelist: []string{"10.0.0.0/8"},
			},
			want: true,
		},
		{
			name: "different text field",
			other: MatchPattern{
				SenderDomain:      "example",
				RecipientName:     "support",
				SenderIPWhitelist: []string{"10.0.0.0/8"},
			},
			want: false,
		},
		{
			name: "different whitelist",
			other: MatchPattern{
				SenderDomain:      "example",
				RecipientName:     "help",
				SenderIPWhitelist: []string{"10.0.0.0/16"},
			},
			want: false,
		},
		{
			name: "extra attachment flag",
			other: MatchPattern{
				SenderDomain:       "example",
				RecipientName:      "help",
				SenderIPWhitelist:  []string{"10.0.0.0/8"},
				AttachmentIncluded: &truthy,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}

	withBounds := MatchPattern{SenderName: "a", AttachmentIncluded: &truthy, BodySizeMinimum: &size}
	sameBounds := MatchPattern{SenderName: "a", AttachmentIncluded: &truthy, BodySizeMinimum: &size}
	if !withBounds.Equal(sameBounds) {
		t.Error("patterns with equal pointer fields should be equal")
	}
	differentFlag := MatchPattern{SenderName: "a", AttachmentIncluded: &falsy, BodySizeMinimum: &size}
	if withBounds.Equal(differentFlag) {
		t.Error("patterns with different attachment flags should not be equal")
	}
}

func TestSplitAddress(t *testing.T) {
	tests := []struct {
		name       string
		address    string
		wantLocal  string
		wantDomain string
		wantError  bool
	}{
		{
			name:       "plain address",
			address:    "alice@example.com",
			wantLocal:  "alice",
			wantDomain: "example.com",
		},
		{
			name:       "address with tag",
			address:    "alice+reports@example.com",
			wantLocal:  "alice+reports",
			wantDomain: "example.com",
		},
		{
			name:      "no at sign",
			address:   "alice.example.com",
			wantError: true,
		},
		{
			name:      "two at signs",
			address:   "alice@bad@example.com",
			wantError: true,
		},
		{
			name:      "empty local part",
			address:   "@example.com",
			wantError: true,
		},
		{
			name:      "empty domain",
			address:   "alice@",
			wantError: true,
		},
		{
			name:      "empty address",
			address:   "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, domain, err := SplitAddress(tt.address)
			if (err != nil) != tt.wantError {
				t.Fatalf("SplitAddress(%q) error = %v, wantError %v", tt.address, err, tt.wantError)
			}
			if tt.wantError {
				return
			}
			if local != tt.wantLocal || domain != tt.wantDomain {
				t.Errorf("SplitAddress(%q) = (%q, %q), want (%q, %q)",
					tt.address, local, domain, tt.wantLocal, tt.wantDomain)
			}
		})
	}
}
