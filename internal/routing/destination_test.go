package routing

import (
	"sort"
	"testing"
)

func TestDestinationTypeFromString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      DestinationType
		wantError bool
	}{
		{
			name:  "exact name",
			input: "DIRECT_PROCESSING",
			want:  DestinationDirectProcessing,
		},
		{
			name:  "lowercase name",
			input: "direct_processing",
			want:  DestinationDirectProcessing,
		},
		{
			name:  "mixed case name",
			input: "Direct_Processing",
			want:  DestinationDirectProcessing,
		},
		{
			name:      "unknown name",
			input:     "CARRIER_PIGEON",
			wantError: true,
		},
		{
			name:      "empty name",
			input:     "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DestinationTypeFromString(tt.input)
			if (err != nil) != tt.wantError {
				t.Fatalf("DestinationTypeFromString(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("DestinationTypeFromString(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDestinationConfig_Less(t *testing.T) {
	unsorted := []DestinationConfig{
		{Sequence: 20, Type: DestinationDirectProcessing, URI: "b"},
		{Sequence: 10, Type: DestinationDirectProcessing, URI: "z"},
		{Sequence: 10, Type: DestinationDirectProcessing, URI: ""},
		{Sequence: 10, Type: DestinationDirectProcessing, URI: "a"},
	}

	sorted := make([]DestinationConfig, len(unsorted))
	copy(sorted, unsorted)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	wantURIs := []string{"", "a", "z", "b"}
	for i, want := range wantURIs {
		if sorted[i].URI != want {
			t.Errorf("sorted[%d].URI = %q, want %q", i, sorted[i].URI, want)
		}
	}

	if !sorted[0].Less(sorted[1]) {
		t.Error("empty URI should sort before a non-empty URI at equal sequence")
	}
	if sorted[3].Sequence != 20 {
		t.Errorf("highest sequence should sort last, got %v", sorted[3].Sequence)
	}
}

func TestSupportedDestinationTypes(t *testing.T) {
	supported := SupportedDestinationTypes()
	if len(supported) != 1 {
		t.Fatalf("SupportedDestinationTypes() returned %d kinds, want 1", len(supported))
	}
	if supported[0] != DestinationDirectProcessing {
		t.Errorf("SupportedDestinationTypes()[0] = %v, want %v", supported[0], DestinationDirectProcessing)
	}
}
