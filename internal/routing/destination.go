package routing

import (
	"fmt"
	"strings"
)

// DestinationType names where a matched message is handed off to.
type DestinationType string

const (
	// DestinationDirectProcessing hands the message to the in-process
	// pipeline of the receiving service.
	DestinationDirectProcessing DestinationType = "DIRECT_PROCESSING"
)

// SupportedDestinationTypes returns the destination kinds this build can
// deliver to.
func SupportedDestinationTypes() []DestinationType {
	return []DestinationType{DestinationDirectProcessing}
}

// DestinationTypeFromString resolves a destination kind by name, ignoring
// case.
func DestinationTypeFromString(name string) (DestinationType, error) {
	for _, kind := range SupportedDestinationTypes() {
		if strings.EqualFold(name, string(kind)) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown destination type %q, must be one of: %s",
		name, strings.Join(destinationTypeNames(), ", "))
}

func destinationTypeNames() []string {
	supported := SupportedDestinationTypes()
	names := make([]string, len(supported))
	for i, kind := range supported {
		names[i] = string(kind)
	}
	return names
}

// DestinationConfig describes one delivery point of a target. URI is empty
// when the destination kind needs no addressable endpoint.
type DestinationConfig struct {
	Sequence float64         `json:"destination_sequence"`      // delivery order within the target
	Type     DestinationType `json:"destination_type"`          // kind of handoff
	URI      string          `json:"destination_uri,omitempty"` // endpoint, empty for in-process kinds
}

// Less orders destinations by sequence, then type, then URI. An empty URI
// sorts before any non-empty one.
func (d DestinationConfig) Less(other DestinationConfig) bool {
	if d.Sequence != other.Sequence {
		return d.Sequence < other.Sequence
	}
	if d.Type != other.Type {
		return d.Type < other.Type
	}
	return d.URI < other.URI
}
