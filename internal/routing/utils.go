package routing

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// SplitAddress splits an email address into its local part and domain.
// The address must contain exactly one "@" with non-empty text on both
// sides; display names and angle brackets are the caller's problem.
func SplitAddress(address string) (local, domain string, err error) {
	at := strings.IndexByte(address, '@')
	if at <= 0 || at == len(address)-1 || at != strings.LastIndexByte(address, '@') {
		return "", "", fmt.Errorf("address %q is not of the form local@domain", address)
	}
	return address[:at], address[at+1:], nil
}

// formatPriority renders a priority without a trailing fractional zero,
// so 1.0 reads as "1" in traces and error reports.
func formatPriority(priority float64) string {
	return strconv.FormatFloat(priority, 'g', -1, 64)
}

// missingAttributes returns the required keys absent from doc, sorted for
// stable reporting.
func missingAttributes(doc map[string]any, required []string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := doc[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// containingNetwork returns the first network containing ip, or nil.
func containingNetwork(networks []*net.IPNet, ip net.IP) *net.IPNet {
	for _, network := range networks {
		if network.Contains(ip) {
			return network
		}
	}
	return nil
}

// cloneDestinations copies a destination slice so callers cannot mutate
// the datastore's ordering.
func cloneDestinations(destinations []DestinationConfig) []DestinationConfig {
	cloned := make([]DestinationConfig, len(destinations))
	copy(cloned, destinations)
	return cloned
}

func equalBoolPtr(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
