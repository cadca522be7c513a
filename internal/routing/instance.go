package routing

import (
	"fmt"
	"strings"
)

// InstanceType identifies the deployment instance a rules revision is
// authored for. URLPrefix is the path segment the inbound receiver mounts
// its route under, so blue and green deployments can run side by side.
type InstanceType struct {
	Name      string
	URLPrefix string
}

var (
	// InstanceBlue is the blue deployment instance.
	InstanceBlue = InstanceType{Name: "blue", URLPrefix: "blue"}

	// InstanceGreen is the green deployment instance.
	InstanceGreen = InstanceType{Name: "green", URLPrefix: "green"}
)

// SupportedInstanceTypes returns the closed set of deployment instances.
func SupportedInstanceTypes() []InstanceType {
	return []InstanceType{InstanceBlue, InstanceGreen}
}

// InstanceTypeFromString resolves an instance by name, ignoring case.
func InstanceTypeFromString(name string) (InstanceType, error) {
	for _, instance := range SupportedInstanceTypes() {
		if strings.EqualFold(name, instance.Name) {
			return instance, nil
		}
	}
	return InstanceType{}, fmt.Errorf("unknown instance type %q, must be one of: %s",
		name, strings.Join(instanceTypeNames(), ", "))
}

func instanceTypeNames() []string {
	supported := SupportedInstanceTypes()
	names := make([]string, len(supported))
	for i, instance := range supported {
		names[i] = instance.Name
	}
	return names
}
