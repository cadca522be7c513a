package routing

import (
	"sort"
	"time"
)

// RulesDatastore is one activated revision of the routing configuration:
// an immutable, priority-ordered collection of target configs plus the
// revision metadata it was authored under. Instances are only obtainable
// through DatastoreBuilder.Build, so any reachable datastore is complete
// and safe for unlimited concurrent readers without locking.
type RulesDatastore struct {
	name           string
	revisionNumber int
	revisionTime   time.Time
	instanceType   InstanceType
	targets        []TargetConfig
	byName         map[string]int
	activated      bool
}

// Name returns the name the rules revision was published under.
func (ds *RulesDatastore) Name() string { return ds.name }

// RevisionNumber returns the monotonic revision counter of the document.
func (ds *RulesDatastore) RevisionNumber() int { return ds.revisionNumber }

// RevisionTime returns the revision timestamp normalized to UTC.
func (ds *RulesDatastore) RevisionTime() time.Time { return ds.revisionTime }

// InstanceType returns the deployment instance the revision is authored
// for.
func (ds *RulesDatastore) InstanceType() InstanceType { return ds.instanceType }

// Active reports whether the datastore finished building and may serve
// match requests. A nil datastore is not active.
func (ds *RulesDatastore) Active() bool { return ds != nil && ds.activated }

// TargetCount returns the number of targets in the datastore.
func (ds *RulesDatastore) TargetCount() int { return len(ds.targets) }

// Targets returns a copy of the target configs in ascending priority
// order.
func (ds *RulesDatastore) Targets() []TargetConfig {
	targets := make([]TargetConfig, len(ds.targets))
	copy(targets, ds.targets)
	return targets
}

// TargetByName looks up a target config by its unique name.
func (ds *RulesDatastore) TargetByName(name string) (TargetConfig, bool) {
	index, ok := ds.byName[name]
	if !ok {
		return TargetConfig{}, false
	}
	return ds.targets[index], true
}

// DatastoreBuilder assembles a RulesDatastore target by target. It is
// single-use and single-writer: populate it from one goroutine, then Build
// freezes the collection into the shared read-only snapshot. A failed
// AddTarget leaves the builder exactly as it was.
type DatastoreBuilder struct {
	name           string
	revisionNumber int
	revisionTime   time.Time
	instanceType   InstanceType
	targets        []TargetConfig
	built          bool
}

// NewDatastoreBuilder starts a builder for one rules revision. The
// revision time is normalized to UTC.
func NewDatastoreBuilder(name string, revisionNumber int, revisionTime time.Time, instance InstanceType) *DatastoreBuilder {
	return &DatastoreBuilder{
		name:           name,
		revisionNumber: revisionNumber,
		revisionTime:   revisionTime.UTC(),
		instanceType:   instance,
	}
}

// AddTarget inserts one target config. A structurally identical duplicate
// fails with DuplicateTargetError; a name or priority collision with a
// different target fails with ConfigConflictError.
func (b *DatastoreBuilder) AddTarget(target TargetConfig) error {
	if b.built {
		return &InitializationError{Problems: []string{"datastore already built, builder is single-use"}}
	}
	for _, existing := range b.targets {
		if existing.Equal(target) {
			return &DuplicateTargetError{TargetName: target.Name}
		}
		if existing.Name == target.Name {
			return &ConfigConflictError{TargetName: target.Name, Conflict: "target_name"}
		}
		if existing.Priority == target.Priority {
			return &ConfigConflictError{TargetName: target.Name, Conflict: "target_priority"}
		}
	}
	b.targets = append(b.targets, target)
	return nil
}

// TargetCount returns the number of targets added so far.
func (b *DatastoreBuilder) TargetCount() int { return len(b.targets) }

// Build freezes the builder into an activated datastore with its targets
// sorted ascending by priority. The builder cannot be reused afterwards.
func (b *DatastoreBuilder) Build() (*RulesDatastore, error) {
	if b.built {
		return nil, &InitializationError{Problems: []string{"datastore already built, builder is single-use"}}
	}
	b.built = true

	targets := make([]TargetConfig, len(b.targets))
	copy(targets, b.targets)
	sort.Slice(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })

	byName := make(map[string]int, len(targets))
	for i, target := range targets {
		byName[target.Name] = i
	}

	return &RulesDatastore{
		name:           b.name,
		revisionNumber: b.revisionNumber,
		revisionTime:   b.revisionTime,
		instanceType:   b.instanceType,
		targets:        targets,
		byName:         byName,
		activated:      true,
	}, nil
}
