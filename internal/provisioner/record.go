package provisioner

import (
	"fmt"
	"slices"
	"time"
)

// State is the lifecycle stage of a provisioned project.
type State string

// Project states. The happy path advances strictly in declaration order.
const (
	StateRequested       State = "Requested"
	StateCreated         State = "Created"
	StateBillingLinked   State = "BillingLinked"
	StateServicesEnabled State = "ServicesEnabled"
	StateCredentialed    State = "Credentialed"
	StateFailed          State = "Failed"
	StateRolledBack      State = "RolledBack"
)

var happyPath = []State{StateRequested, StateCreated, StateBillingLinked, StateServicesEnabled, StateCredentialed}

// AtLeast reports whether s is target or comes after it on the happy path.
// Failed and RolledBack are off the path and always report false.
func (s State) AtLeast(target State) bool {
	i, j := slices.Index(happyPath, s), slices.Index(happyPath, target)
	return i >= 0 && j >= 0 && i >= j
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s State) bool {
	switch s {
	case StateCredentialed, StateFailed, StateRolledBack:
		return true
	default:
		return false
	}
}

// ProjectRecord is the provisioner's view of the project it is building.
// It is owned by a single run.
type ProjectRecord struct {
	ID        string    `yaml:"id"`
	State     State     `yaml:"state"`
	CreatedAt time.Time `yaml:"created_at"`
}

// NewProjectRecord starts a record in StateRequested.
func NewProjectRecord(id string, createdAt time.Time) *ProjectRecord {
	return &ProjectRecord{ID: id, State: StateRequested, CreatedAt: createdAt}
}

// Transition moves the record to the given state. It fails without mutating
// the record when the move is not allowed.
func (r *ProjectRecord) Transition(to State) error {
	if !isAllowedTransition(r.State, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", r.ID, r.State, to)
	}
	r.State = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	if IsTerminal(from) {
		return false
	}
	switch to {
	case StateFailed, StateRolledBack:
		return true
	}
	switch from {
	case StateRequested:
		return to == StateCreated
	case StateCreated:
		return to == StateBillingLinked
	case StateBillingLinked:
		return to == StateServicesEnabled
	case StateServicesEnabled:
		return to == StateCredentialed
	default:
		return false
	}
}
