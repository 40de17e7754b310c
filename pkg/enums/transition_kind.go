package enums

import "fmt"

// TransitionKind names a client-visible order transition. Client sync state
// is keyed on these so each transition can fire its effect exactly once per
// session.
type TransitionKind string

const (
	TransitionAccepted  TransitionKind = "accepted"
	TransitionRejected  TransitionKind = "rejected"
	TransitionReady     TransitionKind = "ready"
	TransitionCompleted TransitionKind = "completed"
	TransitionOverdue   TransitionKind = "overdue"
)

var validTransitionKinds = []TransitionKind{
	TransitionAccepted,
	TransitionRejected,
	TransitionReady,
	TransitionCompleted,
	TransitionOverdue,
}

func (t TransitionKind) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransitionKind.
func (t TransitionKind) IsValid() bool {
	for _, candidate := range validTransitionKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransitionKind converts raw input into a TransitionKind.
func ParseTransitionKind(value string) (TransitionKind, error) {
	for _, candidate := range validTransitionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transition kind %q", value)
}
