package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedEvent matches any MalformedEventError
	ErrMalformedEvent = errors.New("malformed event")

	// ErrDependency matches any DependencyError
	ErrDependency = errors.New("dependency error")
)

// DependencySource names the external collaborator that failed
type DependencySource string

const (
	SourceLoadBalancer DependencySource = "load-balancer"
	SourceOrchestrator DependencySource = "orchestrator"
)

// MalformedEventError is returned when the trigger payload does not identify
// exactly one target group. It is fatal for the invocation.
type MalformedEventError struct {
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: %s", e.Reason)
}

func (e *MalformedEventError) Is(target error) bool {
	return target == ErrMalformedEvent
}

// NewMalformedEvent builds a MalformedEventError with a formatted reason
func NewMalformedEvent(format string, args ...interface{}) error {
	return &MalformedEventError{Reason: fmt.Sprintf(format, args...)}
}

// DependencyError wraps a failed load-balancer or orchestrator API call.
// Code carries the AWS error code when the SDK reported one.
type DependencyError struct {
	Source DependencySource
	Op     string
	Code   string
	Err    error
}

func (e *DependencyError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s failed (%s): %v", e.Source, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Source, e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func (e *DependencyError) Is(target error) bool {
	return target == ErrDependency
}

// DataInconsistency records an address claimed by more than one running instance.
// The affected targets are left unresolved.
type DataInconsistency struct {
	Address     string   `json:"address"`
	Port        int      `json:"port,omitempty"`
	InstanceIDs []string `json:"instanceIds"`
}

func (d DataInconsistency) Error() string {
	key := d.Address
	if d.Port != 0 {
		key = fmt.Sprintf("%s:%d", d.Address, d.Port)
	}
	return fmt.Sprintf("address %s claimed by %d instances: %s",
		key, len(d.InstanceIDs), strings.Join(d.InstanceIDs, ", "))
}
