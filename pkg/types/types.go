package types

import (
	"encoding/json"
	"time"
)

// Scope is the boundary of action: the name of a single ECS cluster.
// It is fixed for the lifetime of one invocation.
type Scope string

// TargetHealthState is the load balancer's per-target verdict
type TargetHealthState string

const (
	TargetStateHealthy     TargetHealthState = "healthy"
	TargetStateUnhealthy   TargetHealthState = "unhealthy"
	TargetStateDraining    TargetHealthState = "draining"
	TargetStateUnused      TargetHealthState = "unused"
	TargetStateInitial     TargetHealthState = "initial"
	TargetStateUnavailable TargetHealthState = "unavailable"
)

// KnownTargetStates lists every state the load balancer reports
var KnownTargetStates = []TargetHealthState{
	TargetStateHealthy,
	TargetStateUnhealthy,
	TargetStateDraining,
	TargetStateUnused,
	TargetStateInitial,
	TargetStateUnavailable,
}

// DefaultRemediableStates are the states where the load balancer has stopped
// (or is stopping) routing to the target.
var DefaultRemediableStates = []TargetHealthState{
	TargetStateUnhealthy,
	TargetStateDraining,
}

// Valid reports whether s is one of the known states
func (s TargetHealthState) Valid() bool {
	for _, known := range KnownTargetStates {
		if s == known {
			return true
		}
	}
	return false
}

// TargetHealthRecord is one load-balancer-registered endpoint and its health.
// Address is the target id: a private IP for ip targets, an EC2 instance id
// for instance targets.
type TargetHealthRecord struct {
	Address string            `json:"address"`
	Port    int               `json:"port"`
	State   TargetHealthState `json:"state"`
	Reason  string            `json:"reason,omitempty"`
}

// AttachmentKind classifies a network attachment
type AttachmentKind string

const (
	// AttachmentInterface is an addressable network identity (ENI, or the
	// host instance for bridge/host networking)
	AttachmentInterface AttachmentKind = "interface"
	AttachmentOther     AttachmentKind = "other"
)

// AddressFamily tags an attachment address
type AddressFamily string

const (
	AddressFamilyIPv4     AddressFamily = "ipv4"
	AddressFamilyIPv6     AddressFamily = "ipv6"
	AddressFamilyInstance AddressFamily = "instance" // EC2 instance id of the host
)

// Address is one (family, value) pair exposed by an attachment
type Address struct {
	Family AddressFamily `json:"family"`
	Value  string        `json:"value"`
}

// NetworkAttachment is the network identity through which an instance is reachable.
// Ports is empty when the whole address belongs to the instance (awsvpc);
// otherwise it lists the host ports the instance owns on that address.
type NetworkAttachment struct {
	Kind      AttachmentKind `json:"kind"`
	Addresses []Address      `json:"addresses"`
	Ports     []int          `json:"ports,omitempty"`
}

// RunningInstance is one running ECS task within the scope
type RunningInstance struct {
	InstanceID  string              `json:"instanceId"`
	Attachments []NetworkAttachment `json:"attachments"`
}

// OutcomeResult is the per-instance result of remediation
type OutcomeResult string

const (
	OutcomeStopped OutcomeResult = "stopped"
	OutcomeFailed  OutcomeResult = "failed"
	OutcomeSkipped OutcomeResult = "skipped"
)

// RemediationOutcome reports what happened to one instance
type RemediationOutcome struct {
	InstanceID string        `json:"instanceId"`
	Result     OutcomeResult `json:"result"`
	Detail     string        `json:"detail,omitempty"`
}

// ResultStatus marks the early-exit invocation results
type ResultStatus string

const (
	StatusNoUnhealthyTargets ResultStatus = "no-unhealthy-targets"
	StatusNoRunningInstances ResultStatus = "no-running-instances"
)

// Result is the structured output of one invocation.
//
// When Status is set the result serializes to exactly {"status": ...}.
// Otherwise it carries killedInstances (never null) and the supporting detail.
type Result struct {
	Status            ResultStatus         `json:"status,omitempty"`
	KilledInstances   []string             `json:"killedInstances"`
	Outcomes          []RemediationOutcome `json:"outcomes"`
	UnresolvedTargets []TargetHealthRecord `json:"unresolvedTargets"`
	Inconsistencies   []DataInconsistency  `json:"inconsistencies"`
}

// NewStatusResult builds an early-exit result
func NewStatusResult(status ResultStatus) *Result {
	return &Result{Status: status}
}

// MarshalJSON keeps the two result shapes distinct
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Status != "" {
		return json.Marshal(struct {
			Status ResultStatus `json:"status"`
		}{r.Status})
	}

	// Empty slices, not null: callers always get a well-formed summary
	out := struct {
		KilledInstances   []string             `json:"killedInstances"`
		Outcomes          []RemediationOutcome `json:"outcomes"`
		UnresolvedTargets []TargetHealthRecord `json:"unresolvedTargets"`
		Inconsistencies   []DataInconsistency  `json:"inconsistencies"`
	}{
		KilledInstances:   r.KilledInstances,
		Outcomes:          r.Outcomes,
		UnresolvedTargets: r.UnresolvedTargets,
		Inconsistencies:   r.Inconsistencies,
	}
	if out.KilledInstances == nil {
		out.KilledInstances = []string{}
	}
	if out.Outcomes == nil {
		out.Outcomes = []RemediationOutcome{}
	}
	if out.UnresolvedTargets == nil {
		out.UnresolvedTargets = []TargetHealthRecord{}
	}
	if out.Inconsistencies == nil {
		out.Inconsistencies = []DataInconsistency{}
	}
	return json.Marshal(out)
}

// Alarm is the decoded trigger
type Alarm struct {
	Name        string `json:"name,omitempty"`
	State       string `json:"state,omitempty"`
	Region      string `json:"region,omitempty"`
	AccountID   string `json:"accountId,omitempty"`
	TargetGroup string `json:"targetGroup"`
}

// InvocationRecord is the audit entry persisted for one invocation
type InvocationRecord struct {
	ID         string    `json:"id"`
	Scope      Scope     `json:"scope"`
	Alarm      *Alarm    `json:"alarm,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Result     *Result   `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
}
