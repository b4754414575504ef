// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"strings"
)

// =============================================================================
// Target Errors
// =============================================================================

var (
	ErrSubscriptionRequired = errors.New("subscription ID is required")
	ErrServiceNameRequired  = errors.New("hosted service name is required")
	ErrServiceNameTooLong   = errors.New("hosted service name must be at most 63 characters")
	ErrInvalidServiceName   = errors.New("hosted service name may only contain letters, digits and hyphens")
	ErrInvalidSlot          = errors.New("invalid slot: must be production or staging")
	ErrInvalidLocation      = errors.New("invalid location")
)

// =============================================================================
// Slot
// =============================================================================

// Slot is one of the two deployment destinations of a hosted service.
type Slot string

const (
	SlotProduction Slot = "production"
	SlotStaging    Slot = "staging"
)

// ParseSlot parses a slot name case-insensitively.
func ParseSlot(s string) (Slot, error) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotProduction:
		return SlotProduction, nil
	case SlotStaging:
		return SlotStaging, nil
	default:
		return "", ErrInvalidSlot
	}
}

// IsValid checks if the slot is one of the known values.
func (s Slot) IsValid() bool {
	return s == SlotProduction || s == SlotStaging
}

// =============================================================================
// Locations
// =============================================================================

// DefaultLocation is used when neither a location nor an affinity group is set.
const DefaultLocation = "South Central US"

var locations = []string{
	"Anywhere US",
	"Anywhere Europe",
	"Anywhere Asia",
	"North Central US",
	"South Central US",
	"East US",
	"West US",
	"North Europe",
	"West Europe",
	"East Asia",
	"Southeast Asia",
}

// Locations returns the datacenter locations a hosted service can be placed in.
func Locations() []string {
	out := make([]string, len(locations))
	copy(out, locations)
	return out
}

// NormalizeLocation resolves a location name case-insensitively to its
// canonical spelling.
func NormalizeLocation(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultLocation, nil
	}
	for _, l := range locations {
		if strings.EqualFold(l, name) {
			return l, nil
		}
	}
	return "", ErrInvalidLocation
}

// =============================================================================
// Deployment Target
// =============================================================================

// DeploymentTarget identifies the hosted service and slot a publish targets.
type DeploymentTarget struct {
	Subscription string `json:"subscription"`
	ServiceName  string `json:"service_name"`
	Slot         Slot   `json:"slot"`
}

// NewDeploymentTarget creates a validated deployment target.
func NewDeploymentTarget(subscription, serviceName, slot string) (DeploymentTarget, error) {
	s, err := ParseSlot(slot)
	if err != nil {
		return DeploymentTarget{}, err
	}
	t := DeploymentTarget{
		Subscription: strings.TrimSpace(subscription),
		ServiceName:  strings.TrimSpace(serviceName),
		Slot:         s,
	}
	if err := t.Validate(); err != nil {
		return DeploymentTarget{}, err
	}
	return t, nil
}

// Validate checks that every field of the target is set and well formed.
func (t DeploymentTarget) Validate() error {
	if t.Subscription == "" {
		return ErrSubscriptionRequired
	}
	if err := ValidateServiceName(t.ServiceName); err != nil {
		return err
	}
	if !t.Slot.IsValid() {
		return ErrInvalidSlot
	}
	return nil
}

// IsProduction reports whether the target is the production slot.
func (t DeploymentTarget) IsProduction() bool {
	return t.Slot == SlotProduction
}

// String returns "service/slot".
func (t DeploymentTarget) String() string {
	return t.ServiceName + "/" + string(t.Slot)
}

// ValidateServiceName validates a hosted service name. The name becomes a DNS
// label, so the same rules apply.
func ValidateServiceName(name string) error {
	if name == "" {
		return ErrServiceNameRequired
	}
	if len(name) > 63 {
		return ErrServiceNameTooLong
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return ErrInvalidServiceName
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return ErrInvalidServiceName
		}
	}
	return nil
}
