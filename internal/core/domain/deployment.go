package domain

import (
	"errors"
	"strings"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrPackageURLRequired    = errors.New("package URL is required")
	ErrConfigurationRequired = errors.New("service configuration is required")
	ErrLabelRequired         = errors.New("deployment label is required")
	ErrLabelTooLong          = errors.New("deployment label must be at most 100 characters")
	ErrDeploymentNameMissing = errors.New("deployment name is required")
)

// =============================================================================
// Deployment Status
// =============================================================================

// DeploymentStatus is the status the platform reports for a deployment.
type DeploymentStatus string

const (
	DeploymentRunning                DeploymentStatus = "Running"
	DeploymentSuspended              DeploymentStatus = "Suspended"
	DeploymentRunningTransitioning   DeploymentStatus = "RunningTransitioning"
	DeploymentSuspendedTransitioning DeploymentStatus = "SuspendedTransitioning"
	DeploymentStarting               DeploymentStatus = "Starting"
	DeploymentSuspending             DeploymentStatus = "Suspending"
	DeploymentDeploying              DeploymentStatus = "Deploying"
	DeploymentDeleting               DeploymentStatus = "Deleting"
)

// IsStarted reports whether the deployment has reached starting or running.
func (s DeploymentStatus) IsStarted() bool {
	return s == DeploymentStarting || s == DeploymentRunning
}

// IsSuspended reports whether the deployment is stopped or stopping.
func (s DeploymentStatus) IsSuspended() bool {
	return s == DeploymentSuspended || s == DeploymentSuspending || s == DeploymentSuspendedTransitioning
}

// =============================================================================
// Role Instances
// =============================================================================

// InstanceStatus is the status of a single role instance. Values outside the
// named constants are kept verbatim.
type InstanceStatus string

const (
	InstanceReady        InstanceStatus = "ReadyRole"
	InstanceBusy         InstanceStatus = "BusyRole"
	InstanceInitializing InstanceStatus = "Initializing"
	InstanceStopped      InstanceStatus = "StoppedVM"
)

// IsReady reports whether the instance is ready to serve.
func (s InstanceStatus) IsReady() bool {
	return s == InstanceReady
}

// IsNotable reports whether a change to this status is worth reporting.
func (s InstanceStatus) IsNotable() bool {
	switch s {
	case InstanceReady, InstanceBusy, InstanceInitializing:
		return true
	default:
		return false
	}
}

// DisplayName returns a short human-readable name for the status.
func (s InstanceStatus) DisplayName() string {
	switch s {
	case InstanceReady:
		return "Ready"
	case InstanceBusy:
		return "Busy"
	case InstanceInitializing:
		return "Initializing"
	default:
		return string(s)
	}
}

// RoleInstance is one running unit of a deployed role.
type RoleInstance struct {
	RoleName     string         `json:"role_name"`
	InstanceName string         `json:"instance_name"`
	Status       InstanceStatus `json:"status"`
}

// =============================================================================
// Deployment
// =============================================================================

// Deployment is the remote view of a package placed in a slot.
type Deployment struct {
	Name          string           `json:"name"`
	Slot          Slot             `json:"slot"`
	Status        DeploymentStatus `json:"status"`
	Label         string           `json:"label"`
	URL           string           `json:"url"`
	RoleInstances []RoleInstance   `json:"role_instances"`
}

// =============================================================================
// Deployment Request
// =============================================================================

// DeploymentRequest is the value submitted to create or upgrade a deployment.
// It is built once per publish attempt and never mutated.
type DeploymentRequest struct {
	name            string
	packageURL      string
	configuration   []byte
	label           string
	startDeployment bool
	extensionIDs    []string
}

// DeploymentRequestParams holds the inputs for NewDeploymentRequest.
type DeploymentRequestParams struct {
	Name            string
	PackageURL      string
	Configuration   []byte
	Label           string
	StartDeployment bool
	ExtensionIDs    []string
}

// NewDeploymentRequest validates params and returns an immutable request.
func NewDeploymentRequest(p DeploymentRequestParams) (DeploymentRequest, error) {
	if strings.TrimSpace(p.Name) == "" {
		return DeploymentRequest{}, ErrDeploymentNameMissing
	}
	if strings.TrimSpace(p.PackageURL) == "" {
		return DeploymentRequest{}, ErrPackageURLRequired
	}
	if len(p.Configuration) == 0 {
		return DeploymentRequest{}, ErrConfigurationRequired
	}
	if strings.TrimSpace(p.Label) == "" {
		return DeploymentRequest{}, ErrLabelRequired
	}
	if len(p.Label) > 100 {
		return DeploymentRequest{}, ErrLabelTooLong
	}

	cfg := make([]byte, len(p.Configuration))
	copy(cfg, p.Configuration)
	var ext []string
	if len(p.ExtensionIDs) > 0 {
		ext = make([]string, len(p.ExtensionIDs))
		copy(ext, p.ExtensionIDs)
	}

	return DeploymentRequest{
		name:            p.Name,
		packageURL:      p.PackageURL,
		configuration:   cfg,
		label:           p.Label,
		startDeployment: p.StartDeployment,
		extensionIDs:    ext,
	}, nil
}

func (r DeploymentRequest) Name() string          { return r.name }
func (r DeploymentRequest) PackageURL() string    { return r.packageURL }
func (r DeploymentRequest) Label() string         { return r.label }
func (r DeploymentRequest) StartDeployment() bool { return r.startDeployment }

// Configuration returns a copy of the configuration document.
func (r DeploymentRequest) Configuration() []byte {
	out := make([]byte, len(r.configuration))
	copy(out, r.configuration)
	return out
}

// ExtensionIDs returns a copy of the extension IDs applied to all roles.
func (r DeploymentRequest) ExtensionIDs() []string {
	if len(r.extensionIDs) == 0 {
		return nil
	}
	out := make([]string, len(r.extensionIDs))
	copy(out, r.extensionIDs)
	return out
}
