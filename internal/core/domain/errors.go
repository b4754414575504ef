package domain

import (
	"errors"
	"fmt"
)

// ErrPackagingDeclined is returned by an artifact source when the caller
// chose not to package. Orchestration halts without reporting a failure.
var ErrPackagingDeclined = errors.New("packaging declined")

// ErrorKind classifies a publish failure.
type ErrorKind string

const (
	// KindConfig covers invalid locations and malformed settings.
	KindConfig ErrorKind = "config"
	// KindCertificate covers unreadable certificates and inaccessible keys.
	KindCertificate ErrorKind = "certificate"
	// KindVerification covers remote faults while waiting for the deployment.
	KindVerification ErrorKind = "verification"
	// KindRemote covers every other remote fault.
	KindRemote ErrorKind = "remote"
)

// PublishError wraps a failure with the service and slot it concerns.
type PublishError struct {
	Kind        ErrorKind
	Op          string
	ServiceName string
	Slot        Slot
	Err         error
}

func (e *PublishError) Error() string {
	switch {
	case e.ServiceName != "" && e.Slot != "":
		return fmt.Sprintf("%s: service %s slot %s: %v", e.Op, e.ServiceName, e.Slot, e.Err)
	case e.ServiceName != "":
		return fmt.Sprintf("%s: service %s: %v", e.Op, e.ServiceName, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// NewPublishError creates a PublishError for target.
func NewPublishError(kind ErrorKind, op string, target DeploymentTarget, err error) *PublishError {
	return &PublishError{
		Kind:        kind,
		Op:          op,
		ServiceName: target.ServiceName,
		Slot:        target.Slot,
		Err:         err,
	}
}

// KindOf returns the kind of the first PublishError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
