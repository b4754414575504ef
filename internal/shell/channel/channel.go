// Package channel implements the remote management channel.
// This is part of the Imperative Shell - handles I/O with the management API.
package channel

import (
	"context"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

// HostedService is the remote view of a hosted service.
type HostedService struct {
	Name          string
	Label         string
	Description   string
	Location      string
	AffinityGroup string
	Status        string
	URL           string
}

// CreateHostedServiceInput contains parameters for creating a hosted service.
// Exactly one of Location and AffinityGroup is set.
type CreateHostedServiceInput struct {
	Name          string
	Label         string
	Description   string
	Location      string
	AffinityGroup string
}

// StorageAccount is the remote view of a storage account.
type StorageAccount struct {
	Name     string
	Label    string
	Location string
	Status   string
	Endpoint string
}

// CreateStorageAccountInput contains parameters for creating a storage account.
type CreateStorageAccountInput struct {
	Name          string
	Label         string
	Location      string
	AffinityGroup string
}

// StorageKeys are the credentials for a storage account's blob endpoint.
type StorageKeys struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// CertificateUpload is a certificate file to register with a hosted service.
type CertificateUpload struct {
	Data     []byte
	Format   domain.CertificateFormat
	Password string
}

// Extension is a hosted service extension, e.g. remote desktop.
type Extension struct {
	ID                   string
	ProviderNamespace    string
	Type                 string
	Version              string
	Thumbprint           string
	PublicConfiguration  string
	PrivateConfiguration string
}

// UpgradeOptions controls how an upgrade rolls through upgrade domains.
type UpgradeOptions struct {
	Mode  string // "Auto" or "Manual"
	Force bool
}

// OperationStatus is the state of an asynchronous remote operation.
type OperationStatus string

const (
	OperationInProgress OperationStatus = "InProgress"
	OperationSucceeded  OperationStatus = "Succeeded"
	OperationFailed     OperationStatus = "Failed"
)

// Operation is the tracked state of an asynchronous request.
type Operation struct {
	ID             string
	Status         OperationStatus
	HTTPStatusCode int
	Err            *Fault
}

// Channel defines the remote management operations the publisher consumes.
// Lookups of absent resources fail with an error matching ErrNotFound.
type Channel interface {
	// GetHostedService looks up a hosted service by name.
	GetHostedService(ctx context.Context, subscription, name string) (*HostedService, error)

	// CreateHostedService creates a hosted service and waits for completion.
	CreateHostedService(ctx context.Context, subscription string, in CreateHostedServiceInput) error

	// GetStorageAccount looks up a storage account by name.
	GetStorageAccount(ctx context.Context, subscription, name string) (*StorageAccount, error)

	// CreateStorageAccount creates a storage account and waits for completion.
	CreateStorageAccount(ctx context.Context, subscription string, in CreateStorageAccountInput) error

	// GetStorageKeys returns the blob endpoint credentials of a storage account.
	GetStorageKeys(ctx context.Context, subscription, name string) (*StorageKeys, error)

	// ListCertificates lists certificates registered with a hosted service.
	ListCertificates(ctx context.Context, subscription, service string) ([]domain.CertificateRef, error)

	// AddCertificate registers a certificate and waits for completion.
	AddCertificate(ctx context.Context, subscription, service string, cert CertificateUpload) error

	// AddExtension registers an extension and waits for completion.
	AddExtension(ctx context.Context, subscription, service string, ext Extension) error

	// CreateDeployment places a new deployment in the target slot.
	CreateDeployment(ctx context.Context, target domain.DeploymentTarget, req domain.DeploymentRequest) error

	// UpgradeDeployment replaces the package of the deployment in the target slot.
	UpgradeDeployment(ctx context.Context, target domain.DeploymentTarget, req domain.DeploymentRequest, opts UpgradeOptions) error

	// GetDeploymentBySlot returns the deployment occupying the target slot.
	GetDeploymentBySlot(ctx context.Context, target domain.DeploymentTarget) (*domain.Deployment, error)

	// UpdateDeploymentStatus starts (Running) or stops (Suspended) a deployment.
	UpdateDeploymentStatus(ctx context.Context, target domain.DeploymentTarget, status domain.DeploymentStatus) error

	// GetOperationStatus returns the state of an asynchronous request.
	GetOperationStatus(ctx context.Context, subscription, requestID string) (*Operation, error)
}
