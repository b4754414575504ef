package store

import (
	"context"
	"time"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

// =============================================================================
// Records
// =============================================================================

// HostedService is a hosted service as the emulator stores it.
type HostedService struct {
	Subscription  string
	Name          string
	Label         string
	Description   string
	Location      string
	AffinityGroup string
	Status        string
	CreatedAt     time.Time
}

// StorageAccount is a storage account with its generated keys.
type StorageAccount struct {
	Subscription  string
	Name          string
	Label         string
	Location      string
	AffinityGroup string
	Status        string
	AccessKey     string
	SecretKey     string
	CreatedAt     time.Time
}

// Certificate is a certificate registered with a hosted service.
type Certificate struct {
	Subscription string
	Service      string
	Thumbprint   string
	Algorithm    string
	Format       string
	Data         []byte
	CreatedAt    time.Time
}

// Extension is an extension registered with a hosted service.
type Extension struct {
	Subscription         string
	Service              string
	ID                   string
	ProviderNamespace    string
	Type                 string
	Version              string
	Thumbprint           string
	PublicConfiguration  string
	PrivateConfiguration string
	CreatedAt            time.Time
}

// Deployment is the deployment occupying one slot of a hosted service.
type Deployment struct {
	Subscription  string
	Service       string
	Slot          domain.Slot
	Name          string
	Label         string
	PackageURL    string
	Configuration []byte
	Status        domain.DeploymentStatus
	RoleInstances []domain.RoleInstance
	ExtensionIDs  []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Operation records the outcome of an asynchronous request.
type Operation struct {
	ID           string
	Subscription string
	Status       string
	HTTPStatus   int
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time

	// ClientRequestID is the caller's idempotency token, unique per
	// subscription when set.
	ClientRequestID string
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for emulated management entities.
type Store interface {
	// Hosted service operations
	CreateHostedService(ctx context.Context, svc *HostedService) error
	GetHostedService(ctx context.Context, subscription, name string) (*HostedService, error)
	ListHostedServices(ctx context.Context, subscription string, opts ListOptions) ([]HostedService, error)

	// Storage account operations
	CreateStorageAccount(ctx context.Context, acct *StorageAccount) error
	GetStorageAccount(ctx context.Context, subscription, name string) (*StorageAccount, error)

	// Certificate operations (adding an existing thumbprint is a no-op)
	AddCertificate(ctx context.Context, cert *Certificate) error
	ListCertificates(ctx context.Context, subscription, service string) ([]Certificate, error)

	// Extension operations
	AddExtension(ctx context.Context, ext *Extension) error
	GetExtension(ctx context.Context, subscription, service, id string) (*Extension, error)

	// Deployment operations
	CreateDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, subscription, service string, slot domain.Slot) (*Deployment, error)
	UpdateDeployment(ctx context.Context, d *Deployment) error
	DeleteDeployment(ctx context.Context, subscription, service string, slot domain.Slot) error

	// Operation tracking
	CreateOperation(ctx context.Context, op *Operation) error
	GetOperation(ctx context.Context, subscription, id string) (*Operation, error)
	GetOperationByClientRequestID(ctx context.Context, subscription, clientRequestID string) (*Operation, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
