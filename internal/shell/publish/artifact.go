package publish

import (
	"context"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/channel"
)

// Artifact is a packaged application ready to deploy.
type Artifact struct {
	// PackagePath is a local package file that must be uploaded first.
	// Empty when PackageURL already points at blob storage.
	PackagePath string

	// PackageURL is used as-is when PackagePath is empty.
	PackageURL string

	// Configuration is the service configuration document.
	Configuration []byte

	// Certificates lists the certificates the configuration references.
	Certificates []domain.CertificateRef
}

// ArtifactSource produces the package to deploy. It returns
// domain.ErrPackagingDeclined when the operator chose not to continue.
type ArtifactSource interface {
	Package(ctx context.Context, target domain.DeploymentTarget) (*Artifact, error)
}

// PackageUploader stores a local package in blob storage and returns the
// URL the platform fetches it from.
type PackageUploader interface {
	UploadPackage(ctx context.Context, blobName, path string) (string, error)
}

// UploaderFactory opens an uploader for a storage account.
type UploaderFactory func(ctx context.Context, keys channel.StorageKeys) (PackageUploader, error)
