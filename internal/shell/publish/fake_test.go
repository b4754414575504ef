package publish

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/channel"
)

// =============================================================================
// Recording Channel
// =============================================================================

// recordingChannel is an in-memory Channel that records the name of every
// call in order.
type recordingChannel struct {
	mu    sync.Mutex
	calls []string

	serviceExists bool
	storageExists bool
	existing      *domain.Deployment

	// progression is returned by GetDeploymentBySlot once a deployment was
	// submitted; the last entry repeats.
	progression []*domain.Deployment
	progressed  int
	submitted   bool

	registered    []domain.CertificateRef
	uploadedCerts []channel.CertificateUpload
	extensions    []channel.Extension
	created       *domain.DeploymentRequest
	upgraded      *domain.DeploymentRequest
	statusUpdates []domain.DeploymentStatus

	errs map[string]error
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{errs: make(map[string]error)}
}

func (c *recordingChannel) record(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	return c.errs[name]
}

func (c *recordingChannel) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *recordingChannel) count(name string) int {
	n := 0
	for _, call := range c.Calls() {
		if call == name {
			n++
		}
	}
	return n
}

func notFound() error {
	return &channel.Fault{StatusCode: http.StatusNotFound, Code: "ResourceNotFound", Message: "not found"}
}

func (c *recordingChannel) GetHostedService(_ context.Context, _, name string) (*channel.HostedService, error) {
	if err := c.record("GetHostedService"); err != nil {
		return nil, err
	}
	if !c.serviceExists {
		return nil, notFound()
	}
	return &channel.HostedService{Name: name}, nil
}

func (c *recordingChannel) CreateHostedService(_ context.Context, _ string, _ channel.CreateHostedServiceInput) error {
	if err := c.record("CreateHostedService"); err != nil {
		return err
	}
	c.serviceExists = true
	return nil
}

func (c *recordingChannel) GetStorageAccount(_ context.Context, _, name string) (*channel.StorageAccount, error) {
	if err := c.record("GetStorageAccount"); err != nil {
		return nil, err
	}
	if !c.storageExists {
		return nil, notFound()
	}
	return &channel.StorageAccount{Name: name}, nil
}

func (c *recordingChannel) CreateStorageAccount(_ context.Context, _ string, _ channel.CreateStorageAccountInput) error {
	if err := c.record("CreateStorageAccount"); err != nil {
		return err
	}
	c.storageExists = true
	return nil
}

func (c *recordingChannel) GetStorageKeys(_ context.Context, _, _ string) (*channel.StorageKeys, error) {
	if err := c.record("GetStorageKeys"); err != nil {
		return nil, err
	}
	return &channel.StorageKeys{Endpoint: "http://blobs.test", AccessKey: "ak", SecretKey: "sk"}, nil
}

func (c *recordingChannel) ListCertificates(_ context.Context, _, _ string) ([]domain.CertificateRef, error) {
	if err := c.record("ListCertificates"); err != nil {
		return nil, err
	}
	out := make([]domain.CertificateRef, len(c.registered))
	copy(out, c.registered)
	return out, nil
}

// AddCertificate registers the upload under the thumbprint carried in Data.
func (c *recordingChannel) AddCertificate(_ context.Context, _, _ string, cert channel.CertificateUpload) error {
	if err := c.record("AddCertificate"); err != nil {
		return err
	}
	c.uploadedCerts = append(c.uploadedCerts, cert)
	c.registered = append(c.registered, domain.CertificateRef{Thumbprint: domain.NormalizeThumbprint(string(cert.Data))})
	return nil
}

func (c *recordingChannel) AddExtension(_ context.Context, _, _ string, ext channel.Extension) error {
	if err := c.record("AddExtension"); err != nil {
		return err
	}
	c.extensions = append(c.extensions, ext)
	return nil
}

func (c *recordingChannel) CreateDeployment(_ context.Context, _ domain.DeploymentTarget, req domain.DeploymentRequest) error {
	if err := c.record("CreateDeployment"); err != nil {
		return err
	}
	c.created = &req
	c.submitted = true
	return nil
}

func (c *recordingChannel) UpgradeDeployment(_ context.Context, _ domain.DeploymentTarget, req domain.DeploymentRequest, _ channel.UpgradeOptions) error {
	if err := c.record("UpgradeDeployment"); err != nil {
		return err
	}
	c.upgraded = &req
	c.submitted = true
	return nil
}

func (c *recordingChannel) GetDeploymentBySlot(_ context.Context, _ domain.DeploymentTarget) (*domain.Deployment, error) {
	if err := c.record("GetDeploymentBySlot"); err != nil {
		return nil, err
	}
	if !c.submitted || len(c.progression) == 0 {
		if c.existing == nil {
			return nil, notFound()
		}
		return c.existing, nil
	}
	d := c.progression[c.progressed]
	if c.progressed < len(c.progression)-1 {
		c.progressed++
	}
	return d, nil
}

func (c *recordingChannel) UpdateDeploymentStatus(_ context.Context, _ domain.DeploymentTarget, status domain.DeploymentStatus) error {
	if err := c.record("UpdateDeploymentStatus"); err != nil {
		return err
	}
	c.statusUpdates = append(c.statusUpdates, status)
	c.submitted = true
	return nil
}

func (c *recordingChannel) GetOperationStatus(_ context.Context, _, id string) (*channel.Operation, error) {
	if err := c.record("GetOperationStatus"); err != nil {
		return nil, err
	}
	return &channel.Operation{ID: id, Status: channel.OperationSucceeded}, nil
}

var _ channel.Channel = (*recordingChannel)(nil)

// =============================================================================
// Other Fakes
// =============================================================================

type staticSource struct {
	artifact *Artifact
	err      error
	calls    int
}

func (s *staticSource) Package(context.Context, domain.DeploymentTarget) (*Artifact, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.artifact, nil
}

type recordingNotifier struct {
	events []Event
}

func (n *recordingNotifier) Notify(e Event) {
	n.events = append(n.events, e)
}

func (n *recordingNotifier) states() []domain.PublishState {
	var out []domain.PublishState
	for _, e := range n.events {
		if e.Kind == EventState {
			out = append(out, e.State)
		}
	}
	return out
}

func (n *recordingNotifier) instances() []Event {
	var out []Event
	for _, e := range n.events {
		if e.Kind == EventInstance {
			out = append(out, e)
		}
	}
	return out
}

type fakeUploader struct {
	blobName string
	path     string
	err      error
}

func (u *fakeUploader) UploadPackage(_ context.Context, blobName, path string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.blobName = blobName
	u.path = path
	return "http://blobs.test/deployments/" + blobName, nil
}

var errBoom = errors.New("boom")
