package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

const (
	contentTypeXML = "application/xml; charset=utf-8"

	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultOperationPollInterval is how often asynchronous operations are checked.
	DefaultOperationPollInterval = 2 * time.Second

	// DefaultOperationTimeout bounds how long a single asynchronous operation may run.
	DefaultOperationTimeout = 30 * time.Minute

	maxErrorBody = 64 * 1024
)

// =============================================================================
// Credentials
// =============================================================================

// TokenSource supplies the bearer token for management requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// FileToken reads the bearer token from a file on every call, so a rotated
// token is picked up when the channel reconnects.
type FileToken string

// Token reads and trims the token file.
func (t FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(string(t))
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// =============================================================================
// Request Tokens
// =============================================================================

type requestTokenKey struct{}

// WithRequestToken attaches an idempotency token to ctx. Every request made
// with ctx carries it, so a retried mutation is recognised remotely.
func WithRequestToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, requestTokenKey{}, token)
}

// RequestToken returns the idempotency token attached to ctx, if any.
func RequestToken(ctx context.Context) string {
	tok, _ := ctx.Value(requestTokenKey{}).(string)
	return tok
}

// =============================================================================
// HTTP Channel
// =============================================================================

// HTTPConfig configures an HTTPChannel.
type HTTPConfig struct {
	Endpoint              string
	Timeout               time.Duration
	OperationPollInterval time.Duration
	OperationTimeout      time.Duration
	HTTPClient            *http.Client
}

// HTTPChannel implements Channel against a REST/XML management endpoint.
type HTTPChannel struct {
	baseURL      *url.URL
	client       *http.Client
	token        string
	pollInterval time.Duration
	opTimeout    time.Duration
	logger       *slog.Logger
}

// NewHTTPChannel creates a channel that authenticates with token.
func NewHTTPChannel(cfg HTTPConfig, token string, logger *slog.Logger) (*HTTPChannel, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("management endpoint is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid management endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid management endpoint scheme %q", u.Scheme)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.OperationPollInterval == 0 {
		cfg.OperationPollInterval = DefaultOperationPollInterval
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPChannel{
		baseURL:      u,
		client:       client,
		token:        token,
		pollInterval: cfg.OperationPollInterval,
		opTimeout:    cfg.OperationTimeout,
		logger:       logger.With("component", "channel"),
	}, nil
}

// NewHTTPDialer returns a DialFunc that builds a fresh HTTPChannel with a
// freshly fetched token on every call.
func NewHTTPDialer(cfg HTTPConfig, tokens TokenSource, logger *slog.Logger) DialFunc {
	return func(ctx context.Context) (Channel, error) {
		token, err := tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		return NewHTTPChannel(cfg, token, logger)
	}
}

// GetHostedService looks up a hosted service.
func (c *HTTPChannel) GetHostedService(ctx context.Context, subscription, name string) (*HostedService, error) {
	var out HostedServiceXML
	if _, err := c.do(ctx, http.MethodGet, c.path(subscription, "services", "hostedservices", name), nil, nil, &out); err != nil {
		return nil, err
	}
	return &HostedService{
		Name:          out.ServiceName,
		Label:         out.Properties.Label,
		Description:   out.Properties.Description,
		Location:      out.Properties.Location,
		AffinityGroup: out.Properties.AffinityGroup,
		Status:        out.Properties.Status,
		URL:           out.URL,
	}, nil
}

// CreateHostedService creates a hosted service.
func (c *HTTPChannel) CreateHostedService(ctx context.Context, subscription string, in CreateHostedServiceInput) error {
	body := CreateHostedServiceXML{
		ServiceName:   in.Name,
		Label:         in.Label,
		Description:   in.Description,
		Location:      in.Location,
		AffinityGroup: in.AffinityGroup,
	}
	return c.mutate(ctx, subscription, http.MethodPost, c.path(subscription, "services", "hostedservices"), nil, body)
}

// GetStorageAccount looks up a storage account.
func (c *HTTPChannel) GetStorageAccount(ctx context.Context, subscription, name string) (*StorageAccount, error) {
	var out StorageServiceXML
	if _, err := c.do(ctx, http.MethodGet, c.path(subscription, "services", "storageservices", name), nil, nil, &out); err != nil {
		return nil, err
	}
	acct := &StorageAccount{
		Name:     out.ServiceName,
		Label:    out.Properties.Label,
		Location: out.Properties.Location,
		Status:   out.Properties.Status,
	}
	if len(out.Properties.Endpoints) > 0 {
		acct.Endpoint = out.Properties.Endpoints[0]
	}
	return acct, nil
}

// CreateStorageAccount creates a storage account.
func (c *HTTPChannel) CreateStorageAccount(ctx context.Context, subscription string, in CreateStorageAccountInput) error {
	body := CreateStorageServiceXML{
		ServiceName:   in.Name,
		Label:         in.Label,
		Location:      in.Location,
		AffinityGroup: in.AffinityGroup,
	}
	return c.mutate(ctx, subscription, http.MethodPost, c.path(subscription, "services", "storageservices"), nil, body)
}

// GetStorageKeys returns the blob endpoint credentials of a storage account.
func (c *HTTPChannel) GetStorageKeys(ctx context.Context, subscription, name string) (*StorageKeys, error) {
	var out StorageServiceKeysXML
	if _, err := c.do(ctx, http.MethodGet, c.path(subscription, "services", "storageservices", name, "keys"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &StorageKeys{
		Endpoint:  out.Endpoint,
		Region:    out.Region,
		AccessKey: out.Primary,
		SecretKey: out.Secondary,
	}, nil
}

// ListCertificates lists the certificates registered with a hosted service.
func (c *HTTPChannel) ListCertificates(ctx context.Context, subscription, service string) ([]domain.CertificateRef, error) {
	var out CertificatesXML
	if _, err := c.do(ctx, http.MethodGet, c.path(subscription, "services", "hostedservices", service, "certificates"), nil, nil, &out); err != nil {
		return nil, err
	}
	refs := make([]domain.CertificateRef, 0, len(out.Certificates))
	for _, cert := range out.Certificates {
		refs = append(refs, domain.CertificateRef{
			Thumbprint: domain.NormalizeThumbprint(cert.Thumbprint),
			Algorithm:  cert.ThumbprintAlgorithm,
		})
	}
	return refs, nil
}

// AddCertificate uploads a certificate to a hosted service.
func (c *HTTPChannel) AddCertificate(ctx context.Context, subscription, service string, cert CertificateUpload) error {
	format := cert.Format
	if format == "" {
		format = domain.CertificateFormatPFX
	}
	body := CertificateFileXML{
		Data:              base64.StdEncoding.EncodeToString(cert.Data),
		CertificateFormat: string(format),
		Password:          cert.Password,
	}
	return c.mutate(ctx, subscription, http.MethodPost, c.path(subscription, "services", "hostedservices", service, "certificates"), nil, body)
}

// AddExtension registers an extension with a hosted service.
func (c *HTTPChannel) AddExtension(ctx context.Context, subscription, service string, ext Extension) error {
	body := ExtensionXML{
		ProviderNamespace:    ext.ProviderNamespace,
		Type:                 ext.Type,
		ID:                   ext.ID,
		Thumbprint:           ext.Thumbprint,
		PublicConfiguration:  base64.StdEncoding.EncodeToString([]byte(ext.PublicConfiguration)),
		PrivateConfiguration: base64.StdEncoding.EncodeToString([]byte(ext.PrivateConfiguration)),
		Version:              ext.Version,
	}
	return c.mutate(ctx, subscription, http.MethodPost, c.path(subscription, "services", "hostedservices", service, "extensions"), nil, body)
}

// CreateDeployment creates a deployment in the target slot.
func (c *HTTPChannel) CreateDeployment(ctx context.Context, target domain.DeploymentTarget, req domain.DeploymentRequest) error {
	body := CreateDeploymentXML{
		Name:                   req.Name(),
		PackageURL:             req.PackageURL(),
		Label:                  req.Label(),
		Configuration:          base64.StdEncoding.EncodeToString(req.Configuration()),
		StartDeployment:        req.StartDeployment(),
		ExtensionConfiguration: extensionConfiguration(req.ExtensionIDs()),
	}
	return c.mutate(ctx, target.Subscription, http.MethodPost, c.slotPath(target), nil, body)
}

// UpgradeDeployment upgrades the deployment in the target slot.
func (c *HTTPChannel) UpgradeDeployment(ctx context.Context, target domain.DeploymentTarget, req domain.DeploymentRequest, opts UpgradeOptions) error {
	mode := opts.Mode
	if mode == "" {
		mode = "Auto"
	}
	body := UpgradeDeploymentXML{
		Mode:                   mode,
		PackageURL:             req.PackageURL(),
		Configuration:          base64.StdEncoding.EncodeToString(req.Configuration()),
		Label:                  req.Label(),
		Force:                  opts.Force,
		ExtensionConfiguration: extensionConfiguration(req.ExtensionIDs()),
	}
	return c.mutate(ctx, target.Subscription, http.MethodPost, c.slotPath(target), url.Values{"comp": {"upgrade"}}, body)
}

// GetDeploymentBySlot returns the deployment in the target slot.
func (c *HTTPChannel) GetDeploymentBySlot(ctx context.Context, target domain.DeploymentTarget) (*domain.Deployment, error) {
	var out DeploymentXML
	if _, err := c.do(ctx, http.MethodGet, c.slotPath(target), nil, nil, &out); err != nil {
		return nil, err
	}
	d := &domain.Deployment{
		Name:   out.Name,
		Slot:   domain.Slot(strings.ToLower(out.DeploymentSlot)),
		Status: domain.DeploymentStatus(out.Status),
		Label:  out.Label,
		URL:    out.URL,
	}
	for _, ri := range out.RoleInstances {
		d.RoleInstances = append(d.RoleInstances, domain.RoleInstance{
			RoleName:     ri.RoleName,
			InstanceName: ri.InstanceName,
			Status:       domain.InstanceStatus(ri.InstanceStatus),
		})
	}
	return d, nil
}

// UpdateDeploymentStatus starts or stops the deployment in the target slot.
func (c *HTTPChannel) UpdateDeploymentStatus(ctx context.Context, target domain.DeploymentTarget, status domain.DeploymentStatus) error {
	body := UpdateDeploymentStatusXML{Status: string(status)}
	return c.mutate(ctx, target.Subscription, http.MethodPost, c.slotPath(target), url.Values{"comp": {"status"}}, body)
}

// GetOperationStatus returns the state of an asynchronous request.
func (c *HTTPChannel) GetOperationStatus(ctx context.Context, subscription, requestID string) (*Operation, error) {
	var out OperationXML
	if _, err := c.do(ctx, http.MethodGet, c.path(subscription, "operations", requestID), nil, nil, &out); err != nil {
		return nil, err
	}
	op := &Operation{
		ID:             out.ID,
		Status:         OperationStatus(out.Status),
		HTTPStatusCode: out.HTTPStatusCode,
	}
	if out.Error != nil {
		op.Err = &Fault{
			StatusCode: out.HTTPStatusCode,
			Code:       out.Error.Code,
			Message:    out.Error.Message,
			RequestID:  out.ID,
		}
	}
	return op, nil
}

// =============================================================================
// Request Plumbing
// =============================================================================

// mutate sends a mutating request and, when the endpoint accepts it
// asynchronously, blocks until the operation finishes.
func (c *HTTPChannel) mutate(ctx context.Context, subscription, method, path string, query url.Values, body any) error {
	resp, err := c.do(ctx, method, path, query, body, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return nil
	}
	requestID := resp.Header.Get(HeaderRequestID)
	if requestID == "" {
		return nil
	}
	return c.waitForOperation(ctx, subscription, requestID)
}

func (c *HTTPChannel) waitForOperation(ctx context.Context, subscription, requestID string) error {
	deadline := time.Now().Add(c.opTimeout)
	for {
		op, err := c.GetOperationStatus(ctx, subscription, requestID)
		if err != nil {
			return fmt.Errorf("failed to get status of operation %s: %w", requestID, err)
		}
		switch op.Status {
		case OperationSucceeded:
			return nil
		case OperationFailed:
			if op.Err != nil {
				return op.Err
			}
			return &Fault{StatusCode: op.HTTPStatusCode, Code: "OperationFailed", RequestID: requestID}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("operation %s: %w", requestID, ErrOperationTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

type response struct {
	StatusCode int
	Header     http.Header
}

func (c *HTTPChannel) do(ctx context.Context, method, path string, query url.Values, body, out any) (*response, error) {
	// path is already escaped; keep both forms so String does not escape
	// it a second time.
	u := *c.baseURL
	u.RawPath = u.EscapedPath() + path
	unescaped, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", u.RawPath, err)
	}
	u.Path = unescaped
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := xml.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(append([]byte(xml.Header), data...))
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(HeaderVersion, APIVersion)
	req.Header.Set("Accept", "application/xml")
	if body != nil {
		req.Header.Set("Content-Type", contentTypeXML)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	token := RequestToken(ctx)
	if token == "" {
		token = uuid.New().String()
	}
	req.Header.Set(HeaderClientRequestID, token)

	c.logger.Debug("management request", "method", method, "path", u.Path, "client_request_id", token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseFault(resp)
	}

	if out != nil {
		if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}

	return &response{StatusCode: resp.StatusCode, Header: resp.Header}, nil
}

// parseFault turns an error response into a *Fault. Bodies that are not
// management error documents still yield a fault with the HTTP status.
func parseFault(resp *http.Response) error {
	f := &Fault{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get(HeaderRequestID),
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var e ErrorXML
	if len(data) > 0 && xml.Unmarshal(data, &e) == nil {
		f.Code = e.Code
		f.Message = e.Message
	} else {
		f.Message = strings.TrimSpace(string(data))
	}
	if f.Message == "" {
		f.Message = http.StatusText(resp.StatusCode)
	}
	return f
}

func (c *HTTPChannel) path(subscription string, parts ...string) string {
	segs := make([]string, 0, len(parts)+1)
	segs = append(segs, url.PathEscape(subscription))
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	return "/" + strings.Join(segs, "/")
}

func (c *HTTPChannel) slotPath(target domain.DeploymentTarget) string {
	return c.path(target.Subscription, "services", "hostedservices", target.ServiceName, "deploymentslots", string(target.Slot))
}

func extensionConfiguration(ids []string) *ExtensionConfigurationXML {
	if len(ids) == 0 {
		return nil
	}
	cfg := &ExtensionConfigurationXML{}
	for _, id := range ids {
		cfg.AllRoles = append(cfg.AllRoles, ExtensionRefXML{ID: id})
	}
	return cfg
}
