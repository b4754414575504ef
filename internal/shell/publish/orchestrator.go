// Package publish drives a publish of an application package to a hosted
// service slot.
// This is part of the Imperative Shell - every remote call goes through an
// explicit channel.Channel handle.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/cloudpublish/internal/core/domain"
	corepublish "github.com/artpar/cloudpublish/internal/core/publish"
	"github.com/artpar/cloudpublish/internal/shell/certstore"
	"github.com/artpar/cloudpublish/internal/shell/channel"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures an Orchestrator.
type Config struct {
	// PollInterval is the fixed wait between deployment status checks.
	PollInterval time.Duration

	// StartTimeout bounds the wait for the deployment to start. Zero waits
	// until interrupted.
	StartTimeout time.Duration

	// ReadyTimeout bounds the wait for every role instance to be ready.
	// Zero waits until interrupted.
	ReadyTimeout time.Duration

	// CertificatePollInterval and CertificateTimeout bound the wait for
	// uploaded certificates to be listed.
	CertificatePollInterval time.Duration
	CertificateTimeout      time.Duration

	// DNSSuffix is the zone production URLs are derived under.
	DNSSuffix string

	// UpgradeMode is passed to upgrades ("Auto" or "Manual").
	UpgradeMode string
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:            DefaultPollInterval,
		CertificatePollInterval: 2 * time.Second,
		CertificateTimeout:      5 * time.Minute,
		DNSSuffix:               corepublish.DefaultDNSSuffix,
		UpgradeMode:             "Auto",
	}
}

// Options are the per-publish inputs.
type Options struct {
	Label              string
	Location           string
	AffinityGroup      string
	ServiceLabel       string
	ServiceDescription string
	StorageAccount     string
	StartDeployment    bool
	Launch             bool
	ForceUpgrade       bool
	Certificates       []certstore.Certificate
	RemoteDesktop      *RemoteDesktop
}

// Result describes how far a publish got.
type Result struct {
	Target         domain.DeploymentTarget
	State          domain.PublishState
	Plan           corepublish.Plan
	DeploymentName string
	PackageURL     string
	Deployment     *domain.Deployment

	// URL is set for production deployments.
	URL string

	// Launch asks the caller to surface URL prominently.
	Launch bool
}

// Declined reports whether the publish halted because packaging was declined.
func (r *Result) Declined() bool {
	return r.State == domain.PublishDeclined
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs the publish state machine against a Channel.
type Orchestrator struct {
	channel   channel.Channel
	resolver  *Resolver
	uploaders UploaderFactory
	notifier  Notifier
	config    Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator. uploaders may be nil when every
// artifact carries a package URL.
func NewOrchestrator(ch channel.Channel, uploaders UploaderFactory, notifier Notifier, config Config, logger *slog.Logger) *Orchestrator {
	def := DefaultConfig()
	if config.PollInterval == 0 {
		config.PollInterval = def.PollInterval
	}
	if config.CertificatePollInterval == 0 {
		config.CertificatePollInterval = def.CertificatePollInterval
	}
	if config.CertificateTimeout == 0 {
		config.CertificateTimeout = def.CertificateTimeout
	}
	if config.DNSSuffix == "" {
		config.DNSSuffix = def.DNSSuffix
	}
	if config.UpgradeMode == "" {
		config.UpgradeMode = def.UpgradeMode
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}

	return &Orchestrator{
		channel:   ch,
		resolver:  NewResolver(ch),
		uploaders: uploaders,
		notifier:  notifier,
		config:    config,
		logger:    logger.With("component", "orchestrator"),
		now:       time.Now,
	}
}

// Publish deploys the artifact produced by source to target. The returned
// Result is never nil and records the state reached, also on failure.
// A declined packaging step yields a Declined result and a nil error.
func (o *Orchestrator) Publish(ctx context.Context, target domain.DeploymentTarget, source ArtifactSource, opts Options) (*Result, error) {
	attempt := domain.NewPublishAttempt(target)
	result := &Result{Target: target, State: attempt.State}
	logger := o.logger.With("target", target.String())

	if err := target.Validate(); err != nil {
		return o.fail(attempt, result, domain.NewPublishError(domain.KindConfig, "validate target", target, err))
	}
	location := ""
	if opts.AffinityGroup == "" {
		loc, err := domain.NormalizeLocation(opts.Location)
		if err != nil {
			return o.fail(attempt, result, domain.NewPublishError(domain.KindConfig, "resolve location", target,
				fmt.Errorf("%w: %q", err, opts.Location)))
		}
		location = loc
	}

	logger.Info("publish started", "start_deployment", opts.StartDeployment)

	// NotStarted -> Packaged
	attempt.SetStep("Packaging")
	artifact, err := source.Package(ctx, target)
	if errors.Is(err, domain.ErrPackagingDeclined) {
		o.transition(attempt, result, domain.PublishDeclined)
		logger.Info("packaging declined, nothing published")
		return result, nil
	}
	if err != nil {
		return o.fail(attempt, result, domain.NewPublishError(domain.KindConfig, "package", target, err))
	}

	result.PackageURL = artifact.PackageURL
	if artifact.PackagePath != "" {
		attempt.SetStep("Uploading package")
		url, err := o.uploadPackage(ctx, target, artifact.PackagePath, location, opts)
		if err != nil {
			return o.fail(attempt, result, err)
		}
		result.PackageURL = url
	}
	o.transition(attempt, result, domain.PublishPackaged)

	// Packaged -> ServiceEnsured
	attempt.SetStep("Resolving hosted service")
	existence, existing, err := o.resolve(ctx, target)
	if err != nil {
		return o.fail(attempt, result, domain.NewPublishError(domain.KindRemote, "resolve target", target, err))
	}
	plan := corepublish.DeterminePlan(existence)
	result.Plan = plan
	logger.Info("publish planned", "create_service", plan.CreateService, "action", plan.Action)

	if plan.CreateService {
		attempt.SetStep("Creating hosted service")
		if err := o.createService(ctx, target, location, opts); err != nil {
			return o.fail(attempt, result, domain.NewPublishError(domain.KindRemote, "create hosted service", target, err))
		}
	}
	o.transition(attempt, result, domain.PublishServiceEnsured)

	// ServiceEnsured -> DeploymentSubmitted
	attempt.SetStep("Synchronizing certificates")
	if err := o.syncCertificates(ctx, target, artifact.Certificates, opts.Certificates); err != nil {
		return o.fail(attempt, result, err)
	}

	var extensionIDs []string
	if opts.RemoteDesktop != nil {
		attempt.SetStep("Registering remote desktop extension")
		id, err := o.ensureRemoteDesktop(ctx, target, *opts.RemoteDesktop)
		if err != nil {
			return o.fail(attempt, result, err)
		}
		extensionIDs = append(extensionIDs, id)
	}

	label := opts.Label
	if label == "" {
		label = corepublish.DefaultLabel(target.ServiceName, o.now())
	}
	req, err := domain.NewDeploymentRequest(domain.DeploymentRequestParams{
		Name:            corepublish.DeploymentName(target),
		PackageURL:      result.PackageURL,
		Configuration:   artifact.Configuration,
		Label:           label,
		StartDeployment: opts.StartDeployment,
		ExtensionIDs:    extensionIDs,
	})
	if err != nil {
		return o.fail(attempt, result, domain.NewPublishError(domain.KindConfig, "build deployment request", target, err))
	}
	result.DeploymentName = req.Name()

	switch plan.Action {
	case corepublish.ActionUpgrade:
		attempt.SetStep("Upgrading deployment")
		o.info(target, "upgrading deployment in slot "+string(target.Slot))
		err = o.channel.UpgradeDeployment(ctx, target, req, channel.UpgradeOptions{
			Mode:  o.config.UpgradeMode,
			Force: opts.ForceUpgrade,
		})
		if err == nil && req.StartDeployment() && existing != nil && existing.Status.IsSuspended() {
			err = o.channel.UpdateDeploymentStatus(ctx, target, domain.DeploymentRunning)
		}
	default:
		attempt.SetStep("Creating deployment")
		o.info(target, "creating deployment in slot "+string(target.Slot))
		err = o.channel.CreateDeployment(ctx, target, req)
	}
	if err != nil {
		return o.fail(attempt, result, domain.NewPublishError(domain.KindRemote, string(plan.Action)+" deployment", target, err))
	}
	o.transition(attempt, result, domain.PublishDeploymentSubmitted)

	if !req.StartDeployment() {
		result.URL, _ = corepublish.ProductionURL(target, "", o.config.DNSSuffix)
		result.Launch = opts.Launch && result.URL != ""
		o.transition(attempt, result, domain.PublishComplete)
		logger.Info("publish complete, deployment not started")
		return result, nil
	}

	// DeploymentSubmitted -> Verifying -> Complete
	o.transition(attempt, result, domain.PublishVerifying)
	attempt.SetStep("Waiting for role instances")
	dep, err := o.verify(ctx, target)
	if err != nil {
		return o.fail(attempt, result, err)
	}
	result.Deployment = dep
	result.URL, _ = corepublish.ProductionURL(target, dep.URL, o.config.DNSSuffix)
	result.Launch = opts.Launch && result.URL != ""

	o.transition(attempt, result, domain.PublishComplete)
	logger.Info("publish complete", "deployment", dep.Name, "url", result.URL)
	return result, nil
}

// resolve performs the two existence lookups. The deployment lookup is
// skipped when the hosted service is absent.
func (o *Orchestrator) resolve(ctx context.Context, target domain.DeploymentTarget) (corepublish.Existence, *domain.Deployment, error) {
	serviceExists, err := o.resolver.ServiceExists(ctx, target)
	if err != nil {
		return corepublish.Existence{}, nil, err
	}
	if !serviceExists {
		return corepublish.Existence{}, nil, nil
	}
	dep, err := o.resolver.Deployment(ctx, target)
	if err != nil {
		return corepublish.Existence{}, nil, err
	}
	return corepublish.Existence{ServiceExists: true, DeploymentExists: dep != nil}, dep, nil
}

func (o *Orchestrator) createService(ctx context.Context, target domain.DeploymentTarget, location string, opts Options) error {
	label := opts.ServiceLabel
	if label == "" {
		label = target.ServiceName
	}
	o.info(target, "creating hosted service "+target.ServiceName)
	return o.channel.CreateHostedService(ctx, target.Subscription, channel.CreateHostedServiceInput{
		Name:          target.ServiceName,
		Label:         label,
		Description:   opts.ServiceDescription,
		Location:      location,
		AffinityGroup: opts.AffinityGroup,
	})
}

// uploadPackage ensures the storage account exists and uploads the package.
func (o *Orchestrator) uploadPackage(ctx context.Context, target domain.DeploymentTarget, path, location string, opts Options) (string, error) {
	if o.uploaders == nil {
		return "", domain.NewPublishError(domain.KindConfig, "upload package", target,
			errors.New("blob storage is not configured"))
	}

	account := opts.StorageAccount
	if account == "" {
		account = corepublish.StorageAccountName(target.ServiceName)
	}

	_, err := o.channel.GetStorageAccount(ctx, target.Subscription, account)
	if channel.IsNotFound(err) {
		o.info(target, "creating storage account "+account)
		err = o.channel.CreateStorageAccount(ctx, target.Subscription, channel.CreateStorageAccountInput{
			Name:          account,
			Label:         account,
			Location:      location,
			AffinityGroup: opts.AffinityGroup,
		})
	}
	if err != nil {
		return "", domain.NewPublishError(domain.KindRemote, "ensure storage account", target, err)
	}

	keys, err := o.channel.GetStorageKeys(ctx, target.Subscription, account)
	if err != nil {
		return "", domain.NewPublishError(domain.KindRemote, "get storage keys", target, err)
	}
	uploader, err := o.uploaders(ctx, *keys)
	if err != nil {
		return "", domain.NewPublishError(domain.KindConfig, "open blob storage", target, err)
	}

	blob := corepublish.PackageBlobName(target.ServiceName, path, o.now())
	o.info(target, "uploading package to "+blob)
	url, err := uploader.UploadPackage(ctx, blob, path)
	if err != nil {
		return "", domain.NewPublishError(domain.KindRemote, "upload package", target, err)
	}
	return url, nil
}

// syncCertificates uploads every referenced certificate the service does not
// have yet and waits until the service lists them. Nothing is called when
// the configuration references no certificates.
func (o *Orchestrator) syncCertificates(ctx context.Context, target domain.DeploymentTarget, referenced []domain.CertificateRef, local []certstore.Certificate) error {
	if len(referenced) == 0 {
		return nil
	}

	registered, err := o.channel.ListCertificates(ctx, target.Subscription, target.ServiceName)
	if err != nil {
		return domain.NewPublishError(domain.KindRemote, "list certificates", target, err)
	}
	missing := corepublish.MissingCertificates(referenced, registered)
	if len(missing) == 0 {
		return nil
	}

	for _, ref := range missing {
		cert, ok := certstore.Find(local, ref)
		if !ok {
			return domain.NewPublishError(domain.KindCertificate, "upload certificate", target,
				fmt.Errorf("certificate %s is referenced by the service configuration but no certificate file was supplied", ref.Thumbprint))
		}
		o.info(target, "uploading certificate "+cert.Thumbprint)
		err := o.channel.AddCertificate(ctx, target.Subscription, target.ServiceName, channel.CertificateUpload{
			Data:     cert.Data,
			Format:   cert.Format,
			Password: cert.Password,
		})
		if err != nil {
			return domain.NewPublishError(domain.KindRemote, "upload certificate", target, err)
		}
	}

	err = Poll(ctx, PollOptions{
		Interval:    o.config.CertificatePollInterval,
		MaxDuration: o.config.CertificateTimeout,
	}, func(ctx context.Context) (bool, error) {
		registered, err := o.channel.ListCertificates(ctx, target.Subscription, target.ServiceName)
		if err != nil {
			return false, err
		}
		return len(corepublish.MissingCertificates(missing, registered)) == 0, nil
	})
	if err != nil {
		return domain.NewPublishError(domain.KindRemote, "wait for certificates", target, err)
	}
	return nil
}

// ensureRemoteDesktop registers the remote desktop extension and returns
// its ID. An extension already registered under the same ID is reused.
func (o *Orchestrator) ensureRemoteDesktop(ctx context.Context, target domain.DeploymentTarget, rdp RemoteDesktop) (string, error) {
	ext, err := rdp.Extension(target.Slot, o.now())
	if err != nil {
		return "", domain.NewPublishError(domain.KindConfig, "configure remote desktop", target, err)
	}

	o.info(target, "enabling remote desktop for "+rdp.Username)
	err = o.channel.AddExtension(ctx, target.Subscription, target.ServiceName, ext)
	var f *channel.Fault
	if errors.As(err, &f) && f.StatusCode == http.StatusConflict {
		o.logger.Debug("remote desktop extension already registered", "id", ext.ID)
		err = nil
	}
	if err != nil {
		return "", domain.NewPublishError(domain.KindRemote, "add remote desktop extension", target, err)
	}
	return ext.ID, nil
}

// verify waits until the deployment has started and every role instance is
// ready, reporting each instance status change once.
func (o *Orchestrator) verify(ctx context.Context, target domain.DeploymentTarget) (*domain.Deployment, error) {
	var dep *domain.Deployment

	err := Poll(ctx, PollOptions{
		Interval:    o.config.PollInterval,
		MaxDuration: o.config.StartTimeout,
	}, func(ctx context.Context) (bool, error) {
		d, err := o.channel.GetDeploymentBySlot(ctx, target)
		if err != nil {
			return false, err
		}
		dep = d
		return d.Status.IsStarted(), nil
	})
	if err != nil {
		return nil, verificationError(target, err)
	}
	o.info(target, "deployment "+string(dep.Status))

	snapshot := corepublish.NewRoleInstanceSnapshot()
	err = Poll(ctx, PollOptions{
		Interval:    o.config.PollInterval,
		MaxDuration: o.config.ReadyTimeout,
	}, func(ctx context.Context) (bool, error) {
		d, err := o.channel.GetDeploymentBySlot(ctx, target)
		if err != nil {
			return false, err
		}
		dep = d
		for _, tr := range snapshot.Observe(d.RoleInstances) {
			o.notifier.Notify(Event{Kind: EventInstance, Target: target, Instance: &tr})
		}
		return corepublish.AllReady(d.RoleInstances), nil
	})
	if err != nil {
		return nil, verificationError(target, err)
	}
	return dep, nil
}

func verificationError(target domain.DeploymentTarget, err error) error {
	switch {
	case errors.Is(err, ErrPollTimeout):
		return domain.NewPublishError(domain.KindVerification, "verify deployment", target,
			fmt.Errorf("deployment did not become ready: %w", err))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.NewPublishError(domain.KindVerification, "verify deployment", target, err)
	default:
		return domain.NewPublishError(domain.KindVerification, "verify deployment", target,
			fmt.Errorf("cannot find deployment: %w", err))
	}
}

// =============================================================================
// State Helpers
// =============================================================================

func (o *Orchestrator) transition(attempt *domain.PublishAttempt, result *Result, to domain.PublishState) {
	if err := attempt.Transition(to); err != nil {
		o.logger.Error("invalid publish transition", "from", attempt.State, "to", to, "error", err)
		return
	}
	result.State = attempt.State
	o.notifier.Notify(Event{Kind: EventState, Target: attempt.Target, State: attempt.State})
}

func (o *Orchestrator) fail(attempt *domain.PublishAttempt, result *Result, err error) (*Result, error) {
	o.logger.Error("publish failed", "target", attempt.Target.String(), "step", attempt.CurrentStep, "error", err)
	if tErr := attempt.TransitionToFailed(err.Error()); tErr == nil {
		result.State = attempt.State
		o.notifier.Notify(Event{Kind: EventState, Target: attempt.Target, State: attempt.State, Message: err.Error()})
	}
	return result, err
}

func (o *Orchestrator) info(target domain.DeploymentTarget, msg string) {
	o.notifier.Notify(Event{Kind: EventInfo, Target: target, Message: msg})
}
