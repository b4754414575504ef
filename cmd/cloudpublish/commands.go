package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/certstore"
	"github.com/artpar/cloudpublish/internal/shell/channel"
	"github.com/artpar/cloudpublish/internal/shell/publish"
	"github.com/artpar/cloudpublish/internal/shell/settings"
	"github.com/artpar/cloudpublish/internal/shell/storage"
)

// app carries what every command needs.
type app struct {
	config *Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// orchestrator wires the HTTP channel, retry policy and blob storage.
func (a *app) orchestrator(notifier publish.Notifier) *publish.Orchestrator {
	m := a.config.Management
	dial := channel.NewHTTPDialer(channel.HTTPConfig{
		Endpoint:              m.Endpoint,
		Timeout:               m.Timeout,
		OperationPollInterval: m.OperationPollInterval,
		OperationTimeout:      m.OperationTimeout,
	}, m.TokenSource(), a.logger)

	r := a.config.Retry
	ch := channel.NewRetryChannel(dial, channel.RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   r.Multiplier,
	}, a.logger)

	uploaders := storage.NewFactory(storage.Config{
		Bucket:     a.config.Storage.Bucket,
		PresignTTL: a.config.Storage.PresignTTL,
	}, a.logger)

	p := a.config.Publish
	return publish.NewOrchestrator(ch, uploaders, notifier, publish.Config{
		PollInterval:       p.PollInterval,
		StartTimeout:       p.StartTimeout,
		ReadyTimeout:       p.ReadyTimeout,
		CertificateTimeout: p.CertificateTimeout,
		DNSSuffix:          p.DNSSuffix,
		UpgradeMode:        p.UpgradeMode,
	}, a.logger)
}

// =============================================================================
// Target Flags
// =============================================================================

// targetFlags are shared by every command that addresses a slot.
type targetFlags struct {
	settingsPath string
	subscription string
	service      string
	slot         string
}

func (f *targetFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.settingsPath, "settings", "", "Service settings file (YAML)")
	fs.StringVar(&f.subscription, "subscription", "", "Subscription ID")
	fs.StringVar(&f.service, "service", "", "Hosted service name")
	fs.StringVar(&f.slot, "slot", "", "Deployment slot: production or staging")
}

// load reads the settings file, if any, and overlays the flags and the
// configured subscription.
func (f *targetFlags) load(cfg *Config, override settings.ServiceSettings) (*settings.ServiceSettings, error) {
	s := &settings.ServiceSettings{}
	if f.settingsPath != "" {
		loaded, err := settings.Load(f.settingsPath)
		if err != nil {
			return nil, err
		}
		s = loaded
	}
	override.Subscription = f.subscription
	override.ServiceName = f.service
	override.Slot = f.slot
	s.Merge(override)
	if s.Subscription == "" {
		s.Subscription = cfg.Management.Subscription
	}
	return s, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// =============================================================================
// Publish
// =============================================================================

func (a *app) runPublish(ctx context.Context, args []string) int {
	fs := newFlagSet("publish", a.stderr)
	var tf targetFlags
	tf.register(fs)
	var override settings.ServiceSettings
	fs.StringVar(&override.Package, "package", "", "Package file or URL")
	fs.StringVar(&override.Configuration, "configuration", "", "Service configuration (.cscfg) file")
	fs.StringVar(&override.Label, "label", "", "Deployment label")
	fs.StringVar(&override.Location, "location", "", "Location for a new hosted service")
	fs.StringVar(&override.AffinityGroup, "affinity-group", "", "Affinity group for a new hosted service")
	fs.StringVar(&override.StorageAccount, "storage-account", "", "Storage account for package uploads")
	fs.BoolVar(&override.Launch, "launch", false, "Print the production URL prominently when done")
	fs.BoolVar(&override.ForceUpgrade, "force-upgrade", false, "Force the upgrade through")
	noStart := fs.Bool("no-start", false, "Leave the deployment suspended")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}
	if *noStart {
		start := false
		override.Start = &start
	}

	s, err := tf.load(a.config, override)
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return ExitConfigError
	}
	if err := s.Validate(); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return ExitConfigError
	}
	target, err := s.Target()
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return ExitConfigError
	}

	certs, err := certstore.LoadAll(s.CertificateSpecs())
	if err != nil {
		err = domain.NewPublishError(domain.KindCertificate, "load certificates", target, err)
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitCode(err)
	}
	opts, err := s.PublishOptions(certs)
	if err != nil {
		err = domain.NewPublishError(domain.KindConfig, "publish options", target, err)
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return exitCode(err)
	}

	source := &settings.LocalArtifact{
		PackagePath:       s.Package,
		ConfigurationPath: s.Configuration,
	}
	if !*yes {
		source.Confirm = a.confirm
	}

	console := newConsoleNotifier(a.stdout)
	result, err := a.orchestrator(console).Publish(ctx, target, source, opts)
	if err != nil {
		fmt.Fprintf(a.stderr, "publish failed at %s: %v\n", result.State, err)
		return exitCode(err)
	}
	if result.Declined() {
		fmt.Fprintln(a.stdout, "Publish cancelled.")
		return ExitSuccess
	}

	fmt.Fprintf(a.stdout, "Published %s as %s.\n", target, result.DeploymentName)
	if result.URL != "" {
		if result.Launch {
			fmt.Fprintf(a.stdout, "\n    Open %s\n\n", result.URL)
		} else {
			fmt.Fprintf(a.stdout, "URL: %s\n", result.URL)
		}
	}
	return ExitSuccess
}

// confirm asks on stdout and reads the answer from stdin. Anything other
// than y or yes declines.
func (a *app) confirm(prompt string) (bool, error) {
	fmt.Fprintf(a.stdout, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func (a *app) parseTarget(name string, args []string) (domain.DeploymentTarget, bool) {
	fs := newFlagSet(name, a.stderr)
	var tf targetFlags
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		return domain.DeploymentTarget{}, false
	}
	s, err := tf.load(a.config, settings.ServiceSettings{})
	if err == nil {
		var target domain.DeploymentTarget
		if target, err = s.Target(); err == nil {
			return target, true
		}
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	return domain.DeploymentTarget{}, false
}

func (a *app) runStart(ctx context.Context, args []string) int {
	target, ok := a.parseTarget("start", args)
	if !ok {
		return ExitConfigError
	}
	dep, err := a.orchestrator(newConsoleNotifier(a.stdout)).Start(ctx, target)
	if err != nil {
		fmt.Fprintf(a.stderr, "start failed: %v\n", err)
		return exitCode(err)
	}
	fmt.Fprintf(a.stdout, "%s is %s.\n", target, dep.Status)
	return ExitSuccess
}

func (a *app) runStop(ctx context.Context, args []string) int {
	target, ok := a.parseTarget("stop", args)
	if !ok {
		return ExitConfigError
	}
	if err := a.orchestrator(nil).Stop(ctx, target); err != nil {
		fmt.Fprintf(a.stderr, "stop failed: %v\n", err)
		return exitCode(err)
	}
	fmt.Fprintf(a.stdout, "%s suspended.\n", target)
	return ExitSuccess
}

func (a *app) runStatus(ctx context.Context, args []string) int {
	target, ok := a.parseTarget("status", args)
	if !ok {
		return ExitConfigError
	}
	dep, err := a.orchestrator(nil).Status(ctx, target)
	if err != nil {
		fmt.Fprintf(a.stderr, "status failed: %v\n", err)
		return exitCode(err)
	}
	printDeployment(a.stdout, dep)
	return ExitSuccess
}
