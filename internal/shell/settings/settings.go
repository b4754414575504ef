// Package settings loads service settings and service configuration
// documents from local files.
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/certstore"
	"github.com/artpar/cloudpublish/internal/shell/publish"
)

var (
	ErrPackageRequired       = errors.New("package is required")
	ErrConfigurationRequired = errors.New("service configuration file is required")
	ErrLocationConflict      = errors.New("location and affinity group are mutually exclusive")
)

// CertificateFile names a certificate to upload.
type CertificateFile struct {
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
}

// RemoteDesktopSettings configures remote desktop access.
type RemoteDesktopSettings struct {
	Enabled    bool   `yaml:"enabled"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Expiration string `yaml:"expiration"` // YYYY-MM-DD
}

// ServiceSettings describes what to publish and where.
type ServiceSettings struct {
	Subscription       string                `yaml:"subscription"`
	ServiceName        string                `yaml:"service"`
	Slot               string                `yaml:"slot"`
	Location           string                `yaml:"location"`
	AffinityGroup      string                `yaml:"affinity_group"`
	StorageAccount     string                `yaml:"storage_account"`
	Label              string                `yaml:"label"`
	ServiceLabel       string                `yaml:"service_label"`
	ServiceDescription string                `yaml:"service_description"`
	Package            string                `yaml:"package"`
	Configuration      string                `yaml:"configuration"`
	Start              *bool                 `yaml:"start"`
	Launch             bool                  `yaml:"launch"`
	ForceUpgrade       bool                  `yaml:"force_upgrade"`
	Certificates       []CertificateFile     `yaml:"certificates"`
	RemoteDesktop      RemoteDesktopSettings `yaml:"remote_desktop"`
}

// Load reads service settings from a YAML file.
func Load(path string) (*ServiceSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// Parse decodes service settings from YAML.
func Parse(data []byte) (*ServiceSettings, error) {
	var s ServiceSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return &s, nil
}

// Merge overlays every non-zero field of override onto s.
func (s *ServiceSettings) Merge(override ServiceSettings) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.Subscription, override.Subscription)
	set(&s.ServiceName, override.ServiceName)
	set(&s.Slot, override.Slot)
	set(&s.Location, override.Location)
	set(&s.AffinityGroup, override.AffinityGroup)
	set(&s.StorageAccount, override.StorageAccount)
	set(&s.Label, override.Label)
	set(&s.Package, override.Package)
	set(&s.Configuration, override.Configuration)
	if override.Start != nil {
		s.Start = override.Start
	}
	if override.Launch {
		s.Launch = true
	}
	if override.ForceUpgrade {
		s.ForceUpgrade = true
	}
	if len(override.Certificates) > 0 {
		s.Certificates = override.Certificates
	}
}

// StartDeployment reports whether the deployment starts after submission.
// Unset means true.
func (s *ServiceSettings) StartDeployment() bool {
	return s.Start == nil || *s.Start
}

// Target returns the validated deployment target. An empty slot means
// production.
func (s *ServiceSettings) Target() (domain.DeploymentTarget, error) {
	slot := s.Slot
	if slot == "" {
		slot = string(domain.SlotProduction)
	}
	return domain.NewDeploymentTarget(s.Subscription, s.ServiceName, slot)
}

// Validate checks the settings needed for a publish.
func (s *ServiceSettings) Validate() error {
	if _, err := s.Target(); err != nil {
		return err
	}
	if s.Package == "" {
		return ErrPackageRequired
	}
	if s.Configuration == "" {
		return ErrConfigurationRequired
	}
	if s.Location != "" && s.AffinityGroup != "" {
		return ErrLocationConflict
	}
	if s.Location != "" {
		if _, err := domain.NormalizeLocation(s.Location); err != nil {
			return fmt.Errorf("%w: %q", err, s.Location)
		}
	}
	if s.RemoteDesktop.Enabled {
		if _, err := s.remoteDesktop(); err != nil {
			return err
		}
	}
	return nil
}

// CertificateSpecs returns the certificate files to load.
func (s *ServiceSettings) CertificateSpecs() []certstore.Spec {
	specs := make([]certstore.Spec, 0, len(s.Certificates))
	for _, c := range s.Certificates {
		specs = append(specs, certstore.Spec{Path: c.Path, Password: c.Password})
	}
	return specs
}

// PublishOptions converts the settings into orchestrator options. The
// certificates must already be loaded.
func (s *ServiceSettings) PublishOptions(certs []certstore.Certificate) (publish.Options, error) {
	opts := publish.Options{
		Label:              s.Label,
		Location:           s.Location,
		AffinityGroup:      s.AffinityGroup,
		ServiceLabel:       s.ServiceLabel,
		ServiceDescription: s.ServiceDescription,
		StorageAccount:     s.StorageAccount,
		StartDeployment:    s.StartDeployment(),
		Launch:             s.Launch,
		ForceUpgrade:       s.ForceUpgrade,
		Certificates:       certs,
	}
	if s.RemoteDesktop.Enabled {
		rdp, err := s.remoteDesktop()
		if err != nil {
			return publish.Options{}, err
		}
		opts.RemoteDesktop = rdp
	}
	return opts, nil
}

func (s *ServiceSettings) remoteDesktop() (*publish.RemoteDesktop, error) {
	rdp := &publish.RemoteDesktop{
		Username: s.RemoteDesktop.Username,
		Password: s.RemoteDesktop.Password,
	}
	if s.RemoteDesktop.Expiration != "" {
		exp, err := time.Parse("2006-01-02", s.RemoteDesktop.Expiration)
		if err != nil {
			return nil, fmt.Errorf("invalid remote desktop expiration %q: %w", s.RemoteDesktop.Expiration, err)
		}
		rdp.Expiration = exp
	}
	if err := rdp.Validate(); err != nil {
		return nil, err
	}
	return rdp, nil
}
