package settings

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

var ErrInvalidInstanceCount = errors.New("role instance count must be at least 1")

// ServiceConfiguration is a parsed service configuration (.cscfg) document.
type ServiceConfiguration struct {
	XMLName     xml.Name  `xml:"ServiceConfiguration"`
	ServiceName string    `xml:"serviceName,attr"`
	Roles       []RoleXML `xml:"Role"`
}

// RoleXML is one role of a service configuration.
type RoleXML struct {
	Name         string           `xml:"name,attr"`
	Instances    InstancesXML     `xml:"Instances"`
	Settings     []SettingXML     `xml:"ConfigurationSettings>Setting"`
	Certificates []CertificateXML `xml:"Certificates>Certificate"`
}

// InstancesXML holds the instance count of a role.
type InstancesXML struct {
	Count int `xml:"count,attr"`
}

// SettingXML is a named configuration value.
type SettingXML struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// CertificateXML is a certificate a role expects to find installed.
type CertificateXML struct {
	Name                string `xml:"name,attr"`
	Thumbprint          string `xml:"thumbprint,attr"`
	ThumbprintAlgorithm string `xml:"thumbprintAlgorithm,attr"`
}

// LoadServiceConfiguration reads and parses a service configuration file.
// The raw bytes are returned alongside so they can be submitted verbatim.
func LoadServiceConfiguration(path string) (*ServiceConfiguration, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read service configuration: %w", err)
	}
	cfg, err := ParseServiceConfiguration(data)
	if err != nil {
		return nil, nil, err
	}
	return cfg, data, nil
}

// ParseServiceConfiguration parses a service configuration document.
func ParseServiceConfiguration(data []byte) (*ServiceConfiguration, error) {
	var cfg ServiceConfiguration
	if err := xml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse service configuration: %w", err)
	}
	for _, r := range cfg.Roles {
		if r.Instances.Count < 1 {
			return nil, fmt.Errorf("role %s: %w", r.Name, ErrInvalidInstanceCount)
		}
	}
	return &cfg, nil
}

// CertificateRefs returns every certificate the roles reference, once per
// thumbprint.
func (c *ServiceConfiguration) CertificateRefs() []domain.CertificateRef {
	var refs []domain.CertificateRef
	seen := make(map[string]bool)
	for _, r := range c.Roles {
		for _, cert := range r.Certificates {
			ref, err := domain.NewCertificateRef(cert.Thumbprint, domain.CertificateFormatPFX)
			if err != nil || seen[ref.Thumbprint] {
				continue
			}
			if cert.ThumbprintAlgorithm != "" {
				ref.Algorithm = cert.ThumbprintAlgorithm
			}
			seen[ref.Thumbprint] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// RoleInstances returns the initial role instances the configuration
// describes, named Role_IN_n.
func (c *ServiceConfiguration) RoleInstances(status domain.InstanceStatus) []domain.RoleInstance {
	var out []domain.RoleInstance
	for _, r := range c.Roles {
		for i := 0; i < r.Instances.Count; i++ {
			out = append(out, domain.RoleInstance{
				RoleName:     r.Name,
				InstanceName: fmt.Sprintf("%s_IN_%d", r.Name, i),
				Status:       status,
			})
		}
	}
	return out
}
