package publish

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

// DefaultDNSSuffix is the DNS zone hosted services are published under.
const DefaultDNSSuffix = "cloudapp.net"

// DefaultLabel returns the deployment label used when none is configured:
// the service name followed by the UTC publish time.
func DefaultLabel(serviceName string, now time.Time) string {
	return fmt.Sprintf("%s %s", serviceName, now.UTC().Format("2006-01-02 15:04:05"))
}

// DeploymentName returns a unique deployment name for the target.
func DeploymentName(target domain.DeploymentTarget) string {
	return fmt.Sprintf("%s-%s-%s", target.ServiceName, target.Slot, uuid.New().String()[:8])
}

// PackageBlobName returns the blob name a package is uploaded under.
func PackageBlobName(serviceName, packageFile string, now time.Time) string {
	base := packageFile
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return fmt.Sprintf("%s/%s_%s", serviceName, now.UTC().Format("20060102T150405Z"), base)
}

// ProductionURL returns the public URL of a production deployment. The URL
// reported by the platform wins; otherwise it is derived from the service name.
func ProductionURL(target domain.DeploymentTarget, reported, dnsSuffix string) (string, bool) {
	if !target.IsProduction() {
		return "", false
	}
	if reported != "" {
		return reported, true
	}
	if dnsSuffix == "" {
		dnsSuffix = DefaultDNSSuffix
	}
	return fmt.Sprintf("http://%s.%s/", strings.ToLower(target.ServiceName), dnsSuffix), true
}

// StorageAccountName derives a storage account name from a service name:
// lower-case letters and digits only, at most 24 characters.
func StorageAccountName(serviceName string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(serviceName) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	name := b.String()
	if len(name) > 24 {
		name = name[:24]
	}
	if len(name) < 3 {
		name = name + strings.Repeat("0", 3-len(name))
	}
	return name
}
