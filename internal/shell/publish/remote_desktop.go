package publish

import (
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/channel"
)

const (
	rdpProviderNamespace = "Microsoft.Windows.Azure.Extensions"
	rdpType              = "RDP"
	rdpVersion           = "1.*"
)

var (
	ErrRemoteDesktopUsername = errors.New("remote desktop username is required")
	ErrRemoteDesktopPassword = errors.New("remote desktop password is required")
)

// RemoteDesktop enables remote desktop access to every role instance.
type RemoteDesktop struct {
	Username   string
	Password   string
	Expiration time.Time
}

// Validate checks that credentials are present.
func (r RemoteDesktop) Validate() error {
	if r.Username == "" {
		return ErrRemoteDesktopUsername
	}
	if r.Password == "" {
		return ErrRemoteDesktopPassword
	}
	return nil
}

type rdpPublicConfig struct {
	XMLName    xml.Name `xml:"PublicConfig"`
	UserName   string   `xml:"UserName"`
	Expiration string   `xml:"Expiration"`
}

type rdpPrivateConfig struct {
	XMLName  xml.Name `xml:"PrivateConfig"`
	Password string   `xml:"Password"`
}

// RemoteDesktopExtensionID is the extension ID registered for a slot.
func RemoteDesktopExtensionID(slot domain.Slot) string {
	return fmt.Sprintf("%s-RDP-Ext-0", slot)
}

// Extension builds the hosted service extension for slot. A zero
// expiration defaults to one year after now.
func (r RemoteDesktop) Extension(slot domain.Slot, now time.Time) (channel.Extension, error) {
	if err := r.Validate(); err != nil {
		return channel.Extension{}, err
	}
	exp := r.Expiration
	if exp.IsZero() {
		exp = now.AddDate(1, 0, 0)
	}

	pub, err := xml.Marshal(rdpPublicConfig{UserName: r.Username, Expiration: exp.UTC().Format("2006-01-02")})
	if err != nil {
		return channel.Extension{}, fmt.Errorf("failed to encode remote desktop configuration: %w", err)
	}
	priv, err := xml.Marshal(rdpPrivateConfig{Password: r.Password})
	if err != nil {
		return channel.Extension{}, fmt.Errorf("failed to encode remote desktop configuration: %w", err)
	}

	return channel.Extension{
		ID:                   RemoteDesktopExtensionID(slot),
		ProviderNamespace:    rdpProviderNamespace,
		Type:                 rdpType,
		Version:              rdpVersion,
		PublicConfiguration:  string(pub),
		PrivateConfiguration: string(priv),
	}, nil
}
