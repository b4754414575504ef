package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

func TestRemoteDesktop_Extension(t *testing.T) {
	rdp := RemoteDesktop{
		Username:   "admin",
		Password:   "p<w>d",
		Expiration: time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	ext, err := rdp.Extension(domain.SlotProduction, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "production-RDP-Ext-0", ext.ID)
	assert.Equal(t, "Microsoft.Windows.Azure.Extensions", ext.ProviderNamespace)
	assert.Equal(t, "1.*", ext.Version)
	assert.Equal(t, "<PublicConfig><UserName>admin</UserName><Expiration>2027-06-30</Expiration></PublicConfig>", ext.PublicConfiguration)
	assert.Equal(t, "<PrivateConfig><Password>p&lt;w&gt;d</Password></PrivateConfig>", ext.PrivateConfiguration)
}

func TestRemoteDesktop_DefaultExpiration(t *testing.T) {
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	ext, err := RemoteDesktop{Username: "a", Password: "b"}.Extension(domain.SlotStaging, now)
	require.NoError(t, err)
	assert.Contains(t, ext.PublicConfiguration, "<Expiration>2027-01-15</Expiration>")
}

func TestRemoteDesktop_Validate(t *testing.T) {
	assert.ErrorIs(t, RemoteDesktop{Password: "x"}.Validate(), ErrRemoteDesktopUsername)
	assert.ErrorIs(t, RemoteDesktop{Username: "x"}.Validate(), ErrRemoteDesktopPassword)
	assert.NoError(t, RemoteDesktop{Username: "x", Password: "y"}.Validate())
}
