package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCertificateRef(t *testing.T) {
	ref, err := NewCertificateRef("ab:cd ef-01", "")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEF01", ref.Thumbprint)
	assert.Equal(t, "sha1", ref.Algorithm)
	assert.Equal(t, CertificateFormatPFX, ref.Format)

	_, err = NewCertificateRef("  ", CertificateFormatCER)
	assert.ErrorIs(t, err, ErrThumbprintRequired)
}

func TestCertificateRef_MatchesCaseInsensitive(t *testing.T) {
	a := CertificateRef{Thumbprint: "a1b2c3"}
	b := CertificateRef{Thumbprint: "A1B2C3"}
	c := CertificateRef{Thumbprint: "A1B2C4"}

	assert.True(t, a.Matches(b))
	assert.True(t, b.Matches(a))
	assert.False(t, a.Matches(c))
}
