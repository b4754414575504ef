package certstore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

func selfSigned(t *testing.T) (*x509.Certificate, []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "web.cloudapp.net"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, der
}

func TestThumbprint(t *testing.T) {
	cert, der := selfSigned(t)

	sum := sha1.Sum(der)
	want := strings.ToUpper(hex.EncodeToString(sum[:]))

	assert.Equal(t, want, Thumbprint(cert))
	assert.Len(t, Thumbprint(cert), 40)
}

func TestLoad_DER(t *testing.T) {
	cert, der := selfSigned(t)
	path := filepath.Join(t.TempDir(), "ssl.cer")
	require.NoError(t, os.WriteFile(path, der, 0o600))

	c, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, Thumbprint(cert), c.Thumbprint)
	assert.Equal(t, domain.CertificateFormatCER, c.Format)
	assert.Equal(t, path, c.Path)
	assert.Contains(t, c.Subject, "web.cloudapp.net")
	assert.Equal(t, der, c.Data)
}

func TestLoad_PEM(t *testing.T) {
	cert, der := selfSigned(t)
	path := filepath.Join(t.TempDir(), "ssl.pem")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	c, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, Thumbprint(cert), c.Thumbprint)
	assert.Equal(t, der, c.Data)
}

func TestLoad_PEMWrongBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.pem")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("x")})
	require.NoError(t, os.WriteFile(path, pemData, 0o600))

	_, err := Load(path, "")
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestLoad_GarbagePFX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ssl.pfx")
	require.NoError(t, os.WriteFile(path, []byte("definitely not pkcs12"), 0o600))

	_, err := Load(path, "secret")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode) || errors.Is(err, ErrPrivateKey))
	assert.Contains(t, err.Error(), path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.pfx"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadAll_StopsAtFirstFailure(t *testing.T) {
	_, der := selfSigned(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "a.cer")
	require.NoError(t, os.WriteFile(good, der, 0o600))

	certs, err := LoadAll([]Spec{{Path: good}})
	require.NoError(t, err)
	assert.Len(t, certs, 1)

	_, err = LoadAll([]Spec{{Path: good}, {Path: filepath.Join(dir, "missing.cer")}})
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	cert, der := selfSigned(t)
	c, err := DecodePublic(der)
	require.NoError(t, err)

	found, ok := Find([]Certificate{*c}, domain.CertificateRef{Thumbprint: strings.ToLower(Thumbprint(cert))})
	require.True(t, ok)
	assert.Equal(t, c.Thumbprint, found.Thumbprint)

	_, ok = Find([]Certificate{*c}, domain.CertificateRef{Thumbprint: "00"})
	assert.False(t, ok)
}
