// Package certstore loads service certificates from local files.
// This is part of the Imperative Shell - reads certificate files from disk.
package certstore

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

var (
	// ErrDecode is returned when a certificate file cannot be parsed.
	ErrDecode = errors.New("cannot decode certificate file")

	// ErrPrivateKey is returned when the private key of a PFX file cannot
	// be opened with the supplied password.
	ErrPrivateKey = errors.New("certificate private key is not accessible")
)

// Certificate is a certificate file ready to upload to a hosted service.
type Certificate struct {
	Path       string
	Thumbprint string
	Subject    string
	NotAfter   time.Time
	Format     domain.CertificateFormat
	Data       []byte
	Password   string
}

// Ref returns the reference the management API knows the certificate by.
func (c *Certificate) Ref() domain.CertificateRef {
	return domain.CertificateRef{
		Thumbprint: c.Thumbprint,
		Algorithm:  "sha1",
		Format:     c.Format,
	}
}

// Spec names a certificate file and the password protecting it.
type Spec struct {
	Path     string
	Password string
}

// Thumbprint returns the upper-case hex SHA-1 digest of the DER certificate.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Load reads a certificate file. Files ending in .cer, .crt or .pem are
// public certificates (DER or PEM); everything else is treated as PFX.
func Load(path, password string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate %s: %w", path, err)
	}

	var c *Certificate
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cer", ".crt", ".pem":
		c, err = DecodePublic(data)
	default:
		c, err = DecodePFX(data, password)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// LoadAll loads every certificate named in specs, failing on the first
// unreadable one.
func LoadAll(specs []Spec) ([]Certificate, error) {
	certs := make([]Certificate, 0, len(specs))
	for _, s := range specs {
		c, err := Load(s.Path, s.Password)
		if err != nil {
			return nil, err
		}
		certs = append(certs, *c)
	}
	return certs, nil
}

// DecodePFX parses a PKCS#12 file holding one certificate and its key.
func DecodePFX(data []byte, password string) (*Certificate, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, fmt.Errorf("%w: %v", ErrPrivateKey, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if key == nil {
		return nil, ErrPrivateKey
	}

	out := fromX509(cert, domain.CertificateFormatPFX)
	out.Data = data
	out.Password = password
	return out, nil
}

// DecodePublic parses a DER or PEM encoded public certificate.
func DecodePublic(data []byte) (*Certificate, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrDecode, block.Type)
		}
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	out := fromX509(cert, domain.CertificateFormatCER)
	out.Data = der
	return out, nil
}

func fromX509(cert *x509.Certificate, format domain.CertificateFormat) *Certificate {
	return &Certificate{
		Thumbprint: Thumbprint(cert),
		Subject:    cert.Subject.String(),
		NotAfter:   cert.NotAfter,
		Format:     format,
	}
}

// Find returns the certificate whose thumbprint matches ref.
func Find(certs []Certificate, ref domain.CertificateRef) (*Certificate, bool) {
	for i := range certs {
		if certs[i].Ref().Matches(ref) {
			return &certs[i], true
		}
	}
	return nil, false
}
