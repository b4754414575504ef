package domain

import (
	"errors"
	"strings"
)

var ErrThumbprintRequired = errors.New("certificate thumbprint is required")

// CertificateFormat is the container format of an uploaded certificate.
type CertificateFormat string

const (
	CertificateFormatPFX CertificateFormat = "pfx"
	CertificateFormatCER CertificateFormat = "cer"
)

// CertificateRef identifies a certificate by thumbprint.
type CertificateRef struct {
	Thumbprint string            `json:"thumbprint"`
	Algorithm  string            `json:"algorithm"`
	Format     CertificateFormat `json:"format"`
}

// NewCertificateRef creates a reference with a normalized SHA-1 thumbprint.
func NewCertificateRef(thumbprint string, format CertificateFormat) (CertificateRef, error) {
	tp := NormalizeThumbprint(thumbprint)
	if tp == "" {
		return CertificateRef{}, ErrThumbprintRequired
	}
	if format == "" {
		format = CertificateFormatPFX
	}
	return CertificateRef{Thumbprint: tp, Algorithm: "sha1", Format: format}, nil
}

// NormalizeThumbprint upper-cases a thumbprint and strips separators.
func NormalizeThumbprint(tp string) string {
	r := strings.NewReplacer(" ", "", ":", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(tp)))
}

// Matches reports whether two references name the same certificate.
// Thumbprints compare case-insensitively.
func (c CertificateRef) Matches(other CertificateRef) bool {
	return strings.EqualFold(NormalizeThumbprint(c.Thumbprint), NormalizeThumbprint(other.Thumbprint))
}
