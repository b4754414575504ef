package publish

import "github.com/artpar/cloudpublish/internal/core/domain"

// MissingCertificates returns the referenced certificates that are not in
// registered, in reference order and without duplicates. Thumbprints compare
// case-insensitively, so re-running against a fully registered set yields
// nothing to upload.
func MissingCertificates(referenced, registered []domain.CertificateRef) []domain.CertificateRef {
	have := make(map[string]bool, len(registered))
	for _, c := range registered {
		have[domain.NormalizeThumbprint(c.Thumbprint)] = true
	}

	var missing []domain.CertificateRef
	for _, c := range referenced {
		tp := domain.NormalizeThumbprint(c.Thumbprint)
		if tp == "" || have[tp] {
			continue
		}
		have[tp] = true
		missing = append(missing, c)
	}
	return missing
}
