package settings

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/publish"
)

// ConfirmFunc asks the operator a yes/no question.
type ConfirmFunc func(prompt string) (bool, error)

// LocalArtifact is a package built ahead of time. The package is either a
// local file or an http(s) URL already in blob storage.
type LocalArtifact struct {
	PackagePath       string
	ConfigurationPath string

	// Confirm, when set, is asked before anything is read. Answering no
	// declines the publish.
	Confirm ConfirmFunc
}

var _ publish.ArtifactSource = (*LocalArtifact)(nil)

// Package implements publish.ArtifactSource.
func (a *LocalArtifact) Package(_ context.Context, target domain.DeploymentTarget) (*publish.Artifact, error) {
	if a.PackagePath == "" {
		return nil, ErrPackageRequired
	}
	if a.ConfigurationPath == "" {
		return nil, ErrConfigurationRequired
	}

	if a.Confirm != nil {
		ok, err := a.Confirm(fmt.Sprintf("Publish %s to %s?", a.PackagePath, target))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrPackagingDeclined
		}
	}

	cfg, data, err := LoadServiceConfiguration(a.ConfigurationPath)
	if err != nil {
		return nil, err
	}

	art := &publish.Artifact{
		Configuration: data,
		Certificates:  cfg.CertificateRefs(),
	}
	if isRemote(a.PackagePath) {
		art.PackageURL = a.PackagePath
		return art, nil
	}

	info, err := os.Stat(a.PackagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("package %s is a directory", a.PackagePath)
	}
	art.PackagePath = a.PackagePath
	return art, nil
}

func isRemote(p string) bool {
	u, err := url.Parse(p)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
