package emulator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/certstore"
	"github.com/artpar/cloudpublish/internal/shell/channel"
	"github.com/artpar/cloudpublish/internal/shell/settings"
	"github.com/artpar/cloudpublish/internal/shell/store"
)

var errUnknownExtension = errors.New("extension is not registered with the hosted service")

// =============================================================================
// Hosted Service Handlers
// =============================================================================

func (s *Server) handleCreateHostedService(w http.ResponseWriter, r *http.Request) {
	sub := chi.URLParam(r, "subscription")

	var in channel.CreateHostedServiceXML
	if err := decodeBody(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if err := domain.ValidateServiceName(in.ServiceName); err != nil {
		s.badRequest(w, r, err.Error())
		return
	}
	if in.Label == "" {
		s.badRequest(w, r, "the label is required")
		return
	}
	location, ok := s.placement(w, r, in.Location, in.AffinityGroup)
	if !ok {
		return
	}

	svc := &store.HostedService{
		Subscription:  sub,
		Name:          in.ServiceName,
		Label:         in.Label,
		Description:   in.Description,
		Location:      location,
		AffinityGroup: in.AffinityGroup,
		Status:        "Created",
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateHostedService(r.Context(), svc); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Info("hosted service created", "subscription", sub, "service", svc.Name)
	s.accepted(w, r, sub)
}

func (s *Server) handleGetHostedService(w http.ResponseWriter, r *http.Request) {
	svc, err := s.store.GetHostedService(r.Context(), chi.URLParam(r, "subscription"), chi.URLParam(r, "service"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	out := hostedServiceXML(svc)
	out.URL = resourceURL(r)
	s.writeXML(w, http.StatusOK, out)
}

func (s *Server) handleListHostedServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.store.ListHostedServices(r.Context(), chi.URLParam(r, "subscription"), store.DefaultListOptions())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	out := channel.HostedServicesXML{}
	for i := range services {
		item := hostedServiceXML(&services[i])
		item.URL = strings.TrimSuffix(resourceURL(r), "/") + "/" + services[i].Name
		out.Services = append(out.Services, item)
	}
	s.writeXML(w, http.StatusOK, out)
}

func hostedServiceXML(svc *store.HostedService) channel.HostedServiceXML {
	return channel.HostedServiceXML{
		ServiceName: svc.Name,
		Properties: channel.HostedServicePropertiesXML{
			Description:   svc.Description,
			Location:      svc.Location,
			AffinityGroup: svc.AffinityGroup,
			Label:         svc.Label,
			Status:        svc.Status,
		},
	}
}

// =============================================================================
// Storage Account Handlers
// =============================================================================

func (s *Server) handleCreateStorageAccount(w http.ResponseWriter, r *http.Request) {
	sub := chi.URLParam(r, "subscription")

	var in channel.CreateStorageServiceXML
	if err := decodeBody(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if !validStorageName(in.ServiceName) {
		s.badRequest(w, r, "storage account names are 3 to 24 lower-case letters and digits")
		return
	}
	location, ok := s.placement(w, r, in.Location, in.AffinityGroup)
	if !ok {
		return
	}
	label := in.Label
	if label == "" {
		label = in.ServiceName
	}

	acct := &store.StorageAccount{
		Subscription:  sub,
		Name:          in.ServiceName,
		Label:         label,
		Location:      location,
		AffinityGroup: in.AffinityGroup,
		Status:        "Created",
		AccessKey:     newKey(),
		SecretKey:     newKey(),
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateStorageAccount(r.Context(), acct); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Info("storage account created", "subscription", sub, "account", acct.Name)
	s.accepted(w, r, sub)
}

func (s *Server) handleGetStorageAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.store.GetStorageAccount(r.Context(), chi.URLParam(r, "subscription"), chi.URLParam(r, "account"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeXML(w, http.StatusOK, channel.StorageServiceXML{
		URL:         resourceURL(r),
		ServiceName: acct.Name,
		Properties: channel.StorageServicePropertiesXML{
			Label:     acct.Label,
			Location:  acct.Location,
			Status:    acct.Status,
			Endpoints: []string{s.blobEndpoint(acct.Name)},
		},
	})
}

func (s *Server) handleGetStorageKeys(w http.ResponseWriter, r *http.Request) {
	acct, err := s.store.GetStorageAccount(r.Context(), chi.URLParam(r, "subscription"), chi.URLParam(r, "account"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeXML(w, http.StatusOK, channel.StorageServiceKeysXML{
		URL:       resourceURL(r),
		Endpoint:  s.blobEndpoint(acct.Name),
		Region:    s.config.StorageRegion,
		Primary:   acct.AccessKey,
		Secondary: acct.SecretKey,
	})
}

func (s *Server) blobEndpoint(account string) string {
	if s.config.StorageEndpoint != "" {
		return s.config.StorageEndpoint
	}
	return fmt.Sprintf("https://%s.blob.%s/", account, s.config.DNSSuffix)
}

func validStorageName(name string) bool {
	if len(name) < 3 || len(name) > 24 {
		return false
	}
	for _, c := range name {
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

func newKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// =============================================================================
// Certificate and Extension Handlers
// =============================================================================

func (s *Server) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")
	if _, err := s.store.GetHostedService(r.Context(), sub, service); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	certs, err := s.store.ListCertificates(r.Context(), sub, service)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	out := channel.CertificatesXML{}
	base := strings.TrimSuffix(resourceURL(r), "/")
	for _, c := range certs {
		out.Certificates = append(out.Certificates, channel.CertificateXML{
			CertificateURL:      base + "/" + c.Algorithm + "-" + c.Thumbprint,
			Thumbprint:          c.Thumbprint,
			ThumbprintAlgorithm: c.Algorithm,
		})
	}
	s.writeXML(w, http.StatusOK, out)
}

func (s *Server) handleAddCertificate(w http.ResponseWriter, r *http.Request) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")

	var in channel.CertificateFileXML
	if err := decodeBody(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	data, err := base64.StdEncoding.DecodeString(in.Data)
	if err != nil || len(data) == 0 {
		s.badRequest(w, r, "certificate data must be base64")
		return
	}

	var cert *certstore.Certificate
	switch domain.CertificateFormat(strings.ToLower(in.CertificateFormat)) {
	case domain.CertificateFormatPFX:
		cert, err = certstore.DecodePFX(data, in.Password)
	case domain.CertificateFormatCER:
		cert, err = certstore.DecodePublic(data)
	default:
		s.badRequest(w, r, "unsupported certificate format "+in.CertificateFormat)
		return
	}
	if err != nil {
		s.badRequest(w, r, err.Error())
		return
	}

	rec := &store.Certificate{
		Subscription: sub,
		Service:      service,
		Thumbprint:   cert.Thumbprint,
		Algorithm:    "sha1",
		Format:       string(cert.Format),
		Data:         data,
		CreatedAt:    s.now(),
	}
	if err := s.store.AddCertificate(r.Context(), rec); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Info("certificate added", "service", service, "thumbprint", rec.Thumbprint)
	s.accepted(w, r, sub)
}

func (s *Server) handleAddExtension(w http.ResponseWriter, r *http.Request) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")

	var in channel.ExtensionXML
	if err := decodeBody(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if in.ID == "" || in.ProviderNamespace == "" || in.Type == "" {
		s.badRequest(w, r, "extension id, provider namespace and type are required")
		return
	}
	public, err := base64.StdEncoding.DecodeString(in.PublicConfiguration)
	if err != nil {
		s.badRequest(w, r, "public configuration must be base64")
		return
	}
	private, err := base64.StdEncoding.DecodeString(in.PrivateConfiguration)
	if err != nil {
		s.badRequest(w, r, "private configuration must be base64")
		return
	}

	ext := &store.Extension{
		Subscription:         sub,
		Service:              service,
		ID:                   in.ID,
		ProviderNamespace:    in.ProviderNamespace,
		Type:                 in.Type,
		Version:              in.Version,
		Thumbprint:           in.Thumbprint,
		PublicConfiguration:  string(public),
		PrivateConfiguration: string(private),
		CreatedAt:            s.now(),
	}
	if err := s.store.AddExtension(r.Context(), ext); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Info("extension added", "service", service, "extension", ext.ID)
	s.accepted(w, r, sub)
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")
	slot, ok := s.slot(w, r)
	if !ok {
		return
	}

	var out *store.Deployment
	err := s.store.WithTx(r.Context(), func(tx store.Store) error {
		d, err := tx.GetDeployment(r.Context(), sub, service, slot)
		if err != nil {
			return err
		}
		if advance(d) {
			if err := tx.UpdateDeployment(r.Context(), d); err != nil {
				return err
			}
		}
		out = d
		return nil
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeXML(w, http.StatusOK, s.deploymentXML(out))
}

// handleSlotAction dispatches POSTs on a slot by the comp query parameter.
func (s *Server) handleSlotAction(w http.ResponseWriter, r *http.Request) {
	slot, ok := s.slot(w, r)
	if !ok {
		return
	}
	switch comp := r.URL.Query().Get("comp"); comp {
	case "":
		s.createDeployment(w, r, slot)
	case "upgrade":
		s.upgradeDeployment(w, r, slot)
	case "status":
		s.updateDeploymentStatus(w, r, slot)
	default:
		s.badRequest(w, r, "unknown comp "+comp)
	}
}

func (s *Server) createDeployment(w http.ResponseWriter, r *http.Request, slot domain.Slot) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")

	var in channel.CreateDeploymentXML
	if err := decodeBody(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	if in.Name == "" || in.PackageURL == "" || in.Label == "" {
		s.badRequest(w, r, "name, package URL and label are required")
		return
	}
	cfgData, cscfg, ok := s.configuration(w, r, in.Configuration)
	if !ok {
		return
	}

	d := &store.Deployment{
		Subscription:  sub,
		Service:       service,
		Slot:          slot,
		Name:          in.Name,
		Label:         in.Label,
		PackageURL:    in.PackageURL,
		Configuration: cfgData,
		ExtensionIDs:  extensionIDs(in.ExtensionConfiguration),
		CreatedAt:     s.now(),
	}
	if in.StartDeployment {
		d.Status = domain.DeploymentDeploying
		d.RoleInstances = cscfg.RoleInstances(domain.InstanceInitializing)
	} else {
		d.Status = domain.DeploymentSuspended
		d.RoleInstances = cscfg.RoleInstances(domain.InstanceStopped)
	}

	err := s.store.WithTx(r.Context(), func(tx store.Store) error {
		if _, err := tx.GetHostedService(r.Context(), sub, service); err != nil {
			return err
		}
		if err := checkExtensions(r.Context(), tx, sub, service, d.ExtensionIDs); err != nil {
			return err
		}
		return tx.CreateDeployment(r.Context(), d)
	})
	if err != nil {
		s.writeDeploymentError(w, r, err)
		return
	}
	s.logger.Info("deployment created",
		"service", service,
		"slot", slot,
		"deployment", d.Name,
		"status", d.Status,
	)
	s.accepted(w, r, sub)
}

func (s *Server) upgradeDeployment(w http.ResponseWriter, r *http.Request, slot domain.Slot) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")

	var in channel.UpgradeDeploymentXML
	if err := decodeBody(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	switch strings.ToLower(in.Mode) {
	case "auto", "manual", "simultaneous":
	default:
		s.badRequest(w, r, "invalid upgrade mode "+in.Mode)
		return
	}
	if in.PackageURL == "" || in.Label == "" {
		s.badRequest(w, r, "package URL and label are required")
		return
	}
	cfgData, cscfg, ok := s.configuration(w, r, in.Configuration)
	if !ok {
		return
	}

	err := s.store.WithTx(r.Context(), func(tx store.Store) error {
		d, err := tx.GetDeployment(r.Context(), sub, service, slot)
		if err != nil {
			return err
		}
		if in.ExtensionConfiguration != nil {
			d.ExtensionIDs = extensionIDs(in.ExtensionConfiguration)
		}
		if err := checkExtensions(r.Context(), tx, sub, service, d.ExtensionIDs); err != nil {
			return err
		}
		d.PackageURL = in.PackageURL
		d.Label = in.Label
		d.Configuration = cfgData
		if d.Status.IsSuspended() {
			d.Status = domain.DeploymentSuspended
			d.RoleInstances = cscfg.RoleInstances(domain.InstanceStopped)
		} else {
			d.Status = domain.DeploymentRunningTransitioning
			d.RoleInstances = cscfg.RoleInstances(domain.InstanceInitializing)
		}
		return tx.UpdateDeployment(r.Context(), d)
	})
	if err != nil {
		s.writeDeploymentError(w, r, err)
		return
	}
	s.logger.Info("deployment upgraded", "service", service, "slot", slot, "mode", in.Mode)
	s.accepted(w, r, sub)
}

func (s *Server) updateDeploymentStatus(w http.ResponseWriter, r *http.Request, slot domain.Slot) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")

	var in channel.UpdateDeploymentStatusXML
	if err := decodeBody(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid request body: "+err.Error())
		return
	}
	status := domain.DeploymentStatus(in.Status)
	if status != domain.DeploymentRunning && status != domain.DeploymentSuspended {
		s.badRequest(w, r, "status must be Running or Suspended")
		return
	}

	err := s.store.WithTx(r.Context(), func(tx store.Store) error {
		d, err := tx.GetDeployment(r.Context(), sub, service, slot)
		if err != nil {
			return err
		}
		if !setStatus(d, status) {
			return nil
		}
		return tx.UpdateDeployment(r.Context(), d)
	})
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Info("deployment status updated", "service", service, "slot", slot, "status", status)
	s.accepted(w, r, sub)
}

func (s *Server) handleDeleteDeployment(w http.ResponseWriter, r *http.Request) {
	sub, service := chi.URLParam(r, "subscription"), chi.URLParam(r, "service")
	slot, ok := s.slot(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteDeployment(r.Context(), sub, service, slot); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.Info("deployment deleted", "service", service, "slot", slot)
	s.accepted(w, r, sub)
}

func (s *Server) deploymentXML(d *store.Deployment) channel.DeploymentXML {
	out := channel.DeploymentXML{
		Name:           d.Name,
		DeploymentSlot: slotDisplayName(d.Slot),
		PrivateID:      privateID(d),
		Status:         string(d.Status),
		Label:          d.Label,
		Configuration:  base64.StdEncoding.EncodeToString(d.Configuration),
	}
	if d.Slot == domain.SlotProduction {
		out.URL = fmt.Sprintf("http://%s.%s/", d.Service, s.config.DNSSuffix)
	} else {
		out.URL = fmt.Sprintf("http://%s.%s/", out.PrivateID, s.config.DNSSuffix)
	}
	for _, ri := range d.RoleInstances {
		out.RoleInstances = append(out.RoleInstances, channel.RoleInstanceXML{
			RoleName:       ri.RoleName,
			InstanceName:   ri.InstanceName,
			InstanceStatus: string(ri.Status),
		})
	}
	return out
}

func (s *Server) writeDeploymentError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUnknownExtension) {
		s.badRequest(w, r, err.Error())
		return
	}
	s.writeStoreError(w, r, err)
}

// =============================================================================
// Operation Handlers
// =============================================================================

func (s *Server) handleGetOperation(w http.ResponseWriter, r *http.Request) {
	op, err := s.store.GetOperation(r.Context(), chi.URLParam(r, "subscription"), chi.URLParam(r, "requestID"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	out := channel.OperationXML{
		ID:             op.ID,
		Status:         op.Status,
		HTTPStatusCode: op.HTTPStatus,
	}
	if op.ErrorCode != "" {
		out.Error = &channel.OperationErrorXML{Code: op.ErrorCode, Message: op.ErrorMessage}
	}
	s.writeXML(w, http.StatusOK, out)
}

// =============================================================================
// Request Helpers
// =============================================================================

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	s.writeFault(w, r, http.StatusBadRequest, "BadRequest", message)
}

func (s *Server) slot(w http.ResponseWriter, r *http.Request) (domain.Slot, bool) {
	slot, err := domain.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		s.badRequest(w, r, err.Error())
		return "", false
	}
	return slot, true
}

// placement resolves the location of a new service or account. Exactly one
// of location and affinity group must be set.
func (s *Server) placement(w http.ResponseWriter, r *http.Request, location, affinityGroup string) (string, bool) {
	if (location == "") == (affinityGroup == "") {
		s.badRequest(w, r, "exactly one of location and affinity group is required")
		return "", false
	}
	if location == "" {
		return "", true
	}
	loc, err := domain.NormalizeLocation(location)
	if err != nil {
		s.badRequest(w, r, fmt.Sprintf("%v: %q", err, location))
		return "", false
	}
	return loc, true
}

func (s *Server) configuration(w http.ResponseWriter, r *http.Request, encoded string) ([]byte, *settings.ServiceConfiguration, bool) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(data) == 0 {
		s.badRequest(w, r, "configuration must be a base64 service configuration document")
		return nil, nil, false
	}
	cscfg, err := settings.ParseServiceConfiguration(data)
	if err != nil {
		s.badRequest(w, r, err.Error())
		return nil, nil, false
	}
	return data, cscfg, true
}

func checkExtensions(ctx context.Context, tx store.Store, sub, service string, ids []string) error {
	for _, id := range ids {
		if _, err := tx.GetExtension(ctx, sub, service, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: %s", errUnknownExtension, id)
			}
			return err
		}
	}
	return nil
}

func extensionIDs(cfg *channel.ExtensionConfigurationXML) []string {
	if cfg == nil {
		return nil
	}
	ids := make([]string, 0, len(cfg.AllRoles))
	for _, ref := range cfg.AllRoles {
		ids = append(ids, ref.ID)
	}
	return ids
}

func resourceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

func slotDisplayName(slot domain.Slot) string {
	if slot == domain.SlotStaging {
		return "Staging"
	}
	return "Production"
}

// privateID is a stable per-deployment identifier used for staging URLs.
func privateID(d *store.Deployment) string {
	key := d.Subscription + "/" + d.Service + "/" + string(d.Slot) + "/" + d.Name
	return strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(), "-", "")
}
