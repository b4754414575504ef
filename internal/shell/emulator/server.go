// Package emulator serves the service management API locally, backed by the
// SQLite store. Operations complete synchronously and deployments progress
// one step each time they are read.
package emulator

import (
	"context"
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/cloudpublish/internal/shell/channel"
	"github.com/artpar/cloudpublish/internal/shell/store"
)

// =============================================================================
// Config
// =============================================================================

// Config holds emulator settings.
type Config struct {
	// Token, when set, must be presented as a bearer token.
	Token string

	// StorageEndpoint is the blob endpoint reported in storage keys. Empty
	// means a per-account endpoint under the DNS suffix.
	StorageEndpoint string
	StorageRegion   string

	// DNSSuffix is the zone deployment URLs are reported under.
	DNSSuffix string
}

const defaultDNSSuffix = "cloudapp.net"

// =============================================================================
// Server
// =============================================================================

// Server handles management API requests.
type Server struct {
	store    store.Store
	config   Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics
	now      func() time.Time
}

// NewServer creates an emulator over s.
func NewServer(s store.Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DNSSuffix == "" {
		cfg.DNSSuffix = defaultDNSSuffix
	}
	reg := prometheus.NewRegistry()
	return &Server{
		store:    s,
		config:   cfg,
		logger:   logger.With("component", "emulator"),
		registry: reg,
		metrics:  newMetrics(reg),
		now:      time.Now,
	}
}

// Routes returns the router with all routes configured.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/{subscription}", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.requireVersion)
		r.Use(s.replayMutations)

		r.Get("/operations/{requestID}", s.handleGetOperation)

		r.Route("/services/hostedservices", func(r chi.Router) {
			r.Post("/", s.handleCreateHostedService)
			r.Get("/", s.handleListHostedServices)
			r.Get("/{service}", s.handleGetHostedService)
			r.Get("/{service}/certificates", s.handleListCertificates)
			r.Post("/{service}/certificates", s.handleAddCertificate)
			r.Post("/{service}/extensions", s.handleAddExtension)
			r.Get("/{service}/deploymentslots/{slot}", s.handleGetDeployment)
			r.Post("/{service}/deploymentslots/{slot}", s.handleSlotAction)
			r.Delete("/{service}/deploymentslots/{slot}", s.handleDeleteDeployment)
		})

		r.Route("/services/storageservices", func(r chi.Router) {
			r.Post("/", s.handleCreateStorageAccount)
			r.Get("/{account}", s.handleGetStorageAccount)
			r.Get("/{account}/keys", s.handleGetStorageKeys)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

type requestIDKey struct{}

// requestID assigns every request an ID. Mutations record their operation
// under the same ID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set(channel.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// replayMutations answers a mutation whose client request id already has a
// recorded operation with that operation, without applying it again.
func (s *Server) replayMutations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(channel.HeaderClientRequestID)
		if token == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}

		subscription := chi.URLParam(r, "subscription")
		op, err := s.store.GetOperationByClientRequestID(r.Context(), subscription, token)
		switch {
		case errors.Is(err, store.ErrNotFound):
			next.ServeHTTP(w, r)
		case err != nil:
			s.writeStoreError(w, r, err)
		default:
			s.logger.Info("replaying recorded operation",
				"subscription", subscription,
				"client_request_id", token,
				"operation", op.ID,
			)
			w.Header().Set(channel.HeaderRequestID, op.ID)
			w.WriteHeader(http.StatusAccepted)
		}
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Token != "" {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token != s.config.Token {
				s.writeFault(w, r, http.StatusUnauthorized, "AuthenticationFailed", "the bearer token is missing or invalid")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(channel.HeaderVersion) == "" {
			s.writeFault(w, r, http.StatusBadRequest, "MissingOrInvalidRequiredHeader",
				"the "+channel.HeaderVersion+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) writeXML(w http.ResponseWriter, status int, v any) {
	data, err := xml.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(data)
}

func (s *Server) writeFault(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.logger.Debug("request rejected",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"code", code,
		"message", message,
	)
	s.writeXML(w, status, channel.ErrorXML{Code: code, Message: message})
}

// writeStoreError maps store sentinels to management faults.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForeignKey):
		s.writeFault(w, r, http.StatusNotFound, "ResourceNotFound", err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		s.writeFault(w, r, http.StatusConflict, "ConflictError", err.Error())
	default:
		s.logger.Error("store failure", "path", r.URL.Path, "error", err)
		s.writeFault(w, r, http.StatusInternalServerError, "InternalError", "the server encountered an internal error")
	}
}

// accepted records a succeeded operation under the request ID and answers
// 202 so the caller polls the operation. The client request id is kept so a
// retry of the same mutation is answered with this operation.
func (s *Server) accepted(w http.ResponseWriter, r *http.Request, subscription string) {
	op := &store.Operation{
		ID:              requestIDFrom(r.Context()),
		Subscription:    subscription,
		Status:          string(channel.OperationSucceeded),
		HTTPStatus:      http.StatusOK,
		CreatedAt:       s.now(),
		ClientRequestID: r.Header.Get(channel.HeaderClientRequestID),
	}
	if err := s.store.CreateOperation(r.Context(), op); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return xml.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

const maxBodyBytes = 64 << 20
