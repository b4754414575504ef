package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

// DialFunc opens a new Channel. It is called once up front and again after
// every transient failure.
type DialFunc func(ctx context.Context) (Channel, error)

// RetryPolicy configures retries of transient failures.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns the default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// RetryChannel wraps a dialed Channel. A call that fails transiently drops
// the connection, redials, and is reissued with the same request token.
// Permanent failures are returned unchanged on the first attempt.
type RetryChannel struct {
	dial   DialFunc
	policy RetryPolicy
	logger *slog.Logger

	mu      sync.Mutex
	current Channel
}

// NewRetryChannel creates a RetryChannel. The first connection is opened
// lazily on the first call.
func NewRetryChannel(dial DialFunc, policy RetryPolicy, logger *slog.Logger) *RetryChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryChannel{
		dial:   dial,
		policy: policy.withDefaults(),
		logger: logger.With("component", "retry_channel"),
	}
}

var _ Channel = (*RetryChannel)(nil)

func (r *RetryChannel) connect(ctx context.Context) (Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return r.current, nil
	}
	ch, err := r.dial(ctx)
	if err != nil {
		return nil, err
	}
	r.current = ch
	return ch, nil
}

func (r *RetryChannel) drop(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == ch {
		r.current = nil
	}
}

func retryCall[T any](ctx context.Context, r *RetryChannel, op string, call func(context.Context, Channel) (T, error)) (T, error) {
	if RequestToken(ctx) == "" {
		ctx = WithRequestToken(ctx, uuid.New().String())
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialDelay
	exp.MaxInterval = r.policy.MaxDelay
	exp.Multiplier = r.policy.Multiplier
	exp.RandomizationFactor = 0

	attempt := 0
	operation := func() (T, error) {
		attempt++
		var zero T
		ch, err := r.connect(ctx)
		if err != nil {
			if IsTransient(err) {
				return zero, err
			}
			return zero, backoff.Permanent(err)
		}
		res, err := call(ctx, ch)
		if err == nil {
			return res, nil
		}
		if !IsTransient(err) {
			return zero, backoff.Permanent(err)
		}
		r.drop(ch)
		return zero, err
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(r.policy.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("transient failure, reconnecting",
				"op", op,
				"attempt", attempt,
				"retry_in", next,
				"request_token", RequestToken(ctx),
				"error", err,
			)
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	return res, err
}

func retryExec(ctx context.Context, r *RetryChannel, op string, call func(context.Context, Channel) error) error {
	_, err := retryCall(ctx, r, op, func(ctx context.Context, ch Channel) (struct{}, error) {
		return struct{}{}, call(ctx, ch)
	})
	return err
}

// GetHostedService implements Channel.
func (r *RetryChannel) GetHostedService(ctx context.Context, subscription, name string) (*HostedService, error) {
	return retryCall(ctx, r, "GetHostedService", func(ctx context.Context, ch Channel) (*HostedService, error) {
		return ch.GetHostedService(ctx, subscription, name)
	})
}

// CreateHostedService implements Channel.
func (r *RetryChannel) CreateHostedService(ctx context.Context, subscription string, in CreateHostedServiceInput) error {
	return retryExec(ctx, r, "CreateHostedService", func(ctx context.Context, ch Channel) error {
		return ch.CreateHostedService(ctx, subscription, in)
	})
}

// GetStorageAccount implements Channel.
func (r *RetryChannel) GetStorageAccount(ctx context.Context, subscription, name string) (*StorageAccount, error) {
	return retryCall(ctx, r, "GetStorageAccount", func(ctx context.Context, ch Channel) (*StorageAccount, error) {
		return ch.GetStorageAccount(ctx, subscription, name)
	})
}

// CreateStorageAccount implements Channel.
func (r *RetryChannel) CreateStorageAccount(ctx context.Context, subscription string, in CreateStorageAccountInput) error {
	return retryExec(ctx, r, "CreateStorageAccount", func(ctx context.Context, ch Channel) error {
		return ch.CreateStorageAccount(ctx, subscription, in)
	})
}

// GetStorageKeys implements Channel.
func (r *RetryChannel) GetStorageKeys(ctx context.Context, subscription, name string) (*StorageKeys, error) {
	return retryCall(ctx, r, "GetStorageKeys", func(ctx context.Context, ch Channel) (*StorageKeys, error) {
		return ch.GetStorageKeys(ctx, subscription, name)
	})
}

// ListCertificates implements Channel.
func (r *RetryChannel) ListCertificates(ctx context.Context, subscription, service string) ([]domain.CertificateRef, error) {
	return retryCall(ctx, r, "ListCertificates", func(ctx context.Context, ch Channel) ([]domain.CertificateRef, error) {
		return ch.ListCertificates(ctx, subscription, service)
	})
}

// AddCertificate implements Channel.
func (r *RetryChannel) AddCertificate(ctx context.Context, subscription, service string, cert CertificateUpload) error {
	return retryExec(ctx, r, "AddCertificate", func(ctx context.Context, ch Channel) error {
		return ch.AddCertificate(ctx, subscription, service, cert)
	})
}

// AddExtension implements Channel.
func (r *RetryChannel) AddExtension(ctx context.Context, subscription, service string, ext Extension) error {
	return retryExec(ctx, r, "AddExtension", func(ctx context.Context, ch Channel) error {
		return ch.AddExtension(ctx, subscription, service, ext)
	})
}

// CreateDeployment implements Channel.
func (r *RetryChannel) CreateDeployment(ctx context.Context, target domain.DeploymentTarget, req domain.DeploymentRequest) error {
	return retryExec(ctx, r, "CreateDeployment", func(ctx context.Context, ch Channel) error {
		return ch.CreateDeployment(ctx, target, req)
	})
}

// UpgradeDeployment implements Channel.
func (r *RetryChannel) UpgradeDeployment(ctx context.Context, target domain.DeploymentTarget, req domain.DeploymentRequest, opts UpgradeOptions) error {
	return retryExec(ctx, r, "UpgradeDeployment", func(ctx context.Context, ch Channel) error {
		return ch.UpgradeDeployment(ctx, target, req, opts)
	})
}

// GetDeploymentBySlot implements Channel.
func (r *RetryChannel) GetDeploymentBySlot(ctx context.Context, target domain.DeploymentTarget) (*domain.Deployment, error) {
	return retryCall(ctx, r, "GetDeploymentBySlot", func(ctx context.Context, ch Channel) (*domain.Deployment, error) {
		return ch.GetDeploymentBySlot(ctx, target)
	})
}

// UpdateDeploymentStatus implements Channel.
func (r *RetryChannel) UpdateDeploymentStatus(ctx context.Context, target domain.DeploymentTarget, status domain.DeploymentStatus) error {
	return retryExec(ctx, r, "UpdateDeploymentStatus", func(ctx context.Context, ch Channel) error {
		return ch.UpdateDeploymentStatus(ctx, target, status)
	})
}

// GetOperationStatus implements Channel.
func (r *RetryChannel) GetOperationStatus(ctx context.Context, subscription, requestID string) (*Operation, error) {
	return retryCall(ctx, r, "GetOperationStatus", func(ctx context.Context, ch Channel) (*Operation, error) {
		return ch.GetOperationStatus(ctx, subscription, requestID)
	})
}
