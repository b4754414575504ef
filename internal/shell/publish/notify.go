package publish

import (
	"log/slog"

	"github.com/artpar/cloudpublish/internal/core/domain"
	corepublish "github.com/artpar/cloudpublish/internal/core/publish"
)

// EventKind classifies a progress event.
type EventKind string

const (
	EventState    EventKind = "state"
	EventInstance EventKind = "instance"
	EventInfo     EventKind = "info"
)

// Event is one progress report from the orchestrator.
type Event struct {
	Kind     EventKind
	Target   domain.DeploymentTarget
	State    domain.PublishState
	Instance *corepublish.InstanceTransition
	Message  string
}

// Notifier receives progress events. Notify is called from the publishing
// goroutine only.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

// Notify calls f(e).
func (f NotifierFunc) Notify(e Event) { f(e) }

// LogNotifier writes events to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "progress")}
}

// Notify logs e.
func (n *LogNotifier) Notify(e Event) {
	attrs := []any{"target", e.Target.String()}
	switch e.Kind {
	case EventState:
		n.logger.Info("publish state changed", append(attrs, "state", e.State)...)
	case EventInstance:
		n.logger.Info("role instance status changed", append(attrs,
			"role", e.Instance.RoleName,
			"instance", e.Instance.InstanceName,
			"status", e.Instance.To.DisplayName(),
		)...)
	default:
		n.logger.Info(e.Message, attrs...)
	}
}
