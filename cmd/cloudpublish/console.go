package main

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/artpar/cloudpublish/internal/core/domain"
	"github.com/artpar/cloudpublish/internal/shell/publish"
)

// consoleNotifier prints publish progress for a person watching the terminal.
type consoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{w: w}
}

// Notify implements publish.Notifier.
func (n *consoleNotifier) Notify(e publish.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch e.Kind {
	case publish.EventState:
		fmt.Fprintf(n.w, "==> %s: %s\n", e.Target, stateLabel(e.State))
	case publish.EventInstance:
		fmt.Fprintf(n.w, "    %s: %s\n", e.Instance.InstanceName, e.Instance.To.DisplayName())
	default:
		fmt.Fprintf(n.w, "    %s\n", e.Message)
	}
}

func stateLabel(s domain.PublishState) string {
	switch s {
	case domain.PublishPackaged:
		return "package ready"
	case domain.PublishServiceEnsured:
		return "hosted service ready"
	case domain.PublishDeploymentSubmitted:
		return "deployment submitted"
	case domain.PublishVerifying:
		return "waiting for role instances"
	case domain.PublishComplete:
		return "complete"
	case domain.PublishDeclined:
		return "cancelled"
	case domain.PublishFailed:
		return "failed"
	default:
		return string(s)
	}
}

func printDeployment(w io.Writer, d *domain.Deployment) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", d.Name)
	fmt.Fprintf(tw, "Slot:\t%s\n", d.Slot)
	fmt.Fprintf(tw, "Status:\t%s\n", d.Status)
	fmt.Fprintf(tw, "Label:\t%s\n", d.Label)
	fmt.Fprintf(tw, "URL:\t%s\n", d.URL)
	tw.Flush()

	if len(d.RoleInstances) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tINSTANCE\tSTATUS")
	for _, ri := range d.RoleInstances {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ri.RoleName, ri.InstanceName, ri.Status.DisplayName())
	}
	tw.Flush()
}
