package pluginsdk

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Action is one command a plugin exposes through `lla plugin --action`.
type Action struct {
	Usage       string
	Description string
	Examples    []string
	Run         func(w io.Writer, args []string) error
}

// ActionRegistry routes action names to handlers and answers "help".
// The zero value is ready to use and writes to stdout.
type ActionRegistry struct {
	Out     io.Writer
	names   []string
	actions map[string]Action
}

// Register adds an action. Registering a name twice replaces the handler.
func (r *ActionRegistry) Register(name string, a Action) {
	if r.actions == nil {
		r.actions = make(map[string]Action)
	}
	if _, ok := r.actions[name]; !ok {
		r.names = append(r.names, name)
	}
	r.actions[name] = a
}

// Names returns the registered action names in registration order.
func (r *ActionRegistry) Names() []string {
	return append([]string(nil), r.names...)
}

// PerformAction runs action with args. It satisfies ActionPerformer, so a
// plugin can embed an ActionRegistry.
func (r *ActionRegistry) PerformAction(action string, args []string) error {
	if action == "help" {
		return r.help()
	}
	a, ok := r.actions[action]
	if !ok {
		return fmt.Errorf("unknown action: %s", action)
	}
	if a.Run == nil {
		return fmt.Errorf("action %s has no handler", action)
	}
	return a.Run(r.out(), args)
}

func (r *ActionRegistry) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *ActionRegistry) help() error {
	tw := tabwriter.NewWriter(r.out(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTION\tUSAGE\tDESCRIPTION")
	for _, name := range r.names {
		a := r.actions[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, a.Usage, a.Description)
		for _, ex := range a.Examples {
			fmt.Fprintf(tw, "\t  %s\t\n", strings.TrimSpace(ex))
		}
	}
	return tw.Flush()
}
