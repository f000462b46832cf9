package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/aretw0/introspection"
	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/notebook"
	"github.com/aretw0/notetaker/pkg/persist"
)

var statusDiagram bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the internal state of the notebook",
	Long: `Print the state of the store, the save scheduler and the enrichment
machines as JSON, or as a Mermaid diagram with --diagram.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			state, ok := app.State().(notebook.NotebookState)
			if !ok {
				return fmt.Errorf("unexpected notebook state %T", app.State())
			}
			if !statusDiagram {
				return printJSON(cmd.OutOrStdout(), state)
			}
			config := introspection.DefaultDiagramConfig()
			config.SecondaryID = "notebook"
			config.SecondaryLabel = "Notebook Topology"
			fmt.Fprintln(cmd.OutOrStdout(), introspection.TreeDiagram(buildStatusTree(state), config))
			return nil
		})
	},
}

type statusNode struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []statusNode
}

// Status must be one of the classes of introspection.DefaultStyles().
func buildStatusTree(state notebook.NotebookState) statusNode {
	root := statusNode{
		Name:   "Notebook",
		Status: "running",
		Metadata: map[string]string{
			"notes":       fmt.Sprint(state.Notes),
			"subscribers": fmt.Sprint(state.Subscribers),
			"watching":    fmt.Sprint(state.Watching),
		},
	}

	root.Children = append(root.Children, statusNode{
		Name:     "Store (" + state.Store + ")",
		Status:   "running",
		Metadata: flatten(state.StoreState),
	})

	if s, ok := state.Persistence.(persist.SchedulerState); ok {
		node := statusNode{
			Name:   "Persistence",
			Status: lifecycleStatus(s.Closed, len(s.Entries)),
			Metadata: map[string]string{
				"delay":    s.Delay,
				"writes":   fmt.Sprint(s.Writes),
				"failures": fmt.Sprint(s.Failures),
			},
		}
		for _, id := range slices.Sorted(maps.Keys(s.Entries)) {
			node.Children = append(node.Children, statusNode{Name: shortID(id), Status: saveStatus(s.Entries[id])})
		}
		root.Children = append(root.Children, node)
	}

	if s, ok := state.Enrichment.(enrich.OrchestratorState); ok {
		node := statusNode{
			Name:   "Enrichment",
			Status: lifecycleStatus(s.Closed, len(s.Machines)),
			Metadata: map[string]string{
				"delay":  s.Delay,
				"merged": fmt.Sprint(s.Merged),
				"failed": fmt.Sprint(s.Failed),
			},
		}
		for _, id := range slices.Sorted(maps.Keys(s.Machines)) {
			node.Children = append(node.Children, statusNode{Name: shortID(id), Status: enrichStatus(s.Machines[id])})
		}
		root.Children = append(root.Children, node)
	}

	root.Children = append(root.Children, statusNode{
		Name:     "Taxonomy",
		Status:   "running",
		Metadata: flatten(state.Taxonomy),
	})
	return root
}

func lifecycleStatus(closed bool, active int) string {
	switch {
	case closed:
		return "stopped"
	case active > 0:
		return "running"
	}
	return "suspended"
}

func saveStatus(s string) string {
	switch s {
	case persist.Scheduled.String():
		return "pending"
	case persist.InFlight.String(), persist.InFlightPending.String():
		return "running"
	case persist.Dirty.String():
		return "failed"
	}
	return "finished"
}

func enrichStatus(s string) string {
	switch s {
	case enrich.Scheduled.String():
		return "pending"
	case enrich.InFlight.String():
		return "running"
	case enrich.Merged.String():
		return "finished"
	case enrich.Failed.String():
		return "failed"
	}
	return "created"
}

// flatten renders the top-level fields of a state value as strings.
func flatten(v any) map[string]string {
	out := map[string]string{}
	b, err := json.Marshal(v)
	if err != nil {
		return out
	}
	var fields map[string]any
	if json.Unmarshal(b, &fields) != nil {
		return out
	}
	for k, val := range fields {
		switch val := val.(type) {
		case map[string]any, []any:
			enc, _ := json.Marshal(val)
			out[k] = string(enc)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func init() {
	statusCmd.Flags().BoolVar(&statusDiagram, "diagram", false, "Print a Mermaid diagram instead of JSON")
	rootCmd.AddCommand(statusCmd)
}
