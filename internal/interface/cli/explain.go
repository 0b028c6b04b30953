package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alem-hub/xp-observer/internal/application/observer"
	"github.com/alem-hub/xp-observer/internal/domain/platform"
)

// explanation is the outcome of the filter chain for one fixture event.
type explanation struct {
	Index    int                 `json:"index"`
	Event    string              `json:"eventname"`
	UserID   int64               `json:"userid"`
	CourseID int64               `json:"courseid"`
	Context  string              `json:"context"`
	Captured bool                `json:"captured"`
	Skip     observer.SkipReason `json:"skip,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "explain --file events.yaml",
		Short: "Show which fixture events would earn experience points",
		Long: `Run the observer filter chain over events read from a YAML fixture file
and print, for each event, whether it would be captured or which rule skips it.
Nothing is forwarded to the XP engine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := loadFixtures(file)
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer b.close()

			obs, err := newObserver(b, rootOpts, newLogger(rootOpts, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			results := explainEvents(cmd, obs, events)
			return renderExplanations(cmd.OutOrStdout(), rootOpts.Format, results)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with the events to explain")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func explainEvents(cmd *cobra.Command, obs *observer.Observer, events []platform.Event) []explanation {
	results := make([]explanation, 0, len(events))
	for i, ev := range events {
		e := explanation{
			Index:    i + 1,
			Event:    ev.Name,
			UserID:   ev.UserID,
			CourseID: ev.CourseID,
			Context:  fmt.Sprintf("%s/%d", ev.ContextLevel, ev.ContextID),
		}

		decision, err := obs.Evaluate(cmd.Context(), ev)
		if err != nil {
			e.Error = err.Error()
		} else {
			e.Captured = decision.Captured()
			e.Skip = decision.Skip
		}
		results = append(results, e)
	}
	return results
}

func renderExplanations(w io.Writer, format string, results []explanation) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	var captured, skipped, failed int
	for _, r := range results {
		var outcome string
		switch {
		case r.Error != "":
			failed++
			outcome = "error: " + r.Error
		case r.Captured:
			captured++
			outcome = "captured"
		default:
			skipped++
			outcome = "skipped (" + string(r.Skip) + ")"
		}

		if _, err := fmt.Fprintf(w, "%d. %s user=%d course=%d context=%s: %s\n",
			r.Index, r.Event, r.UserID, r.CourseID, r.Context, outcome); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%d events: %d captured, %d skipped, %d failed\n",
		len(results), captured, skipped, failed)
	return err
}
