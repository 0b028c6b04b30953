package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alem-hub/xp-observer/internal/application/observer"
	"github.com/alem-hub/xp-observer/internal/domain/platform"
	"github.com/alem-hub/xp-observer/internal/domain/xp"
)

// NewPurgeCourseCommand creates the purge-course command.
func NewPurgeCourseCommand(rootOpts *RootOptions) *cobra.Command {
	var courseID, contextID int64

	cmd := &cobra.Command{
		Use:   "purge-course --course ID --context ID",
		Short: "Delete the XP data of a deleted course",
		Long: `Run the course deletion handler for one course: delete its rows from the
plugin tables and the badge files stored in its context, then print how many
rows and files each place held. Running it twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if courseID <= 0 {
				return fmt.Errorf("--course must be a positive id, got %d", courseID)
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

			event := platform.Event{
				Name:         platform.EventCourseDeleted,
				Component:    "core",
				ContextLevel: platform.ContextCourse,
				ContextID:    contextID,
				ObjectID:     courseID,
				CourseID:     courseID,
			}
			counts, err := countCourseData(cmd.Context(), b, courseID, contextID)
			if err != nil {
				return err
			}
			if err := obs.CourseDeleted(cmd.Context(), event); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged course %d (context %d): %s\n",
				courseID, contextID, strings.Join(counts, " "))
			return err
		},
	}

	cmd.Flags().Int64Var(&courseID, "course", 0, "id of the deleted course")
	cmd.Flags().Int64Var(&contextID, "context", 0, "id of the deleted course context")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("context")

	return cmd
}

// countCourseData returns "place=count" pairs for the data a purge removes.
func countCourseData(ctx context.Context, b *backend, courseID, contextID int64) ([]string, error) {
	counts := make([]string, 0, len(xp.CourseDataTables)+1)
	for _, table := range xp.CourseDataTables {
		n, err := b.rows.CountByCourse(ctx, table, courseID)
		if err != nil {
			return nil, err
		}
		counts = append(counts, fmt.Sprintf("%s=%d", table, n))
	}

	n, err := b.fileCount.CountAreaFiles(ctx, contextID, observer.Component, observer.BadgesFileArea)
	if err != nil {
		return nil, err
	}
	return append(counts, fmt.Sprintf("%s=%d", observer.BadgesFileArea, n)), nil
}
