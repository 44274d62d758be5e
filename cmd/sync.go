package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/itcsync/internal/application"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type syncReportView struct {
	Project           string `json:"project"`
	RunID             string `json:"run_id"`
	Result            string `json:"result"`
	Skipped           string `json:"skipped,omitempty"`
	AwaitingTwoFactor bool   `json:"awaiting_two_factor"`
	BudgetExhausted   bool   `json:"budget_exhausted"`
	AppsScanned       int    `json:"apps_scanned"`
	BuildsSeen        int    `json:"builds_seen"`
	AlreadySynced     int    `json:"already_synced"`
	Dispatched        int    `json:"dispatched"`
	Unavailable       int    `json:"unavailable"`
	Failed            int    `json:"failed"`
	Error             string `json:"error,omitempty"`
}

func newSyncCmd(app *app) *cobra.Command {
	var projectID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Discover new builds and download their dSYMs once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, app, projectID, asJSON)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (default: all projects)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func runSync(cmd *cobra.Command, app *app, projectID string, asJSON bool) error {
	dispatcher := app.inlineDispatcher(cmd.Context())
	service := app.syncService(dispatcher)

	var views []syncReportView
	var runErrs []error
	work := func(ctx context.Context, progress func(string)) error {
		ids, err := syncTargets(ctx, app, projectID)
		if err != nil {
			return err
		}

		for i, id := range ids {
			progress(fmt.Sprintf("Syncing %s (%d/%d)...", id, i+1, len(ids)))
			report, err := service.RunProject(ctx, id)
			if errors.Is(err, domain.ErrProjectNotFound) {
				return err
			}
			if err != nil {
				runErrs = append(runErrs, fmt.Errorf("project %s: %w", id, err))
			}
			views = append(views, newSyncReportView(report, err))
		}
		return nil
	}

	if asJSON {
		if err := work(cmd.Context(), func(string) {}); err != nil {
			return err
		}
	} else {
		if err := runSyncSpinner(cmd.Context(), cmd.ErrOrStderr(), "Syncing dSYMs from iTunes Connect...", work); err != nil {
			return err
		}
	}

	if err := writeSyncReports(cmd, views, asJSON); err != nil {
		return err
	}

	// Failed downloads leave no record and are retried by the next sync.
	return errors.Join(append(runErrs, dispatcher.Errors...)...)
}

func syncTargets(ctx context.Context, app *app, projectID string) ([]domain.ProjectID, error) {
	if projectID != "" {
		return []domain.ProjectID{domain.ProjectID(projectID)}, nil
	}

	projects, err := app.config.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]domain.ProjectID, 0, len(projects))
	for _, project := range projects {
		ids = append(ids, project.ID)
	}
	return ids, nil
}

func newSyncReportView(report application.RunReport, err error) syncReportView {
	view := syncReportView{
		Project:           string(report.Project),
		RunID:             report.RunID,
		Result:            report.Result(err),
		Skipped:           report.SkipReason,
		AwaitingTwoFactor: report.AwaitingTwoFactor,
		BudgetExhausted:   report.BudgetExhausted,
		AppsScanned:       report.AppsScanned,
		BuildsSeen:        report.BuildsSeen,
		AlreadySynced:     report.AlreadySynced,
		Dispatched:        report.Dispatched,
		Unavailable:       report.Unavailable,
		Failed:            report.Failed,
	}
	if err != nil {
		view.Error = err.Error()
	}
	return view
}

func writeSyncReports(cmd *cobra.Command, views []syncReportView, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(views) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "No projects configured.")
		return err
	}

	for _, view := range views {
		line := fmt.Sprintf("%s: %s", view.Project, view.Result)
		switch {
		case view.Skipped != "":
			line += " (" + view.Skipped + ")"
		case view.AwaitingTwoFactor:
			line += ", run `itcsync two-factor` to finish signing in"
		default:
			line += fmt.Sprintf(", apps=%d builds=%d dispatched=%d unavailable=%d already_synced=%d failed=%d",
				view.AppsScanned, view.BuildsSeen, view.Dispatched, view.Unavailable, view.AlreadySynced, view.Failed)
		}
		if view.BudgetExhausted {
			line += ", time budget reached"
		}
		if view.Error != "" {
			line += ": " + view.Error
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return err
		}
	}
	return nil
}
