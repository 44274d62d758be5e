package cmd

import (
	"fmt"
	"sort"
	"time"

	statusadapter "github.com/bnema/itcsync/internal/adapters/render/status"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type statusOutputOptions struct {
	staleAfter time.Duration
	showApps   bool
	asJSON     bool
}

func newStatusCmd(app *app) *cobra.Command {
	var projectID string
	var opts statusOutputOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connection state, apps and synced builds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := loadStatuses(cmd, app, projectID)
			if err != nil {
				return err
			}
			return writeStatusesOutput(cmd, app, statuses, opts)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (all projects when empty)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print JSON output")
	cmd.Flags().BoolVar(&opts.showApps, "apps", false, "List every app and whether it is synced")
	cmd.Flags().DurationVar(&opts.staleAfter, "stale-after", 24*time.Hour, "Mark directory snapshots older than this as stale")

	return cmd
}

func writeStatusesOutput(cmd *cobra.Command, app *app, statuses []domain.ProjectStatus, opts statusOutputOptions) error {
	if opts.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	rendered, err := app.statusRenderer(statuses, statusadapter.RenderOptions{
		Now:        app.now(),
		StaleAfter: opts.staleAfter,
		ShowApps:   opts.showApps,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func loadStatuses(cmd *cobra.Command, app *app, projectID string) ([]domain.ProjectStatus, error) {
	if projectID != "" {
		status, err := app.config.Status(cmd.Context(), domain.ProjectID(projectID))
		if err != nil {
			return nil, err
		}
		return []domain.ProjectStatus{status}, nil
	}

	projects, err := app.config.ListProjects(cmd.Context())
	if err != nil {
		return nil, err
	}

	statuses := make([]domain.ProjectStatus, 0, len(projects))
	for _, project := range projects {
		status, err := app.config.Status(cmd.Context(), project.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func newAppsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Choose which apps are synced",
	}

	cmd.AddCommand(
		newAppsListCmd(app),
		newAppsToggleCmd(app),
	)

	return cmd
}

func newAppsListCmd(app *app) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the apps of the last fetched directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.config.Status(cmd.Context(), domain.ProjectID(projectID))
			if err != nil {
				return err
			}
			if status.Directory == nil {
				return fmt.Errorf("no apps fetched for project %s yet, run `itcsync login --project %s`", projectID, projectID)
			}

			apps := make([]domain.TeamApp, 0, status.Directory.AppCount())
			for teamApp := range status.Directory.Apps() {
				apps = append(apps, teamApp)
			}
			sort.Slice(apps, func(i, j int) bool { return apps[i].App.Name < apps[j].App.Name })

			for _, teamApp := range apps {
				mark := "-"
				if status.ActiveApps[teamApp.App.ID] {
					mark = "synced"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", teamApp.App.ID, teamApp.App.Name, teamApp.App.BundleID, mark)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func newAppsToggleCmd(app *app) *cobra.Command {
	var projectID string
	var appID string

	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Flip whether an app's builds are synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			active, err := app.config.ToggleApp(cmd.Context(), domain.ProjectID(projectID), domain.AppID(appID))
			if err != nil {
				return err
			}

			state := "disabled"
			if active {
				state = "enabled"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "sync %s for app %s\n", state, appID)
			return err
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().StringVar(&appID, "app", "", "App ID")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}
