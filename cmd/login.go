package cmd

import (
	"fmt"

	"github.com/bnema/itcsync/internal/domain"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *app) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to iTunes Connect and fetch teams and apps",
		Long:  "login tests a project's configuration: it signs in with the stored Apple ID, then fetches the account directory. When Apple asks for a security code, finish with `itcsync two-factor`.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.config.TestConfiguration(cmd.Context(), domain.ProjectID(projectID))
			if err != nil {
				return err
			}
			return writeStatusesOutput(cmd, app, []domain.ProjectStatus{status}, statusOutputOptions{})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func newTwoFactorCmd(app *app) *cobra.Command {
	var projectID string
	var code string

	cmd := &cobra.Command{
		Use:   "two-factor",
		Short: "Submit the security code of a pending login",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := app.config.SubmitTwoFactor(cmd.Context(), domain.ProjectID(projectID), code)
			if err != nil {
				return err
			}
			return writeStatusesOutput(cmd, app, []domain.ProjectStatus{status}, statusOutputOptions{})
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().StringVar(&code, "code", "", "Security code shown on a trusted device")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget a project's session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.config.Logout(cmd.Context(), domain.ProjectID(projectID)); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "logged out of %s\n", projectID)
			return err
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
