package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/itcsync/internal/application"
	"github.com/bnema/itcsync/internal/domain"
	"github.com/spf13/cobra"
)

func newProjectCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectAddCmd(app),
		newProjectListCmd(app),
	)

	return cmd
}

func newProjectAddCmd(app *app) *cobra.Command {
	var (
		id            string
		name          string
		email         string
		password      string
		passwordStdin bool
		disabled      bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or update a project and its Apple ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password != "" && passwordStdin {
				return fmt.Errorf("--password and --password-stdin are mutually exclusive")
			}
			if passwordStdin {
				read, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = read
			}

			project, err := app.config.AddProject(cmd.Context(), application.AddProjectCommand{
				ID:       domain.ProjectID(id),
				Name:     name,
				Email:    email,
				Password: password,
				Disabled: disabled,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved project %s\n", project.ID)
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Project ID")
	cmd.Flags().StringVar(&name, "name", "", "Display name (defaults to the ID)")
	cmd.Flags().StringVar(&email, "email", "", "Apple ID email")
	cmd.Flags().StringVar(&password, "password", "", "Apple ID password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the Apple ID password from stdin")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Keep the project but skip it during sync")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newProjectListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := app.config.ListProjects(cmd.Context())
			if err != nil {
				return err
			}

			for _, project := range projects {
				state := "enabled"
				if !project.Enabled {
					state = "disabled"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", project.ID, project.Name, project.Email, state)
			}

			return nil
		},
	}
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("read password from stdin: empty input")
	}
	return password, nil
}
