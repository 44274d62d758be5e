package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "itcsync",
		Short:         "iTunes Connect symbol sync",
		Long:          "itcsync keeps an authenticated iTunes Connect session per project, lists teams and apps, and downloads the dSYM archives of every new build for the apps you select.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newProjectCmd(app),
		newLoginCmd(app),
		newTwoFactorCmd(app),
		newLogoutCmd(app),
		newStatusCmd(app),
		newAppsCmd(app),
		newSyncCmd(app),
		newServeCmd(app),
	)

	return rootCmd
}
