package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heda-org/heda-gitops/internal/config"
)

func newValidateCmd() *cobra.Command {
	var withEnv bool
	validateCmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file without starting the server.

By default only the file is checked. Pass --env to apply environment
overrides the same way serve does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []config.Option{config.WithConfigPath(args[0])}
			if !withEnv {
				opts = append(opts, config.WithoutEnv())
			}
			cfg, err := config.LoadConfig(opts...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (org: %s, auth: %s, git backend: %s, webhook: %t)\n",
				cfg.GitHub.Org, cfg.Auth.Mode, cfg.Git.Backend, cfg.WebhookEnabled())
			return err
		},
	}
	validateCmd.Flags().BoolVar(&withEnv, "env", false, "Apply environment overrides")
	return validateCmd
}
