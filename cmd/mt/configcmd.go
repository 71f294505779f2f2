package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/modeltree/pkg/config"
)

func newConfigCommand(g *globalOptions) *cobra.Command {
	var write, interactive bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration mt is using, after defaults are applied.

With --write the defaults are saved to the config file, which must not
exist yet. With --interactive the settings are edited in a form and saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.configPath
			if path == "" {
				path = config.ConfigPath()
			}
			if interactive {
				if _, err := runConfigWizard(g.cfg, path); err != nil {
					return err
				}
				return nil
			}
			if write {
				if err := writeDefaultConfig(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			}
			data, err := yaml.Marshal(g.cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Write the default config file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Edit the settings in a form")
	cmd.MarkFlagsMutuallyExclusive("write", "interactive")
	return cmd
}

func writeDefaultConfig(path string) error {
	if path == "" {
		return fmt.Errorf("no config directory available")
	}
	if fileExists(path) {
		return fmt.Errorf("%s already exists", path)
	}
	return config.SaveTo(config.DefaultConfig(), path)
}
