package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/config"
)

func newConfigCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and write configuration files",
	}

	var out string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after flags are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			if out != "" {
				return cfg.Save(out)
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
	showCmd.Flags().StringVarP(&out, "output", "o", "", "write to this file instead of stdout")

	validateCmd := &cobra.Command{
		Use:   "validate <config.json>",
		Short: "Check a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s core, rob %d)\n",
				args[0], cfg.Core, cfg.ROBSize)
			return err
		},
	}

	cmd.AddCommand(showCmd, validateCmd)

	return cmd
}
