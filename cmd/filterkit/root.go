package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/filterkit/version"
)

const serviceName = "filterkit"

type rootOptions struct {
	configFile string
	envFile    string
	verbosity  int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Shared filter lifecycle registry",
		Long: `filterkit hosts a process-wide filter lifecycle registry. Chains declared
in the config share filter instances; each filter is initialized once, sees
every add and remove, and is destroyed when its last chain lets go of it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: search ./config.yml, ./cmd/filterkit/config.yml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before reading FILTERKIT_* variables")
	rootCmd.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return
			}
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", serviceName, version.Full())
			fmt.Fprintf(cmd.OutOrStdout(), "  module: %s\n", info.Module)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:     %s\n", info.GoVersion)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the short version")
	return cmd
}

// levelFor maps -v counts onto logger levels; zero keeps the configured level.
func levelFor(verbosity int) string {
	switch {
	case verbosity <= 0:
		return ""
	case verbosity == 1:
		return "info"
	case verbosity == 2:
		return "debug"
	default:
		return "trace"
	}
}
