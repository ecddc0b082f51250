package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var globalFlags struct {
	output     string
	configPath string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "decidectl",
		Short: "Run the decision pipeline from the command line",
		Long: `decidectl runs an artifact through directive parsing, the tool report,
the four stage reasoning pipeline and the historian decision, without a
database. Decisions are kept in memory for the lifetime of the command.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&globalFlags.output, "output", "o", formatJSON, "Output format: json or yaml")
	pf.StringVar(&globalFlags.configPath, "config", "", "YAML config file with provider settings")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newDirectiveCmd())
	root.AddCommand(newContractCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
