// Package cli wires the ragrelay command tree.
package cli

import (
	"github.com/soyeahso/ragrelay/internal/config"
	"github.com/soyeahso/ragrelay/internal/logging"
	"github.com/spf13/cobra"
)

// Resolved once per invocation by the root command's pre-run.
var (
	paths config.Paths
	log   *logging.Logger
)

type globalFlags struct {
	configFile string
	logLevel   string
}

// setup resolves paths and the console logger before any subcommand runs.
func (g *globalFlags) setup(*cobra.Command, []string) error {
	p, err := config.ResolvePaths()
	if err != nil {
		return err
	}
	if g.configFile != "" {
		p.Config = g.configFile
	}
	paths = p
	log = logging.New(nil, g.logLevel)
	return nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "ragrelay",
		Short: "Relay WeChat messages to a RAGFlow chat assistant",
		Long: "ragrelay receives WeChat webhook messages, keeps one RAGFlow session per " +
			"conversation identity, and sends the assistant's answers back to the chat.",
		PersistentPreRunE: g.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configFile, "config", "", "config file, .yaml or .toml (default ~/.ragrelay/config.yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "trace, debug, info, warn, error or silent")

	cmd.AddCommand(
		newVersionCmd(),
		newGatewayCmd(g),
		newConfigCmd(),
		newStatusCmd(),
		newMessageCmd(),
		newSessionCmd(),
	)
	return cmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}
