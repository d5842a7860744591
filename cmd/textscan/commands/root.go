package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adverant/nexus/textscan/cmd/textscan/ui"
	"github.com/adverant/nexus/textscan/internal/config"
	"github.com/adverant/nexus/textscan/internal/logging"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "textscan",
	Short: "TextScan - extract text from images",
	Long: `TextScan selects an image, sends it to an extraction service and lets you
copy or download the recognised lines. Run "serve" for the browser UI or
"extract" for a one-shot terminal run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logging.Configure(logging.Options{Level: level, Format: cfg.LogFormat})
		ui.InitUI(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
