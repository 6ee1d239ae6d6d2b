package commands

import (
	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:   "pact-engine",
	Short: "Matching-rule and value-generation engine for pact interactions",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetLevel(log.DebugLevel)
		}
	},
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}
