package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/me/bakesched/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the default server URL, checking BAKESCHED_SERVER env var first.
func defaultServer() string {
	if s := os.Getenv("BAKESCHED_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// NewRootCmd creates the root cobra command for the bakesched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bakesched",
		Short: "bakesched — bakery production scheduling",
		Long:  "bakesched validates, submits and inspects bakery orders against the scheduling server.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.New(flagLogLevel, flagLogFormat)
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Server URL (or BAKESCHED_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newValidateCmd(),
		newSubmitCmd(),
		newOrdersCmd(),
		newScheduleCmd(),
	)

	return root
}
