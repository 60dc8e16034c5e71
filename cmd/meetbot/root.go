package main

import (
	"log/slog"
	"os"

	"github.com/npezzotti/go-meet/internal/client"
	"github.com/npezzotti/go-meet/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagToken  string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "meetbot",
	Short: "Command-line participant for go-meet rooms",
	Long: `meetbot creates and inspects rooms and can sit in a room as a participant,
negotiating a data channel with every other member.

Examples:
  meetbot create
  meetbot check 3f0c...
  meetbot join 3f0c... --name bot --say "hello"`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", envOr("MEET_SERVER", "http://localhost:8000"), "base URL of the go-meet server")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", os.Getenv("MEET_TOKEN"), "bearer token (optional)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(createCmd, checkCmd, joinCmd, tokenCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger() *slog.Logger {
	return logging.New(logging.Config{
		Service: "meetbot",
		Env:     logging.EnvDev,
		Backend: logging.BackendStd,
		Debug:   flagDebug,
	}, os.Stderr)
}

func newAPIClient() *client.APIClient {
	return client.NewAPIClient(flagServer, flagToken)
}
