package main

import (
	"os"

	"github.com/spf13/cobra"

	"shaderls/internal/lsp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		srv := lsp.NewServer(lsp.Options{
			Name:    serverName,
			Version: serverVersion,
			Root:    rootFlag,
			Logger:  logger,
		})

		logger.Info("starting language server", "name", serverName, "version", serverVersion)
		if err := srv.Serve(cmd.Context(), stdio{}); err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// stdio joins stdin and stdout into the stream the server speaks over.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdio) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
