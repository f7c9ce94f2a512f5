// Command-line client for the files API
//
// Lists, prints, writes and mounts a project's files through the same
// HTTP surface the browser UI uses. Folders are fetched one level at a time.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sorenbs/ai-chatbot-full/internal/client"
	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/synctree"
)

var (
	argServer   string
	argToken    string
	argProject  string
	argLogLevel string
	argTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "fsctl",
	Short:         "browse and edit a project's files through the files API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(logging.Config{
			Level:      argLogLevel,
			Format:     "console",
			OutputPath: "stderr",
		}); err != nil {
			return fmt.Errorf("logging init: %w", err)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&argServer, "server", envOr("VFS_SERVER", "http://localhost:8080"), "files API base URL")
	flags.StringVar(&argToken, "token", os.Getenv("VFS_TOKEN"), "session token (see 'fsctl token')")
	flags.StringVarP(&argProject, "project", "p", os.Getenv("VFS_PROJECT"), "project id")
	flags.StringVar(&argLogLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.DurationVar(&argTimeout, "timeout", 30*time.Second, "per-request timeout")
}

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newClient() (*client.Client, error) {
	if argToken == "" {
		return nil, fmt.Errorf("no session token: use --token or VFS_TOKEN")
	}
	return client.New(client.Config{
		BaseURL:   argServer,
		Timeout:   argTimeout,
		AuthToken: argToken,
	}), nil
}

// openTree connects and loads the root listing of the selected project.
func openTree(ctx context.Context) (*synctree.Synchronizer, error) {
	if argProject == "" {
		return nil, fmt.Errorf("no project: use --project or VFS_PROJECT")
	}
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	s := synctree.New(c, synctree.Options{Coalesce: true, Logger: logging.L()})
	if _, err := s.Refresh(ctx, argProject); err != nil {
		return nil, fmt.Errorf("load %s: %w", argProject, err)
	}
	return s, nil
}
