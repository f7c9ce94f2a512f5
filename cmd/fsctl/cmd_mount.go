package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/treefs"
)

var argFuseDebug bool

var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "mount the project read-only; folders load when first listed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openTree(cmd.Context())
		if err != nil {
			return err
		}

		server, err := treefs.New(s, logging.L()).Mount(args[0], argFuseDebug)
		if err != nil {
			return err
		}
		logging.Info("filesystem mounted",
			zap.String("project", argProject),
			zap.String("mountpoint", args[0]))

		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			logging.Info("unmounting...")
			if err := server.Unmount(); err != nil {
				logging.Error("unmount failed", zap.Error(err))
			}
		}()

		server.Wait()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)
	mountCmd.Flags().BoolVar(&argFuseDebug, "fuse-debug", false, "log FUSE protocol traffic")
}
