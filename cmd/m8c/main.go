// Command m8c is the headless M8 tracker client: it decodes the
// device's display protocol into a framebuffer and forwards keyboard
// input as controller state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/daedaluz/m8hl/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		device     string
		configPath string
		framebuffer string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "m8c",
		Short: "Headless client for the M8 tracker's USB display protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stderr)
			if verbose {
				logger.SetLevel(log.DebugLevel)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := app.New(app.Options{
				ConfigPath:      configPath,
				PreferredDevice: device,
				FramebufferPath: framebuffer,
				Logger:          logger,
			})

			if err := a.Run(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("m8c: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "preferred serial device path (defaults to VID:PID discovery)")
	cmd.Flags().StringVar(&configPath, "config", "m8c.ini", "path to the configuration file")
	cmd.Flags().StringVar(&framebuffer, "framebuffer", "/dev/fb0", "framebuffer device path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}
