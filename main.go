/*
anima-rhi renders the testbed scene through the RHI. The backend, swap chain
and pipeline settings come from a TOML config file.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/anima-rhi/engine"
	"github.com/spaghettifunk/anima-rhi/engine/config"
	"github.com/spaghettifunk/anima-rhi/engine/core"
	"github.com/spaghettifunk/anima-rhi/testbed"
)

type runOptions struct {
	configPath string
	backend    string
	frames     uint64
	watch      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "anima-rhi",
		Short:         "Render through the anima RHI",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the TOML config")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newConfigCommand(&configPath))
	return root
}

func newRunCommand(configPath *string) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open a window and render until it is closed",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = *configPath
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "", "override the renderer backend (vulkan, headless)")
	cmd.Flags().Uint64VarP(&opts.frames, "frames", "n", 0, "stop after this many frames, 0 runs until closed")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", true, "reload the config file when it changes")
	return cmd
}

func newConfigCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(*configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", *configPath)
			return nil
		},
	})
	return cmd
}

func run(parent context.Context, opts *runOptions) error {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.Renderer.Backend = opts.backend
	}

	tb := testbed.NewTestGame()
	e, err := engine.New(cfg, tb.Game)
	if err != nil {
		return err
	}
	if err := e.Initialize(); err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			core.LogInfo("received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.watch {
		if _, statErr := os.Stat(opts.configPath); statErr == nil {
			go func() {
				if err := config.Watch(ctx, opts.configPath, e.Reload); err != nil {
					core.LogWarn("config hot reload disabled: %s", err)
				}
			}()
		}
	}

	if opts.frames > 0 {
		err = e.RunFrames(ctx, opts.frames)
	} else {
		err = e.Run(ctx)
	}
	if shutdownErr := e.Shutdown(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}
