package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"orbit/pkg/channels"
	"orbit/pkg/config"
	"orbit/pkg/gateway"
	"orbit/pkg/monitor"

	"github.com/spf13/cobra"
)

var quiet bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the router on every configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		monitor.PrintBanner(cmd.OutOrStdout())

		a, err := start()
		if err != nil {
			return err
		}
		defer a.close()

		chans := channels.LoadFromConfig(a.cfg.Channels, a.system)
		if len(chans) == 0 {
			slog.Warn("No channels configured, only config reloads will be processed")
		}

		b := gateway.NewGatewayBuilder().
			WithSystemConfig(a.system).
			WithAsker(a.router).
			WithChannel(chans...)
		if !quiet {
			b = b.WithMonitor(monitor.NewCLIMonitor())
		}
		gw, err := b.Build()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// 新增的 prompt responders 在設定檔變更時動態註冊
		go func() {
			for path := range config.WatchConfig(ctx, config.DefaultDebounce, configPath) {
				a.reload(path)
			}
		}()

		<-ctx.Done()
		slog.Info("Received shutdown signal. Stopping services...")
		gw.StopAll()
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&quiet, "quiet", false, "do not print traffic to the terminal")
}

