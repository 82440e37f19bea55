package main

import (
	"fmt"
	"os"

	_ "orbit/pkg/channels/autoload" // 自動註冊 Channels
	"orbit/pkg/config"
	_ "orbit/pkg/llm/autoload" // 自動註冊 LLM Providers
	"orbit/pkg/monitor"
	"orbit/pkg/registry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	systemPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "orbit",
	Short: "Route questions to specialized LLM responders",
	Long: `orbit classifies each question with a generative backend and hands it
to the responder best suited to answer it: framework help, troubleshooting
across repositories, or any prompt responder declared in config.json.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "application config file")
	rootCmd.PersistentFlags().StringVar(&systemPath, "system", "system.json", "engine parameters file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(respondersCmd)
	rootCmd.AddCommand(mcpCmd)
}

// load reads both config files and installs the logger.
func load() (*config.Config, *config.SystemConfig, error) {
	cfg, system, err := config.Load(configPath, systemPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		system.LogLevel = logLevel
	}
	if err := system.Validate(); err != nil {
		return nil, nil, err
	}
	monitor.SetupSlog(system.LogLevel)
	return cfg, system, nil
}

// start loads the configuration and builds the app on the process-wide registry.
func start() (*app, error) {
	cfg, system, err := load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, system, registry.Default(), nil)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
