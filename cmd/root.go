package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/clients"
	cfg "github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/config"
	"github.com/sudo-sidd/Face-Data-collection-and-Gallery-management-application/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "facecap",
	Short: "Capture face videos for the face gallery",
	Long: `facecap registers a student with the capture backend, records a short
guided face video from the local camera and uploads it for face extraction.
It can also start, stop and monitor the collection app.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: config/$CONFIG_ENV/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// deps is what every subcommand needs: the effective config, a logger
// and a backend client.
type deps struct {
	cfg *cfg.Root
	log *logrus.Logger
	api *clients.HTTP
}

func loadRuntime() (*deps, error) {
	c, err := cfg.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := logLevel
	if level == "" {
		level = c.App.LogLevel
	}
	log, err := logging.New(level, os.Stderr)
	if err != nil {
		return nil, err
	}
	api := clients.NewHTTP(c.API.BaseURL, cfg.DurSeconds(c.API.TimeoutSeconds)).WithControl(c.API.ControlURL)
	return &deps{cfg: c, log: log, api: api}, nil
}
