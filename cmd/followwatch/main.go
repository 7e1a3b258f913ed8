package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/followwatch/internal/logger"
	"github.com/good-yellow-bee/followwatch/pkg/config"
)

var (
	configFile string
	envFile    string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "followwatch",
	Short: "followwatch - follower tracking and milestone alerts",
	Long: `followwatch polls follower counts for tracked social profiles,
keeps their history and notifies owners when a milestone is reached.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
	RunE:              runServe,
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(config.GetBuildInfo())
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.VersionString())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build info as JSON")

	rootCmd.AddCommand(versionCmd, serveCmd, migrateCmd, userCmd, refreshCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadEnvFile loads the dotenv file. A missing file is not an error.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// loadRuntime reads the configuration and initializes logging.
func loadRuntime() (*Config, error) {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := setupLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logger.Flush(flushTimeout)

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "database %s is up to date\n", cfg.Database.Path)
		return nil
	},
}
