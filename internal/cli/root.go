// Package cli implements the autocoder CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rcliao/autocoder/internal/config"
	"github.com/rcliao/autocoder/internal/logging"
	"github.com/rcliao/autocoder/internal/model"
	"github.com/rcliao/autocoder/internal/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	formatFlag string
	logLevel   string
	logFormat  string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "autocoder",
	Short: "Local model code review workstation",
	Long:  "Provision a local model workstation and run batched code reviews against it. Single binary, SQLite-backed run history.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if _, err := logging.Init(logLevel, logFormat, os.Stderr); err != nil {
			exitErr("init logging", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path (default: $AUTOCODER_CONFIG or setup_config.json next to the binary)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format: console or json")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if env := os.Getenv("AUTOCODER_CONFIG"); env != "" {
		return env
	}
	exe, err := os.Executable()
	if err != nil {
		return config.FileName
	}
	return filepath.Join(filepath.Dir(exe), config.FileName)
}

func loadConfig() (*model.Config, error) {
	return config.Load(getConfigPath())
}

func openStore(cfg *model.Config) (*store.SQLiteStore, error) {
	return store.Open(cfg.Path(model.PathLogs))
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	logging.Sync()
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
