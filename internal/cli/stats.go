package cli

import (
	"path/filepath"

	"github.com/rcliao/autocoder/internal/model"
	"github.com/rcliao/autocoder/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show run history statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), filepath.Join(cfg.Path(model.PathLogs), store.FileName))
	if err != nil {
		exitErr("stats", err)
	}

	printJSON(stats)
}
