package cli

import (
	"fmt"

	"github.com/rcliao/autocoder/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded analysis runs",
		Run:   runRuns,
	}

	cmd.Flags().StringP("project", "p", "", "Filter by project root")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	project, _ := cmd.Flags().GetString("project")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context(), store.ListRunsParams{
		Project: project,
		Limit:   limit,
	})
	if err != nil {
		exitErr("runs", err)
	}

	if formatFlag == "text" {
		for _, r := range runs {
			status := "done"
			if r.Cancelled {
				status = "cancelled"
			}
			fmt.Printf("%s  %s  %d/%d ok  %-9s %s\n",
				r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Succeeded, r.Processed, status, r.Project)
		}
		return
	}
	printJSON(runs)
}
