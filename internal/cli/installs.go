package cli

import (
	"fmt"

	"github.com/rcliao/autocoder/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "installs",
		Short: "List recorded setup results",
		Run:   runInstalls,
	}

	cmd.Flags().String("kind", "", "Filter by kind: runtime, model, environment, package")
	cmd.Flags().Bool("failed", false, "Only failed targets")
	cmd.Flags().IntP("limit", "l", 50, "Max results")

	RootCmd.AddCommand(cmd)
}

func runInstalls(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")
	failed, _ := cmd.Flags().GetBool("failed")
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

	results, err := s.ListInstalls(cmd.Context(), store.ListInstallsParams{
		Kind:   kind,
		Failed: failed,
		Limit:  limit,
	})
	if err != nil {
		exitErr("installs", err)
	}

	if formatFlag == "text" {
		for _, r := range results {
			fmt.Printf("%s  %-12s %-10s %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, r.Status, r.Target)
		}
		return
	}
	printJSON(results)
}
