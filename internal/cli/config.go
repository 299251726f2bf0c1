package cli

import (
	"fmt"

	"github.com/rcliao/autocoder/internal/model"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long:  "Print setup_config.json with every default applied. With -f text, print one key per line.",
		Run:   runConfig,
	}

	RootCmd.AddCommand(cmd)
}

func runConfig(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	if formatFlag == "text" {
		printConfigText(cfg)
		return
	}
	printJSON(cfg)
}

func printConfigText(cfg *model.Config) {
	fmt.Printf("source: %s\n", cfg.Source)
	for _, role := range []string{model.PathBaseDir, model.PathModels, model.PathProjects, model.PathLogs,
		model.PathChromaDB, model.PathSWEAgent, model.PathTabbyData} {
		if p := cfg.Path(role); p != "" {
			fmt.Printf("paths.%s: %s\n", role, p)
		}
	}
	for _, role := range []string{model.ModelPrimary, model.ModelSecondary} {
		if m := cfg.Model(role); m != "" {
			fmt.Printf("models.%s: %s\n", role, m)
		}
	}
	fmt.Printf("runtime.backend: %s\n", cfg.Runtime.Backend)
	fmt.Printf("runtime.command: %s\n", cfg.Runtime.Command)
	fmt.Printf("analyzer.batch_limit: %d\n", cfg.Analyzer.BatchLimit)
	fmt.Printf("analyzer.cooldown: %s\n", cfg.Analyzer.Cooldown.Std())
	fmt.Printf("analyzer.timeout: %s\n", cfg.Analyzer.Timeout.Std())
	fmt.Printf("analyzer.extensions: %v\n", cfg.Analyzer.Extensions)
}
