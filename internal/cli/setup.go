package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rcliao/autocoder/internal/execx"
	"github.com/rcliao/autocoder/internal/logging"
	"github.com/rcliao/autocoder/internal/model"
	"github.com/rcliao/autocoder/internal/provision"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type setupOutput struct {
	Config   string                `json:"config"`
	Launcher string                `json:"launcher"`
	Failed   int                   `json:"failed"`
	Results  []model.InstallResult `json:"results"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "setup [base-dir]",
		Short: "Provision the workstation directory, config, and dependencies",
		Long: `Create the directory layout and setup_config.json under base-dir, install the
model runtime, pull the configured models, install the Python packages into an
isolated environment, and write a launch script. Rerunning is safe: an existing
config is kept as-is.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runSetup,
	}

	cmd.Flags().String("drive", "G", "Drive letter for the default base directory (windows only)")
	cmd.Flags().Bool("skip-install", false, "Only write the config, directories, and launcher")

	RootCmd.AddCommand(cmd)
}

// defaultBaseDir is <drive>:\AI_Coding on windows and ~/AI_Coding elsewhere.
func defaultBaseDir(goos, drive, home string) string {
	if goos == "windows" {
		drive = strings.TrimSuffix(strings.TrimSpace(drive), ":")
		if drive == "" {
			drive = "G"
		}
		return strings.ToUpper(drive) + `:\AI_Coding`
	}
	return filepath.Join(home, "AI_Coding")
}

func runSetup(cmd *cobra.Command, args []string) {
	drive, _ := cmd.Flags().GetString("drive")
	skipInstall, _ := cmd.Flags().GetBool("skip-install")

	base := ""
	if len(args) > 0 {
		base = args[0]
	} else {
		home, _ := os.UserHomeDir()
		base = defaultBaseDir(runtime.GOOS, drive, home)
	}

	log := logging.New("setup")
	p := provision.New(execx.NewOSRunner(), provision.WithLogger(logging.New("provision")))

	cfg, err := p.EnsureConfig(base)
	if err != nil {
		exitErr("setup", err)
	}

	rep := &provision.Report{}
	if !skipInstall {
		rep.Merge(p.InstallDependencies(cmd.Context(), cfg))
		rep.Merge(p.InstallRuntimePackages(cmd.Context(), cfg, nil))
	}

	exe, err := os.Executable()
	if err != nil {
		exitErr("locate executable", err)
	}
	launcher, err := p.WriteLauncher(cfg, exe)
	if err != nil {
		exitErr("write launcher", err)
	}

	recordInstalls(cmd.Context(), cfg, rep, log)
	if err := rep.Err(); err != nil {
		log.Warn("Setup finished with failures", zap.Int("failed", rep.Failed()), zap.Error(err))
	}

	out := setupOutput{
		Config:   cfg.Source,
		Launcher: launcher,
		Failed:   rep.Failed(),
		Results:  rep.Results,
	}
	if formatFlag == "text" {
		printSetupText(out)
		return
	}
	printJSON(out)
}

// recordInstalls keeps the report in the ledger. Ledger problems never fail setup.
func recordInstalls(ctx context.Context, cfg *model.Config, rep *provision.Report, log *zap.Logger) {
	if len(rep.Results) == 0 {
		return
	}
	s, err := openStore(cfg)
	if err != nil {
		log.Warn("Could not open ledger", zap.Error(err))
		return
	}
	defer s.Close()

	for i := range rep.Results {
		if err := s.RecordInstall(context.WithoutCancel(ctx), &rep.Results[i]); err != nil {
			log.Warn("Could not record install result", zap.String("target", rep.Results[i].Target), zap.Error(err))
		}
	}
}

func printSetupText(out setupOutput) {
	for _, r := range out.Results {
		line := fmt.Sprintf("%-12s %-10s %s", r.Kind, r.Status, r.Target)
		if r.Error != "" {
			line += ": " + r.Error
		}
		fmt.Println(line)
	}
	fmt.Printf("config:   %s\n", out.Config)
	fmt.Printf("launcher: %s\n", out.Launcher)
	if out.Failed > 0 {
		fmt.Printf("%d target(s) failed\n", out.Failed)
	}
}
