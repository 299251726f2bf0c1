package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rcliao/autocoder/internal/analyzer"
	"github.com/rcliao/autocoder/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze [project-root]",
		Short: "Ask the local model for one suggestion per file",
		Long: `Walk project-root (default: paths.projects from the config) and send the first
analyzer.batch_limit matching files to the primary model, one at a time.
Suggestions are printed as they arrive and every file gets a line in
<logs>/analyzer.log. Failed files do not change the exit status unless
analyzer.fail_on_error is set.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runAnalyze,
	}

	RootCmd.AddCommand(cmd)
}

// progressWriter keeps stdout free for the JSON summary unless text output was asked for.
func progressWriter(format string, stdout, stderr io.Writer) io.Writer {
	if format == "text" {
		return stdout
	}
	return stderr
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	project := ""
	if len(args) > 0 {
		project = args[0]
	}

	log := logging.New("cli")
	opts := analyzer.Options{
		Out:    progressWriter(formatFlag, os.Stdout, os.Stderr),
		Logger: logging.New("analyzer"),
	}
	s, err := openStore(cfg)
	if err != nil {
		log.Warn("Run history disabled", zap.Error(err))
	} else {
		defer s.Close()
		opts.Recorder = s
	}

	a, err := analyzer.Initialize(cfg, project, opts)
	if err != nil {
		exitErr("initialize", err)
	}
	sum, runErr := a.Run(cmd.Context())
	a.Close()

	if formatFlag == "text" {
		fmt.Printf("%d processed, %d succeeded, %d failed\n", sum.Processed, sum.Succeeded, sum.Failed)
	} else {
		printJSON(sum)
	}

	switch {
	case runErr != nil:
		if s != nil {
			s.Close()
		}
		exitErr("analyze", runErr)
	case cfg.Analyzer.FailOnError && sum.Failed > 0:
		if s != nil {
			s.Close()
		}
		exitErr("analyze", errors.New("one or more files failed"))
	}
}
