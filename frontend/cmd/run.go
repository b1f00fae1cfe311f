package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stxue1/wdltest/harness"
)

var (
	engineCmdline string
	workDir       string
	jsonReport    bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [testsDir]",
	Short: "Run the conformance suite against a WDL engine",
	Long: `wdltest run discovers the fixtures under testsDir (default "tests"),
invokes the engine for every case that is not skipped and prints the
classified report. An interrupt stops dispatching, terminates in-flight
engines and still emits the partial report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		testsDir := "tests"
		if len(args) == 1 {
			testsDir = args[0]
		}
		return run(testsDir)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&engineCmdline, "engine", "miniwdl run", "engine command line, appended with the WDL path and the inputs path")
	runCmd.Flags().StringVar(&workDir, "workdir", "", "scratch root for engine working directories")
	runCmd.Flags().BoolVar(&jsonReport, "json", false, "print the report as JSON")
}

func run(testsDir string) error {
	exclusions, err := loadExclusions()
	if err != nil {
		return err
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	engine, err := harness.NewLocalEngine(engineCmdline, workDir)
	if err != nil {
		return err
	}

	h, err := harness.NewHarness(harness.HarnessConfig{
		TestsDir:   testsDir,
		Versions:   resolveVersions(),
		Exclusions: exclusions,
		Runner:     engine,
		Receiver:   harness.ZapMsgReceiver{Log: logger},
		Flags:      flags,
	})
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		h.Signals() <- harness.SignalAbort
	}()

	report := h.Run(context.Background())

	if jsonReport {
		raw, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
	} else {
		report.WriteText(os.Stdout)
	}

	if len(report.DiscoveryFailures) > 0 {
		return fmt.Errorf("discovery failed for %d spec version(s)", len(report.DiscoveryFailures))
	}
	if !report.Success {
		return ErrRunFailed
	}
	return nil
}
