package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/stxue1/wdltest/harness"
)

var (
	flags        harness.HarnessFlags // flags to tweak the harness
	configFile   string               // configFile is the xfail/skip exclusions artifact
	specVersions []string             // specVersions selects which version suites to touch
)

// ErrRunFailed marks a completed run with unexpected failures or passes.
// Execute maps it to exit code 1; every other error is a harness or
// configuration problem and exits 2.
var ErrRunFailed = errors.New("conformance failures present")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wdltest",
	Short: "WDL conformance test harness",
	Long: `wdltest runs an external WDL engine against the conformance fixtures of
one or more spec versions and classifies every case as passed, failed,
skipped, or an expected failure declared by the exclusions artifact.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, ErrRunFailed) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "xfail/skip exclusions file")
	rootCmd.PersistentFlags().StringSliceVar(&specVersions, "spec-version", nil, `spec versions to run, repeatable ("all" selects every version directory)`)
	rootCmd.PersistentFlags().IntVar(&flags.MaxParallelLimit, "concurrency", 1, "max test cases run in parallel")
	rootCmd.PersistentFlags().DurationVar(&flags.CaseTimeLimit, "timeout", harness.DefaultCaseTimeLimit, "timeout for a single test case")
	rootCmd.PersistentFlags().DurationVar(&flags.TotalTimeLimit, "total-timeout", 0, "timeout for the entire run")
	rootCmd.PersistentFlags().StringSliceVar(&flags.OnlyNames, "only", nil, "run only the named cases")
}

func loadExclusions() (harness.Exclusions, error) {
	if configFile == "" {
		return harness.Exclusions{}, nil
	}
	return harness.LoadExclusions(configFile)
}

// resolveVersions turns the --spec-version flags into a version list;
// nil means "every version directory found".
func resolveVersions() []string {
	var out []string
	for _, v := range specVersions {
		if v == "all" {
			return nil
		}
		out = append(out, v)
	}
	return out
}
