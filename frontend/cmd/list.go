package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stxue1/wdltest/harness"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [testsDir]",
	Short: "List discovered cases and their declared dispositions",
	Long: `wdltest list is the dry-run view of the exclusions artifact: every
discovered case with its disposition (normal, xfail or skip) and the
annotation reason, without invoking the engine.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		testsDir := "tests"
		if len(args) == 1 {
			testsDir = args[0]
		}
		return list(testsDir)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func list(testsDir string) error {
	exclusions, err := loadExclusions()
	if err != nil {
		return err
	}

	versions := resolveVersions()
	if len(versions) == 0 {
		versions, err = harness.Versions(testsDir)
		if err != nil {
			return err
		}
	}

	for _, version := range versions {
		cases, err := harness.Discover(testsDir, version)
		if err != nil {
			return err
		}
		for _, c := range cases {
			disposition := exclusions.Lookup(version, c.Name)
			if disposition.Reason != "" {
				fmt.Printf("%s\t%s\t%s\t%s\n", version, c.Name, disposition.Kind, disposition.Reason)
			} else {
				fmt.Printf("%s\t%s\t%s\n", version, c.Name, disposition.Kind)
			}
		}
		for _, name := range exclusions.Stale(version, cases) {
			fmt.Printf("%s\t%s\tstale\n", version, name)
		}
	}
	return nil
}
