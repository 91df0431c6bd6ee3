package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leoneifler/ipet/pkg/experiment"
	"github.com/leoneifler/ipet/pkg/keys"
)

var keysCmd = &cobra.Command{
	Use:   "keys [testrun files]",
	Short: "List the data keys of testrun tables",
	Long:  "Loads the testrun tables and prints the union of their column names, optionally restricted to a regex pattern.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runKeys,
}

func init() {
	keysCmd.Flags().StringP("pattern", "p", "", "only list keys matching this regex")
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	exp := experiment.New()
	for _, path := range args {
		tr, err := experiment.LoadTestRun(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		if err := exp.AddTestRun(tr); err != nil {
			return err
		}
	}

	reg := keys.NewRegistry()
	for _, name := range exp.DataKeys() {
		if err := reg.Register(keys.RawDef(name, ""), false); err != nil {
			return err
		}
	}

	pattern, _ := cmd.Flags().GetString("pattern")
	matches, err := reg.MatchingKeys(pattern)
	if err != nil {
		return err
	}
	for name := range matches {
		fmt.Println(name)
	}
	return nil
}
