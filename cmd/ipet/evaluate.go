package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/spf13/cobra"

	"github.com/leoneifler/ipet/pkg/evaluation"
	"github.com/leoneifler/ipet/pkg/experiment"
	"github.com/leoneifler/ipet/pkg/render"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [testrun files]",
	Short: "Run an evaluation over testrun tables",
	Long:  "Parses the evaluation file, loads the testrun tables (.csv, .json or .parquet), runs the evaluation and streams the instance-wise and aggregated tables.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringP("eval", "e", "", "evaluation file (.xml or .yaml)")
	evaluateCmd.Flags().String("index", "", "space-separated index levels, overriding the evaluation file")
	evaluateCmd.Flags().Int("indexsplit", -1, "number of leading index levels kept as row levels")
	evaluateCmd.Flags().String("defaultgroup", "", "baseline settings value for comparison columns")
	evaluateCmd.Flags().String("comparecolformat", "", "numeric format for comparison columns")
	evaluateCmd.Flags().String("format", string(render.FormatConsole), "output format: stdout, csv, tex or txt")
	evaluateCmd.Flags().StringP("out", "o", "", "write tables to this directory instead of stdout")
	evaluateCmd.Flags().Bool("groups", false, "also stream the per-group sub-tables")
	evaluateCmd.MarkFlagRequired("eval")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	evalPath, _ := cmd.Flags().GetString("eval")
	ev, err := loadEvaluation(evalPath)
	if err != nil {
		return err
	}

	if index, _ := cmd.Flags().GetString("index"); index != "" {
		ev.SetIndex(strings.Fields(index)...)
	}
	if split, _ := cmd.Flags().GetInt("indexsplit"); split >= 0 {
		ev.SetIndexSplit(split)
	}
	if dg, _ := cmd.Flags().GetString("defaultgroup"); dg != "" {
		ev.SetDefaultGroup(dg)
	}
	if ccf, _ := cmd.Flags().GetString("comparecolformat"); ccf != "" {
		ev.SetCompareColumnFormat(ccf)
	}

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

	instance, agg, err := ev.Evaluate(exp)
	if err != nil {
		return err
	}

	formatName, _ := cmd.Flags().GetString("format")
	format := render.Format(formatName)
	outDir, _ := cmd.Flags().GetString("out")
	opts := render.Options{Formats: ev.Formats()}

	stream := func(df *dataframe.DataFrame, name string) error {
		if outDir == "" {
			if err := render.Stream(os.Stdout, df, name, format, opts); err != nil {
				return err
			}
			fmt.Println()
			return nil
		}
		ext := string(format)
		if format == render.FormatConsole {
			ext = "txt"
		}
		f, err := os.Create(filepath.Join(outDir, name+"."+ext))
		if err != nil {
			return err
		}
		defer f.Close()
		return render.Stream(f, df, name, format, opts)
	}

	if err := stream(instance, "instancewise"); err != nil {
		return err
	}
	if err := stream(agg, "aggregated"); err != nil {
		return err
	}

	if withGroups, _ := cmd.Flags().GetBool("groups"); withGroups {
		for _, g := range ev.ActiveFilterGroups() {
			sub, err := ev.InstanceGroupData(g.Name)
			if err != nil {
				return err
			}
			if err := stream(sub, "filtered_"+g.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadEvaluation(path string) (*evaluation.Evaluation, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xml":
		return evaluation.ParseXMLFile(path)
	case ".yaml", ".yml":
		return evaluation.ParseYAMLFile(path)
	default:
		return nil, fmt.Errorf("unsupported evaluation file extension %q", ext)
	}
}
