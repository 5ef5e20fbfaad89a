package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/DeepenData/pkuir/pipeline"
	"github.com/DeepenData/pkuir/pkg/history"
	"github.com/DeepenData/pkuir/report"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

const defaultHistoryPath = "runs.db"

type historyOptions struct {
	dbPath string
	limit  int
	runID  string
}

func newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded training runs",
		Long: `Lists the runs recorded with "pkuir train --history", most recent first.
With --run the feature table of that run is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.dbPath, "db", defaultHistoryPath, "History database (SQLite)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&opts.runID, "run", "", "Show the feature table of one run")
	return cmd
}

func runHistory(cmd *cobra.Command, opts *historyOptions) error {
	store, err := history.Open(cmd.Context(), opts.dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if opts.runID != "" {
		run, err := store.Get(cmd.Context(), opts.runID)
		if err != nil {
			return err
		}
		features, err := store.Features(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run %s  test AUC %.4f  trees %d\n", run.ID, run.TestAUC, run.Trees)
		fmt.Fprintln(out, renderFeatures(features))
		return nil
	}

	runs, err := store.List(cmd.Context(), opts.limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderRuns(runs))
	return nil
}

// recordRun appends a finished run to the history database at path.
func recordRun(ctx context.Context, path string, cfg pipeline.Config, res *pipeline.Result) error {
	store, err := history.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := history.Run{
		ID:            res.RunID,
		DataPath:      cfg.DataPath,
		Target:        cfg.Target,
		Folds:         cfg.KFoldSplits,
		FoldSelection: cfg.FoldSelection,
		Trees:         res.Booster.NumTrees(),
		TestAUC:       res.AUC,
		TrainAUC:      res.TrainAUC,
		Params:        cfg.Params,
	}
	if res.Split != nil {
		seed := res.Split.Seed
		run.Seed = &seed
	}
	if res.CV != nil {
		run.CVMean = res.CV.MeanScore()
		run.CVStd = res.CV.StdScore()
	}

	features := make([]history.Feature, 0, res.Features.Len())
	for _, r := range res.Features.Rows {
		features = append(features, history.Feature{
			Feature:      r.Feature,
			SHAPHealthy:  r.SHAPHealthy,
			SHAPAbnormal: r.SHAPAbnormal,
			Weight:       r.Weight,
			Coverage:     r.Coverage,
			Gain:         r.Gain,
		})
	}
	return store.Record(ctx, run, features)
}

func renderRuns(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		seed := "-"
		if r.Seed != nil {
			seed = strconv.FormatUint(*r.Seed, 10)
		}
		rows = append(rows, []string{
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			seed,
			strconv.Itoa(r.Folds) + " " + r.FoldSelection,
			strconv.Itoa(r.Trees),
			strconv.FormatFloat(r.TestAUC, 'f', 4, 64),
			fmt.Sprintf("%.4f ± %.4f", r.CVMean, r.CVStd),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Run", "Created", "Seed", "Folds", "Trees", "Test AUC", "CV").
		Rows(rows...).
		String()
}

func renderFeatures(features []history.Feature) string {
	rows := make([][]string, 0, len(features))
	for _, f := range features {
		rows = append(rows, []string{
			f.Feature,
			strconv.FormatFloat(f.SHAPHealthy, 'f', 4, 64),
			strconv.FormatFloat(f.SHAPAbnormal, 'f', 4, 64),
			strconv.FormatFloat(f.Weight, 'f', -1, 64),
			strconv.FormatFloat(f.Coverage, 'f', 4, 64),
			strconv.FormatFloat(f.Gain, 'f', 4, 64),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(report.Headers...).
		Rows(rows...).
		String()
}
