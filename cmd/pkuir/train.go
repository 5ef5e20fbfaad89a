package main

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/DeepenData/pkuir/core/model"
	"github.com/DeepenData/pkuir/pipeline"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/DeepenData/pkuir/report"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type trainOptions struct {
	dataOptions
	modelOut       string
	predictionsOut string
	historyPath    string
	metricsOut     string
	numBoostRound  int
	earlyStopping  int
	foldTimeLimit  time.Duration
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train, evaluate and explain the model",
		Long: `Splits the dataset, trains one booster per stratified fold with early
stopping, evaluates the kept booster on the test split and prints the merged
SHAP/importance feature table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrain(cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.modelOut, "model-out", "o", "", "Save the trained booster (gob)")
	cmd.Flags().StringVar(&opts.predictionsOut, "predictions", "", "Write test-split predictions as CSV")
	cmd.Flags().StringVar(&opts.historyPath, "history", "", "Record the run in a SQLite history database")
	cmd.Flags().StringVar(&opts.metricsOut, "metrics-file", "", "Write run gauges for the Prometheus textfile collector")
	cmd.Flags().IntVar(&opts.numBoostRound, "rounds", pipeline.DefaultNumBoostRound, "Maximum boosting rounds per fold")
	cmd.Flags().IntVar(&opts.earlyStopping, "early-stopping", pipeline.DefaultEarlyStoppingRounds, "Early stopping patience (0 disables)")
	cmd.Flags().DurationVar(&opts.foldTimeLimit, "fold-time-limit", 0, "Stop boosting a fold after this long (0 means no limit)")
	return cmd
}

func runTrain(cmd *cobra.Command, opts *trainOptions) error {
	cfg, err := opts.pipelineConfig()
	if err != nil {
		return err
	}
	cfg.NumBoostRound = opts.numBoostRound
	cfg.EarlyStoppingRounds = opts.earlyStopping
	cfg.FoldTimeLimit = opts.foldTimeLimit
	cfg.RunID = uuid.NewString()

	logger := log.GetLoggerWithName("pkuir").With(log.RunIDKey, cfg.RunID)
	logger.Info("training started",
		log.ConfigPathKey, opts.configPath,
		log.PathKey, cfg.DataPath,
	)

	start := time.Now()
	res, err := pipeline.Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if err := opts.printSummary(cmd, res); err != nil {
		return err
	}

	if opts.modelOut != "" {
		if err := model.SaveModel(res.Booster, opts.modelOut); err != nil {
			return err
		}
		logger.Info("model saved", log.PathKey, opts.modelOut, log.TreesKey, res.Booster.NumTrees())
	}
	if opts.predictionsOut != "" {
		if err := writePredictions(opts.predictionsOut, res.Predictions); err != nil {
			return err
		}
	}
	if opts.plotPath != "" {
		if err := report.PlotImportance(res.Features, opts.plotPath); err != nil {
			return err
		}
		logger.Info("plot saved", log.PathKey, opts.plotPath)
	}
	if opts.metricsOut != "" {
		if err := report.WriteMetrics(res, elapsed, opts.metricsOut); err != nil {
			return err
		}
		logger.Info("metrics written", log.PathKey, opts.metricsOut)
	}
	if opts.historyPath != "" {
		if err := recordRun(cmd.Context(), opts.historyPath, cfg, res); err != nil {
			return err
		}
		logger.Info("run recorded", log.PathKey, opts.historyPath)
	}
	return nil
}

func writePredictions(path string, preds []pipeline.Prediction) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"row", "label", "probability"}); err != nil {
		return errors.Wrap(err, "failed to write predictions")
	}
	for _, p := range preds {
		record := []string{
			strconv.Itoa(p.Row),
			strconv.FormatFloat(p.Label, 'f', -1, 64),
			strconv.FormatFloat(p.Probability, 'f', 6, 64),
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "failed to write predictions")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "failed to flush predictions")
}
