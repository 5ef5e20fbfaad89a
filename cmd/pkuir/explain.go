package main

import (
	"github.com/DeepenData/pkuir/core/model"
	"github.com/DeepenData/pkuir/pipeline"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/DeepenData/pkuir/report"
	"github.com/DeepenData/pkuir/sklearn/gbdt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type explainOptions struct {
	dataOptions
	modelPath string
}

func newExplainCmd() *cobra.Command {
	opts := &explainOptions{}

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Explain a saved booster on the test split",
		Long: `Reloads a booster saved by "pkuir train --model-out", rebuilds the test
split from the same parameters file and prints its AUC and feature table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.modelPath, "model", "m", "", "Saved booster (gob)")
	_ = cmd.MarkFlagRequired("model")
	return cmd
}

func runExplain(cmd *cobra.Command, opts *explainOptions) error {
	cfg, err := opts.pipelineConfig()
	if err != nil {
		return err
	}
	cfg.RunID = uuid.NewString()

	var booster gbdt.Booster
	if err := model.LoadModel(&booster, opts.modelPath); err != nil {
		return err
	}
	log.GetLoggerWithName("pkuir").Info("model loaded",
		log.RunIDKey, cfg.RunID,
		log.PathKey, opts.modelPath,
		log.TreesKey, booster.NumTrees(),
	)

	res, err := pipeline.Explain(cmd.Context(), cfg, &booster)
	if err != nil {
		return err
	}
	if err := opts.printSummary(cmd, res); err != nil {
		return err
	}

	if opts.plotPath != "" {
		return report.PlotImportance(res.Features, opts.plotPath)
	}
	return nil
}
