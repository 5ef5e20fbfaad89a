package main

import (
	"fmt"

	"github.com/DeepenData/pkuir/pipeline"
	"github.com/DeepenData/pkuir/pkg/config"
	"github.com/DeepenData/pkuir/pkg/errors"
	"github.com/DeepenData/pkuir/pkg/log"
	"github.com/DeepenData/pkuir/preprocessing"
	"github.com/DeepenData/pkuir/report"
	"github.com/spf13/cobra"
)

// globalOptions are shared by every subcommand.
type globalOptions struct {
	logLevel   string
	logConsole bool
}

// dataOptions select the dataset and the parameters file.
type dataOptions struct {
	configPath string
	dataPath   string
	target     string
	plotPath   string
	format     string
}

func (o *dataOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.configPath, "config", "c", config.DefaultPath, "Parameters file (YAML)")
	cmd.Flags().StringVarP(&o.dataPath, "data", "d", pipeline.DefaultDataPath, "Input CSV")
	cmd.Flags().StringVar(&o.target, "target", preprocessing.DefaultTarget, "Label column")
	cmd.Flags().StringVar(&o.plotPath, "plot", "", "Write a PNG bar chart of the cohort SHAP values")
	cmd.Flags().StringVar(&o.format, "format", formatTable, "Summary format (table, markdown, markdown-raw)")
}

const (
	formatTable       = "table"
	formatMarkdown    = "markdown"
	formatMarkdownRaw = "markdown-raw"
)

// printSummary writes the run summary to the command's stdout in o.format.
func (o *dataOptions) printSummary(cmd *cobra.Command, res *pipeline.Result) error {
	out := cmd.OutOrStdout()
	switch o.format {
	case formatTable:
		fmt.Fprint(out, report.RenderSummary(res))
	case formatMarkdownRaw:
		fmt.Fprint(out, report.Markdown(res))
	case formatMarkdown:
		rendered, err := report.RenderMarkdown(res, "auto")
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
	default:
		return errors.NewConfigError("format", fmt.Sprintf("unknown format %q", o.format))
	}
	return nil
}

// pipelineConfig loads the parameters file and applies the flags.
func (o *dataOptions) pipelineConfig() (pipeline.Config, error) {
	switch o.format {
	case formatTable, formatMarkdown, formatMarkdownRaw:
	default:
		return pipeline.Config{}, errors.NewConfigError("format", fmt.Sprintf("unknown format %q", o.format))
	}
	file, err := config.Load(o.configPath)
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg := pipeline.FromFile(file)
	cfg.DataPath = o.dataPath
	cfg.Target = o.target
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "pkuir",
		Short: "HOMA-IR gradient boosting experiment",
		Long: `pkuir trains a gradient-boosted classifier for altered HOMA-IR on the
clinical dataset and explains it with SHAP values of the healthy and abnormal
cohorts.

Example:
  pkuir train --config params.yml --data data/data.csv --model-out model.gob
  pkuir explain --model model.gob --data data/data.csv
  pkuir history --db runs.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(opts.logLevel)
			if err != nil {
				return errors.NewConfigError("log-level", err.Error())
			}
			if opts.logConsole {
				log.SetProvider(log.NewConsoleProvider(level))
			} else {
				log.SetProvider(log.NewZerologProviderWithWriter(cmd.ErrOrStderr(), level))
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.logConsole, "log-console", false, "Human readable logs instead of JSON")

	root.AddCommand(newTrainCmd())
	root.AddCommand(newExplainCmd())
	root.AddCommand(newHistoryCmd())
	return root
}
