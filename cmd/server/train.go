package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/dataset"
	"github.com/Skufu/heartrisk/internal/model"
)

type trainOptions struct {
	datasetPath  string
	bundlePath   string
	testFraction float64
	seed         int64
	maxIter      int
	c            float64
}

func newTrainCmd(configPath *string) *cobra.Command {
	var opts trainOptions

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the classifier on the dataset and write the model bundle",
		Long: "Reads the labelled dataset, holds out a stratified test split, fits the logistic\n" +
			"regression on the rest, writes the bundle and prints the held-out metrics as JSON.\n" +
			"Unset flags fall back to the model section of the configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadRuntime(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			flags := cmd.Flags()
			if !flags.Changed("dataset") {
				opts.datasetPath = cfg.Model.DatasetPath
			}
			if !flags.Changed("out") {
				opts.bundlePath = cfg.Model.BundlePath
			}
			if !flags.Changed("test-fraction") {
				opts.testFraction = cfg.Model.TestFraction
			}
			if !flags.Changed("seed") {
				opts.seed = cfg.Model.Seed
			}

			metrics, err := runTrain(opts, log)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(metrics)
		},
	}

	defaults := model.DefaultFitOptions()
	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "training CSV")
	cmd.Flags().StringVar(&opts.bundlePath, "out", "", "where to write the model bundle")
	cmd.Flags().Float64Var(&opts.testFraction, "test-fraction", 0.2, "held-out share per class")
	cmd.Flags().Int64Var(&opts.seed, "seed", 42, "split seed")
	cmd.Flags().IntVar(&opts.maxIter, "max-iter", defaults.MaxIter, "maximum Newton iterations")
	cmd.Flags().Float64Var(&opts.c, "c", defaults.C, "inverse L2 regularisation strength")
	return cmd
}

func runTrain(opts trainOptions, log *zap.Logger) (model.Metrics, error) {
	ds, err := dataset.Load(opts.datasetPath)
	if err != nil {
		return model.Metrics{}, err
	}

	fit := model.DefaultFitOptions()
	if opts.maxIter > 0 {
		fit.MaxIter = opts.maxIter
	}
	if opts.c > 0 {
		fit.C = opts.c
	}

	start := time.Now()
	res, err := model.Train(ds, opts.testFraction, opts.seed, fit)
	if err != nil {
		return model.Metrics{}, err
	}
	if err := model.SaveBundle(opts.bundlePath, res.Classifier, time.Now().UTC()); err != nil {
		return model.Metrics{}, fmt.Errorf("save bundle: %w", err)
	}

	log.Info("model trained",
		zap.String("dataset", opts.datasetPath),
		zap.String("bundle", opts.bundlePath),
		zap.Int("rows", len(ds.Rows)),
		zap.Float64("accuracy", res.Metrics.Accuracy),
		zap.Duration("took", time.Since(start)),
	)
	return res.Metrics, nil
}
