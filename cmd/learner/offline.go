package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var seedText string

func init() {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Retrain from the training log and dataset, then save",
		RunE:  runTrain,
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Continue --seed with the saved model",
		RunE:  runGenerate,
	}
	generateCmd.Flags().StringVarP(&seedText, "seed", "s", "", "Seed text to continue")
	_ = generateCmd.MarkFlagRequired("seed")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print learner statistics as JSON",
		RunE:  runStats,
	}

	rootCmd.AddCommand(trainCmd, generateCmd, statsCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newLearnerApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.svc.Bootstrap(ctx); err != nil {
		return err
	}
	result, err := app.svc.Train(ctx)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if seedText == "" {
		return errors.New("--seed must not be empty")
	}
	ctx := cmd.Context()
	app, err := newLearnerApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	app.svc.Load(ctx)
	text, err := app.svc.Generate(ctx, seedText)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newLearnerApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	app.svc.Load(ctx)
	b, _ := json.MarshalIndent(app.svc.Stats(ctx), "", "  ")
	fmt.Println(string(b))
	return nil
}
