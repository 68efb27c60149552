package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/pipeline"
	"github.com/jackzampolin/bookdeck/internal/pipeline/stages"
	"github.com/jackzampolin/bookdeck/internal/wizard"
)

// stageCmd returns a command that runs the pipeline up to stage.
func stageCmd(stage, short string) *cobra.Command {
	var opts runFlags
	cmd := &cobra.Command{
		Use:   stage + " <book.epub|book.html>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			settings := opts.settings(cmd, args[0], e.defaults())
			exec := e.executor()

			r, err := exec.Stages(settings)
			if err != nil {
				return err
			}
			w, err := exec.WorkFor(settings)
			if err != nil {
				return err
			}
			err = r.Run(cmd.Context(), w, stage, pipeline.RunOptions{
				Force: settings.Force,
				OnStage: func(ev pipeline.StageEvent) {
					e.logger.Info(wizard.StepFrom(ev).Describe())
				},
			})
			if err != nil {
				return fmt.Errorf("%s: %w", stage, err)
			}
			return api.Output(wizard.Collect(w))
		},
	}
	opts.bind(cmd)
	return cmd
}

var statusCmd = &cobra.Command{
	Use:   "status <book.epub|book.html>",
	Short: "Show which stages are complete for a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		settings := statusOpts.settings(cmd, args[0], e.defaults())
		exec := e.executor()

		r, err := exec.Stages(settings)
		if err != nil {
			return err
		}
		w, err := exec.WorkFor(settings)
		if err != nil {
			return err
		}
		status, err := r.Status(cmd.Context(), w)
		if err != nil {
			return err
		}
		return api.Output(status)
	},
}

var statusOpts runFlags

func init() {
	for _, c := range []struct{ stage, short string }{
		{stages.Clean, "Convert and normalize a book into clean HTML"},
		{stages.Analyze, "Extract sections, chapters and key passages"},
		{stages.Cards, "Generate and style the card deck"},
		{stages.Images, "Illustrate cards and section landscapes"},
		{stages.Render, "Render card and section pages to PDF"},
		{stages.TOC, "Render the table of contents and key passages"},
	} {
		rootCmd.AddCommand(stageCmd(c.stage, c.short))
	}

	statusOpts.bind(statusCmd)
	rootCmd.AddCommand(statusCmd)
}
