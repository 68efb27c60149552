package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/wizard"
)

// runFlags binds the settings flags shared by run and the step commands.
type runFlags struct {
	name      string
	cards     int
	noImages  bool
	tocOnly   bool
	layout    string
	scaleDown bool
	force     bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Book name (default: derived from the input file)")
	cmd.Flags().IntVar(&f.cards, "cards", 0, "Total number of cards (default from config)")
	cmd.Flags().BoolVar(&f.noImages, "no-images", false, "Skip image generation")
	cmd.Flags().BoolVar(&f.tocOnly, "toc-only", false, "Only produce the table of contents and key passages")
	cmd.Flags().StringVar(&f.layout, "layout", "", "Sheet layout: pair or quad (default from config)")
	cmd.Flags().BoolVar(&f.scaleDown, "scale-down", false, "Halve pages that pass through untiled")
	cmd.Flags().BoolVar(&f.force, "force", false, "Rerun stages whose outputs already exist")
}

// settings overlays the flags that were set onto defaults.
func (f *runFlags) settings(cmd *cobra.Command, input string, defaults wizard.Settings) wizard.Settings {
	s := defaults
	s.Input = input
	s.Name = f.name
	s.Force = f.force
	if cmd.Flags().Changed("cards") {
		s.TotalCards = f.cards
	}
	if f.noImages {
		s.GenerateImages = false
	}
	if f.tocOnly {
		s.TOCOnly = true
	}
	if f.layout != "" {
		s.Layout = f.layout
	}
	if f.scaleDown {
		s.ScaleDown = true
	}
	return s
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run <book.epub|book.html>",
	Short: "Build a complete deck from a book",
	Long: `Run every stage for a book: clean, analyze, cards, images, render, toc
and combine. Stages whose outputs already exist in the book's work directory
are skipped unless --force is given.

Examples:
  bookdeck run book.epub
  bookdeck run book.epub --cards 30 --layout quad
  bookdeck run book.html --toc-only`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}

		st := wizard.New("cli", time.Now())
		st, err = wizard.Submit(st, runOpts.settings(cmd, args[0], e.defaults()), time.Now())
		if err != nil {
			return err
		}

		final, err := wizard.Drive(cmd.Context(), st, e.executor(), func(s wizard.State) {
			if n := len(s.Steps); n > 0 && s.Phase == wizard.PhaseProcessing {
				e.logger.Info(s.Steps[n-1].Describe())
			}
		})
		if err != nil {
			return err
		}
		if err := api.Output(final.Outcome); err != nil {
			return err
		}
		if !final.Outcome.Succeeded() {
			return fmt.Errorf("run failed: %s", final.Outcome.Error)
		}
		return nil
	},
}

func init() {
	runOpts.bind(runCmd)
	rootCmd.AddCommand(runCmd)
}
