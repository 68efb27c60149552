package main

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/llmcall"
)

var (
	callsPrompt  string
	callsSince   time.Duration
	callsFailed  bool
	callsLimit   int
	callsSummary bool
)

var callsCmd = &cobra.Command{
	Use:   "calls <book-name>",
	Short: "List the LLM calls recorded for a book",
	Long: `List the LLM calls recorded while building a book's deck, or with
--summary, token and cost totals per prompt.

Examples:
  bookdeck calls Deep_Work --summary
  bookdeck calls Deep_Work --prompt stages.cards.concept --limit 5
  bookdeck calls Deep_Work --failed --since 1h`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		filter := llmcall.QueryFilter{
			Book:      args[0],
			PromptKey: callsPrompt,
			Limit:     callsLimit,
		}
		if callsSince > 0 {
			after := time.Now().Add(-callsSince)
			filter.After = &after
		}
		if callsFailed {
			ok := false
			filter.Success = &ok
		}

		calls, err := llmcall.List(filepath.Join(e.home.WorkPath(args[0]), callLogName), filter)
		if err != nil {
			return err
		}
		if callsSummary {
			return api.Output(llmcall.Summarize(calls))
		}
		return api.Output(calls)
	},
}

func init() {
	callsCmd.Flags().StringVar(&callsPrompt, "prompt", "", "Only calls for this prompt key")
	callsCmd.Flags().DurationVar(&callsSince, "since", 0, "Only calls newer than this")
	callsCmd.Flags().BoolVar(&callsFailed, "failed", false, "Only failed calls")
	callsCmd.Flags().IntVar(&callsLimit, "limit", 0, "Maximum calls to list (0 for all)")
	callsCmd.Flags().BoolVar(&callsSummary, "summary", false, "Totals per prompt instead of individual calls")

	rootCmd.AddCommand(callsCmd)
}
