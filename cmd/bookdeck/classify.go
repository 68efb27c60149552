package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/compose"
)

// ClassifiedPDF is one row of classify output.
type ClassifiedPDF struct {
	File   string `json:"file" yaml:"file"`
	Class  string `json:"class" yaml:"class"`
	Pages  int    `json:"pages" yaml:"pages"`
	Width  int    `json:"width_pt,omitempty" yaml:"width_pt,omitempty"`
	Height int    `json:"height_pt,omitempty" yaml:"height_pt,omitempty"`
}

var classifyCmd = &cobra.Command{
	Use:   "classify <dir | file.pdf...>",
	Short: "Print the size class and page count of PDFs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := compose.ResolveInputs(args)
		if err != nil {
			return err
		}
		e, err := loadEnv()
		if err != nil {
			return err
		}

		var out []ClassifiedPDF
		for _, src := range compose.Probe(inputs, e.logger) {
			row := ClassifiedPDF{
				File:  filepath.Base(src.Path),
				Class: string(src.Class()),
				Pages: len(src.Pages),
			}
			if len(src.Pages) > 0 {
				row.Width = int(src.Pages[0].Width + 0.5)
				row.Height = int(src.Pages[0].Height + 0.5)
			}
			out = append(out, row)
		}
		return api.Output(out)
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
