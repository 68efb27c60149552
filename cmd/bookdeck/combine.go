package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
	"github.com/jackzampolin/bookdeck/internal/compose"
	"github.com/jackzampolin/bookdeck/internal/layout"
)

// watchSettle is how long the input directory must be quiet before a
// watched combine reruns.
const watchSettle = 500 * time.Millisecond

var (
	combineLayout    string
	combineScaleDown bool
	combineOut       string
	combineOpen      bool
	combineWatch     bool
)

var combineCmd = &cobra.Command{
	Use:   "combine <dir | file.pdf...>",
	Short: "Tile PDF pages onto printable A4 sheets",
	Long: `Combine tiles single card pages two (pair) or four (quad) to an A4 sheet
and passes larger pages and multi-page documents through. Given a single
directory, its PDFs are combined in numeric file-name order.

Examples:
  bookdeck combine cards/ --out deck.pdf
  bookdeck combine toc.pdf cards/*.pdf --layout quad --open
  bookdeck combine cards/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		cfg := e.config.Get()

		req := compose.Request{
			Output:    combineOut,
			Layout:    layout.Layout(cfg.Compose.Layout),
			ScaleDown: cfg.Compose.ScaleDown || combineScaleDown,
			Logger:    e.logger,
		}
		if combineLayout != "" {
			l, err := layout.ParseLayout(combineLayout)
			if err != nil {
				return err
			}
			req.Layout = l
		}

		combine := func() error {
			inputs, err := compose.ResolveInputs(args)
			if err != nil {
				return err
			}
			r := req
			r.Inputs = inputs
			res, err := compose.Combine(cmd.Context(), r)
			if err != nil {
				return err
			}
			return api.Output(res)
		}

		var open func() error
		if combineOpen {
			open = func() error { return openFile(cfg.Compose.Viewer, combineOut) }
		}
		if err := combineOnce(combine, open, combineWatch, e.logger); err != nil {
			return err
		}
		if !combineWatch {
			return nil
		}
		return watchInputs(cmd.Context(), args, combineOut, e.logger, combine)
	},
}

// combineOnce runs the first combine and then open, if set. A failure is
// returned unless watching, where it is logged and later changes retry. The
// viewer only starts once an output exists.
func combineOnce(combine, open func() error, watching bool, log *slog.Logger) error {
	if err := combine(); err != nil {
		if !watching {
			return err
		}
		log.Warn("combine failed", "error", err)
		return nil
	}
	if open != nil {
		if err := open(); err != nil {
			log.Warn("could not open output", "file", combineOut, "error", err)
		}
	}
	return nil
}

// watchInputs reruns fn whenever a PDF among inputs changes, until ctx is
// done. Writes to output itself are ignored.
func watchInputs(ctx context.Context, inputs []string, output string, log *slog.Logger, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, in := range inputs {
		path := in
		if fi, err := os.Stat(in); err == nil && !fi.IsDir() {
			path = filepath.Dir(in)
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}
	outAbs, _ := filepath.Abs(output)
	log.Info("watching for changes", "inputs", inputs)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".pdf") {
				continue
			}
			if abs, _ := filepath.Abs(ev.Name); abs == outAbs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug("input changed", "file", ev.Name, "op", ev.Op.String())
			settle = time.After(watchSettle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "error", err)
		case <-settle:
			settle = nil
			if err := fn(); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				log.Warn("combine failed", "error", err)
			}
		}
	}
}

// openFile opens path with viewer, or the platform's default handler.
func openFile(viewer, path string) error {
	var cmd *exec.Cmd
	switch {
	case viewer != "":
		cmd = exec.Command(viewer, path)
	case runtime.GOOS == "darwin":
		cmd = exec.Command("open", path)
	case runtime.GOOS == "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	return cmd.Start()
}

func init() {
	combineCmd.Flags().StringVar(&combineLayout, "layout", "", "Sheet layout: pair or quad (default from config)")
	combineCmd.Flags().BoolVar(&combineScaleDown, "scale-down", false, "Halve pages that pass through untiled")
	combineCmd.Flags().StringVar(&combineOut, "out", "combined.pdf", "Output PDF")
	combineCmd.Flags().BoolVar(&combineOpen, "open", false, "Open the result in a PDF viewer")
	combineCmd.Flags().BoolVar(&combineWatch, "watch", false, "Recombine whenever an input PDF changes")

	rootCmd.AddCommand(combineCmd)
}
