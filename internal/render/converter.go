package render

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/avast/retry-go/v4"
)

// DefaultCommand is the HTML to PDF converter used when none is configured.
const DefaultCommand = "weasyprint"

// Converter turns an HTML file into a PDF file.
type Converter interface {
	Convert(ctx context.Context, htmlPath, pdfPath string) error
}

// CommandConverter runs an external converter as
// `<Command> <Args...> <html> <pdf>`.
type CommandConverter struct {
	Command  string
	Args     []string
	Attempts uint
	Delay    time.Duration
	Logger   *slog.Logger
}

// NewCommandConverter creates a converter for command with two attempts.
func NewCommandConverter(command string, logger *slog.Logger) *CommandConverter {
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandConverter{
		Command:  command,
		Attempts: 2,
		Delay:    500 * time.Millisecond,
		Logger:   logger,
	}
}

// CheckAvailable checks that the converter command is in PATH.
func (c *CommandConverter) CheckAvailable() error {
	if _, err := exec.LookPath(c.Command); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", c.Command, err)
	}
	return nil
}

// Convert runs the command, retrying failed runs.
func (c *CommandConverter) Convert(ctx context.Context, htmlPath, pdfPath string) error {
	attempts := c.Attempts
	if attempts == 0 {
		attempts = 1
	}
	args := append(append([]string(nil), c.Args...), htmlPath, pdfPath)

	return retry.Do(
		func() error {
			cmd := exec.CommandContext(ctx, c.Command, args...)
			output, err := cmd.CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s failed: %w\nOutput: %s", c.Command, err, string(output))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.Logger.Debug("retrying conversion", "file", htmlPath, "attempt", n+1, "error", err)
		}),
	)
}
