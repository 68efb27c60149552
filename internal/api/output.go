package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat is how CLI commands print structured results.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// format is set by the root command's --output flag.
var format = OutputFormatYAML

// SetOutputFormat selects the format Output uses.
func SetOutputFormat(f string) error {
	switch OutputFormat(f) {
	case OutputFormatJSON, OutputFormatYAML:
		format = OutputFormat(f)
		return nil
	case "":
		format = OutputFormatYAML
		return nil
	}
	return fmt.Errorf("unknown output format %q (want yaml or json)", f)
}

// Output writes data to stdout in the selected format.
func Output(data any) error {
	return OutputTo(os.Stdout, format, data)
}

// OutputTo writes data to w in format f.
func OutputTo(w io.Writer, f OutputFormat, data any) error {
	switch f {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", f)
	}
}
