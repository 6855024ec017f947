// Package output formats decision/trace results for the dcg CLI and its
// hook wrapper. JSON output uses snake_case keys throughout; YAML is
// produced by round-tripping through JSON so struct field names survive.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.yaml.in/yaml/v3"
)

// Format represents the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOON Format = "toon"
)

// Writer handles formatted output.
type Writer struct {
	format    Format
	out       io.Writer
	errOut    io.Writer
	showStats bool
}

// Option configures the Writer.
type Option func(*Writer)

// WithOutput sets the standard output writer.
func WithOutput(w io.Writer) Option {
	return func(wr *Writer) {
		wr.out = w
	}
}

// WithErrorOutput sets the error output writer.
func WithErrorOutput(w io.Writer) Option {
	return func(wr *Writer) {
		wr.errOut = w
	}
}

// WithStats enables TOON byte-savings comparison output on stderr.
func WithStats(show bool) Option {
	return func(wr *Writer) {
		wr.showStats = show
	}
}

// New creates a new output writer.
func New(format Format, opts ...Option) *Writer {
	w := &Writer{
		format: format,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs data in the configured format. data is typically an
// engine.Decision, an engine.Trace, or a hookio envelope — any value
// that marshals cleanly to JSON.
func (w *Writer) Write(data any) error {
	var jsonBytes []byte
	if w.showStats {
		var err error
		jsonBytes, err = json.Marshal(data)
		if err == nil {
			w.printStats(jsonBytes)
		}
	}

	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		normalized, err := normalizeForYAML(data)
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(normalized)
		if err != nil {
			return err
		}
		if len(b) == 0 || b[len(b)-1] != '\n' {
			b = append(b, '\n')
		}
		_, err = w.out.Write(b)
		return err
	case FormatText:
		// Human-friendly output goes to stderr to keep stdout clean for piping.
		_, err := fmt.Fprintf(w.errOut, "%v\n", data)
		return err
	case FormatTOON:
		return w.writeTOON(data)
	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}

// printStats outputs a TOON byte-savings comparison to stderr.
func (w *Writer) printStats(jsonBytes []byte) {
	jsonSize := len(jsonBytes)

	if w.format == FormatTOON {
		toonStr, err := EncodeTOON(json.RawMessage(jsonBytes))
		if err != nil {
			fmt.Fprintf(w.errOut, "[dcg-toon] JSON: %d bytes (TOON encoding failed)\n", jsonSize)
			return
		}
		toonSize := len(toonStr)
		savings := 0
		if jsonSize > 0 {
			savings = 100 - (toonSize * 100 / jsonSize)
		}
		fmt.Fprintf(w.errOut, "[dcg-toon] JSON: %d bytes, TOON: %d bytes (%d%% savings)\n", jsonSize, toonSize, savings)
	} else {
		if !TOONAvailable() {
			fmt.Fprintf(w.errOut, "[dcg-toon] JSON: %d bytes (TOON unavailable for comparison)\n", jsonSize)
			return
		}
		toonStr, err := EncodeTOON(json.RawMessage(jsonBytes))
		if err != nil {
			fmt.Fprintf(w.errOut, "[dcg-toon] JSON: %d bytes (TOON unavailable for comparison)\n", jsonSize)
			return
		}
		toonSize := len(toonStr)
		savings := 0
		if jsonSize > 0 {
			savings = 100 - (toonSize * 100 / jsonSize)
		}
		fmt.Fprintf(w.errOut, "[dcg-toon] JSON: %d bytes, TOON would be: %d bytes (%d%% potential savings)\n", jsonSize, toonSize, savings)
	}
}

// WriteNDJSON outputs data as NDJSON when in JSON mode (one JSON object
// per line) — used by `dcg history query` to stream records.
func (w *Writer) WriteNDJSON(data any) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		return enc.Encode(data)
	case FormatText:
		_, err := fmt.Fprintf(w.errOut, "%v\n", data)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}

// Success outputs a success message.
func (w *Writer) Success(msg string) {
	if w.format == FormatJSON || w.format == FormatYAML || w.format == FormatTOON {
		_ = w.Write(map[string]any{"status": "success", "message": msg})
	} else {
		fmt.Fprintf(w.errOut, "✓ %s\n", msg)
	}
}

// ErrorPayload is the structured shape of a CLI-reported error (distinct
// from the hook output contract's deny envelope, which hookio owns).
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Error outputs an error message in the writer's configured format.
func (w *Writer) Error(err error) {
	payload := ErrorPayload{
		Error:   "error",
		Message: err.Error(),
		Details: map[string]any{"code": 1},
	}
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(payload)
	case FormatTOON:
		_ = w.Write(payload)
	case FormatYAML:
		_ = OutputYAML(payload)
	default:
		fmt.Fprintf(w.errOut, "✗ %s\n", err.Error())
	}
}

// OutputJSONError writes an ErrorPayload to stdout and returns code as an
// error the caller can surface via os.Exit — used by subcommands that
// exit before a Writer is constructed (config/parse/I-O errors, spec.md
// §6 exit codes 3-5).
func OutputJSONError(err error, code int) error {
	payload := ErrorPayload{
		Error:   "error",
		Message: err.Error(),
		Details: map[string]any{"code": code},
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(payload); encErr != nil {
		return encErr
	}
	return err
}

func normalizeForYAML(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var normalized any
	if err := dec.Decode(&normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}

// OutputYAML writes YAML to stdout, preserving JSON tags/field names by
// converting via JSON first.
func OutputYAML(v any) error {
	normalized, err := normalizeForYAML(v)
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(normalized)
	if err != nil {
		return err
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	_, err = os.Stdout.Write(b)
	return err
}

// OutputMode is a process-wide default used by subcommands that print
// ahead of constructing a Writer (early flag/config errors).
type OutputMode string

const (
	OutputModeText OutputMode = "text"
	OutputModeJSON OutputMode = "json"
)

var outputMode atomic.Value // stores OutputMode

// SetOutputMode records whether the process-wide default is JSON or text.
func SetOutputMode(json bool) {
	if json {
		outputMode.Store(OutputModeJSON)
	} else {
		outputMode.Store(OutputModeText)
	}
}

// GetOutputMode returns the process-wide default, falling back to text
// when SetOutputMode was never called (e.g. in unit tests).
func GetOutputMode() OutputMode {
	v, ok := outputMode.Load().(OutputMode)
	if !ok {
		return OutputModeText
	}
	return v
}

// IsJSON reports whether the process-wide default output mode is JSON.
func IsJSON() bool {
	return GetOutputMode() == OutputModeJSON
}

// OutputTable prints a simple space-aligned table to stderr for
// human-facing listings.
func OutputTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	printRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				fmt.Fprint(os.Stderr, "  ")
			}
			fmt.Fprintf(os.Stderr, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(os.Stderr)
	}
	printRow(headers)
	for _, row := range rows {
		printRow(row)
	}
}

// OutputList prints one item per line to stderr.
func OutputList(items []string) {
	for _, item := range items {
		fmt.Fprintln(os.Stderr, item)
	}
}
