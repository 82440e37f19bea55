package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"orbit/pkg/monitor"
)

// DebugRoot is where prompt/response transcripts are written.
var DebugRoot = filepath.Join("debug", "backend")

// Debugger writes a transcript of one backend call to disk. A disabled or
// failed Debugger silently does nothing.
type Debugger struct {
	file *os.File
}

// NewDebugger opens debug/backend/<provider>/[<query id>/]<timestamp>.log.
func NewDebugger(ctx context.Context, provider string) *Debugger {
	dir := filepath.Join(DebugRoot, provider)
	if id := monitor.QueryID(ctx); id != "" {
		dir = filepath.Join(dir, id)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("Failed to create debug directory", "dir", dir, "error", err)
		return &Debugger{}
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s.log", time.Now().Format("20060102_150405.000000")))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		slog.Error("Failed to open debug file", "file", filename, "error", err)
		return &Debugger{}
	}

	slog.DebugContext(ctx, "Debug transcript ON", "provider", provider, "file", filename)
	return &Debugger{file: f}
}

// Section appends a titled block to the transcript.
func (d *Debugger) Section(title, body string) {
	if d.file == nil {
		return
	}
	if _, err := fmt.Fprintf(d.file, "===== %s =====\n%s\n", title, body); err != nil {
		slog.Warn("Failed to write to debug file", "error", err)
	}
}

// Path returns the transcript file, or "" when disabled.
func (d *Debugger) Path() string {
	if d.file == nil {
		return ""
	}
	return d.file.Name()
}

// Close closes the debug file handle.
func (d *Debugger) Close() {
	if d.file != nil {
		d.file.Close()
		d.file = nil
	}
}

// DebugGenerator records every call of the wrapped Generator.
type DebugGenerator struct {
	Inner Generator
}

func NewDebugGenerator(inner Generator) *DebugGenerator {
	return &DebugGenerator{Inner: inner}
}

func (d *DebugGenerator) Generate(ctx context.Context, prompt, instruction string) (string, error) {
	dbg := NewDebugger(ctx, d.Inner.Provider())
	defer dbg.Close()

	dbg.Section("INSTRUCTION", instruction)
	dbg.Section("PROMPT", prompt)
	start := time.Now()
	text, err := d.Inner.Generate(ctx, prompt, instruction)
	if err != nil {
		dbg.Section("ERROR", err.Error())
	} else {
		dbg.Section("RESPONSE", text)
	}
	dbg.Section("ELAPSED", time.Since(start).String())
	return text, err
}

func (d *DebugGenerator) IsTransientError(err error) bool { return d.Inner.IsTransientError(err) }

func (d *DebugGenerator) Provider() string { return d.Inner.Provider() }
