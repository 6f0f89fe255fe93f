package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonwraymond/healops/heal"
	"github.com/jonwraymond/healops/health"
	"github.com/jonwraymond/healops/observe"
)

// Default file locations.
const (
	DefaultDir         = "logs"
	DefaultHealthFile  = "health-report.json"
	DefaultStartupFile = "startup-report.json"
)

// Config configures a Writer.
type Config struct {
	// Dir is the directory reports are written to. It is created on demand.
	// Default: "logs"
	Dir string

	// HealthFile is the health report file name inside Dir.
	// Default: "health-report.json"
	HealthFile string

	// StartupFile is the startup report file name inside Dir.
	// Default: "startup-report.json"
	StartupFile string

	// Now returns the current time. Default: time.Now
	Now func() time.Time

	// Instruments receives write logs.
	Instruments observe.Instruments
}

// Writer persists reports atomically.
type Writer struct {
	config Config
	inst   observe.Instruments
}

var (
	_ heal.Reporter        = (*Writer)(nil)
	_ heal.StartupReporter = (*Writer)(nil)
)

// NewWriter creates a report writer.
func NewWriter(config Config) *Writer {
	if config.Dir == "" {
		config.Dir = DefaultDir
	}
	if config.HealthFile == "" {
		config.HealthFile = DefaultHealthFile
	}
	if config.StartupFile == "" {
		config.StartupFile = DefaultStartupFile
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Writer{config: config, inst: config.Instruments.OrNop()}
}

// HealthPath returns the health report path.
func (w *Writer) HealthPath() string {
	return filepath.Join(w.config.Dir, w.config.HealthFile)
}

// StartupPath returns the startup report path.
func (w *Writer) StartupPath() string {
	return filepath.Join(w.config.Dir, w.config.StartupFile)
}

// ReportHealth writes the health report for agg.
func (w *Writer) ReportHealth(ctx context.Context, agg health.Aggregate) error {
	path := w.HealthPath()
	if err := WriteJSON(path, NewHealthReport(agg, w.config.Now())); err != nil {
		return err
	}
	w.inst.Logger.Debug(ctx, "health report saved", observe.F("path", path))
	return nil
}

// ReportStartup writes the startup report for res.
func (w *Writer) ReportStartup(ctx context.Context, res heal.StartupResult) error {
	path := w.StartupPath()
	if err := WriteJSON(path, NewStartupReport(res)); err != nil {
		return err
	}
	w.inst.Logger.Info(ctx, "startup report saved", observe.F("path", path))
	return nil
}

// WriteJSON writes v as indented JSON to path. The file is replaced
// atomically and parent directories are created as needed.
func WriteJSON(path string, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("report: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("report: chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("report: rename %s: %w", path, err)
	}
	return nil
}
