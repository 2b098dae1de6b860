// Package export persists an acquisition table as a tab-delimited text file.
// Export never overwrites: the destination is created exclusively, and any
// rejection happens before a single byte is written.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/oxitrack/oxitrack/timeseries"
)

// Reason classifies why an export was rejected.
type Reason string

const (
	BadExtension      Reason = "bad_extension"
	AlreadyExists     Reason = "already_exists"
	FolderUncreatable Reason = "folder_uncreatable"
)

// Error is a typed export rejection. No I/O has happened when one is
// returned, except for FolderUncreatable where the folder creation itself
// failed.
type Error struct {
	Reason Reason
	Path   string
	Msg    string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return fmt.Sprintf("export rejected (%s): %s", e.Reason, e.Path)
	}
	return fmt.Sprintf("export rejected (%s): %s: %s", e.Reason, e.Path, e.Msg)
}

// Is allows errors.Is to compare export errors by Reason
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

// Sentinel rejections for errors.Is checks
var (
	ErrBadExtension      = &Error{Reason: BadExtension}
	ErrAlreadyExists     = &Error{Reason: AlreadyExists}
	ErrFolderUncreatable = &Error{Reason: FolderUncreatable}
)

// recognized text-table extensions
var allowedExtensions = map[string]struct{}{
	".csv": {},
	".txt": {},
}

// Options configures the export destination. When Path is set it is used
// as-is; otherwise a practically unique name is generated under Folder from
// the current date-time at second resolution, with an optional Prefix.
type Options struct {
	Path   string
	Folder string `default:"Records"`
	Prefix string
}

// DefaultOptions returns options with struct-tag defaults applied.
func DefaultOptions() *Options {
	opts := &Options{}
	defaults.SetDefaults(opts)
	return opts
}

// timestampFormat is second-resolution, which makes generated names
// practically unique per invocation.
const timestampFormat = "20060102_150405"

// resolvePath computes the destination path and normalizes its separators.
func resolvePath(opts *Options) string {
	if opts.Path != "" {
		return filepath.Clean(filepath.FromSlash(opts.Path))
	}
	name := time.Now().Format(timestampFormat) + ".csv"
	if opts.Prefix != "" {
		name = opts.Prefix + "_" + name
	}
	return filepath.Clean(filepath.Join(filepath.FromSlash(opts.Folder), name))
}

// Write persists the table to the resolved destination and returns the path
// actually written. The file holds one header row plus one row per timestamp,
// tab-separated, channel columns in table order.
func Write(tbl *timeseries.Table, opts *Options, logger *logrus.Logger) (string, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	} else {
		defaults.SetDefaults(opts)
	}

	path := resolvePath(opts)

	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", &Error{Reason: BadExtension, Path: path,
			Msg: fmt.Sprintf("extension %q is not a recognized text-table extension (.csv, .txt)", ext)}
	}

	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", &Error{Reason: FolderUncreatable, Path: path, Msg: err.Error()}
			}
			logger.WithField("folder", dir).Info("Created export folder")
		}
	}

	// O_EXCL makes creation exactly-once: a concurrent or repeated export of
	// the same path fails here without touching the existing file.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", &Error{Reason: AlreadyExists, Path: path, Msg: "destination already exists, export never overwrites"}
		}
		return "", &Error{Reason: FolderUncreatable, Path: path, Msg: err.Error()}
	}

	if err := writeTable(f, tbl); err != nil {
		f.Close()
		os.Remove(path) // no partial file on failure
		return "", fmt.Errorf("failed to write export file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close export file %q: %w", path, err)
	}

	logger.WithFields(logrus.Fields{
		"path": path,
		"rows": tbl.Rows(),
	}).Info("Exported acquisition table")
	return path, nil
}

func writeTable(f *os.File, tbl *timeseries.Table) error {
	w := bufio.NewWriter(f)

	header := []string{tbl.IndexLabel}
	columns := make([][]float64, 0, tbl.Columns.Len())
	for pair := tbl.Columns.Oldest(); pair != nil; pair = pair.Next() {
		header = append(header, pair.Key)
		columns = append(columns, pair.Value)
	}
	if _, err := w.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return err
	}

	for i, ts := range tbl.Timestamps {
		row := make([]string, 0, len(columns)+1)
		row = append(row, strconv.FormatFloat(ts, 'f', -1, 64))
		for _, col := range columns {
			row = append(row, strconv.FormatFloat(col[i], 'f', -1, 64))
		}
		if _, err := w.WriteString(strings.Join(row, "\t") + "\n"); err != nil {
			return err
		}
	}

	return w.Flush()
}
