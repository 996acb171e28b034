// Package validation checks sampling inputs: state-event pairing of
// observations and the paths and options supplied by callers.
package validation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ethoflow/ethoflow/internal/model"
	eferrors "github.com/ethoflow/ethoflow/pkg/errors"
	"github.com/ethoflow/ethoflow/pkg/export"
)

// MaxProjectSize is the maximum accepted project file size (1GB).
const MaxProjectSize = 1024 * 1024 * 1024

// MaxPathLength is the maximum allowed path length.
const MaxPathLength = 4096

// MaxInterval is the largest accepted sampling interval (one day).
const MaxInterval = 86400 * model.Second

// ValidateFilePath cleans a path and makes it absolute.
func ValidateFilePath(path string) (string, error) {
	if path == "" {
		return "", eferrors.New(eferrors.CodeInvalidPath, "empty file path")
	}

	if len(path) > MaxPathLength {
		return "", eferrors.New(eferrors.CodeInvalidPath, "path too long").
			WithContext("maxLength", MaxPathLength)
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return "", eferrors.New(eferrors.CodeInvalidPath, "path traversal not allowed")
	}

	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", eferrors.Wrap(err, eferrors.CodeInvalidPath, "invalid path")
	}

	return abs, nil
}

// ValidateProjectFile checks that a project file exists and is readable.
func ValidateProjectFile(path string) error {
	cleanPath, err := ValidateFilePath(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(cleanPath)
	if os.IsNotExist(err) {
		return eferrors.FileNotFound(path)
	}
	if err != nil {
		return eferrors.Wrap(err, eferrors.CodeFileNotFound, "cannot access file")
	}

	if info.IsDir() {
		return eferrors.New(eferrors.CodeInvalidPath, "path is a directory, expected file").
			WithContext("path", path)
	}

	if info.Size() > MaxProjectSize {
		return eferrors.New(eferrors.CodeInvalidPath, "project file exceeds maximum size").
			WithContext("size", info.Size()).
			WithContext("maxSize", MaxProjectSize)
	}

	file, err := os.Open(cleanPath)
	if err != nil {
		if os.IsPermission(err) {
			return eferrors.Wrap(err, eferrors.CodeFilePermission, "permission denied")
		}
		return eferrors.Wrap(err, eferrors.CodeFileNotFound, "cannot open file")
	}
	file.Close()

	return nil
}

// ValidateOutputDir checks that dir exists and is a directory.
// Object-store URLs (s3://) are accepted as-is.
func ValidateOutputDir(dir string) error {
	if strings.HasPrefix(dir, "s3://") {
		return nil
	}

	cleanPath, err := ValidateFilePath(dir)
	if err != nil {
		return err
	}

	info, err := os.Stat(cleanPath)
	if os.IsNotExist(err) {
		return eferrors.New(eferrors.CodeFileNotFound, "output directory does not exist").
			WithContext("directory", dir)
	}
	if err != nil {
		return eferrors.Wrap(err, eferrors.CodeFileNotFound, "cannot access output directory")
	}
	if !info.IsDir() {
		return eferrors.New(eferrors.CodeInvalidPath, "output path is not a directory").
			WithContext("directory", dir)
	}

	return nil
}

// ValidateFormat checks an export format name.
func ValidateFormat(format string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if !f.Supported() {
		return eferrors.UnsupportedFormat(format)
	}
	return nil
}

// ValidateCompression validates a parquet compression name.
func ValidateCompression(compression string) error {
	switch strings.ToLower(compression) {
	case "none", "snappy", "gzip", "zstd", "lz4":
		return nil
	}
	return eferrors.New(eferrors.CodeInvalidParameters, "unsupported compression").
		WithContext("compression", compression).
		WithContext("supported", "none, snappy, gzip, zstd, lz4")
}

// ValidateInterval checks a sampling interval against (0, 86400] seconds.
// Values are already rounded to millisecond precision.
func ValidateInterval(interval model.Time) error {
	if interval <= 0 {
		return eferrors.InvalidParameters("time interval must be positive").
			WithContext("interval", interval.String())
	}
	if interval > MaxInterval {
		return eferrors.InvalidParameters("time interval exceeds one day").
			WithContext("interval", interval.String())
	}
	return nil
}

// ValidationResult holds the result of checking a run configuration.
type ValidationResult struct {
	Valid  bool
	Errors []error
}

// Err combines the collected errors.
func (r *ValidationResult) Err() error {
	m := eferrors.MultiError{Errors: r.Errors}
	return m.Combined()
}

func (r *ValidationResult) add(err error) {
	if err != nil {
		r.Valid = false
		r.Errors = append(r.Errors, err)
	}
}

// ValidateRunConfig validates everything a sampling command needs before
// loading the project.
func ValidateRunConfig(projectPath, outputDir, format, compression string, interval model.Time) *ValidationResult {
	result := &ValidationResult{Valid: true}

	result.add(ValidateProjectFile(projectPath))
	if outputDir != "" {
		result.add(ValidateOutputDir(outputDir))
	}
	result.add(ValidateFormat(format))
	if compression != "" {
		result.add(ValidateCompression(compression))
	}
	result.add(ValidateInterval(interval))

	return result
}
