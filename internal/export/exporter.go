// Package export serializes extraction results for downstream consumers.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// Format selects the serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Options configures an export.
type Options struct {
	Format   Format
	Compress bool // zstd-compress the output
}

// Write serializes v to w.
func Write(w io.Writer, v interface{}, opts Options) error {
	if opts.Compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create compressor: %w", err)
		}
		if err := encode(zw, v, opts.Format); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return encode(w, v, opts.Format)
}

// WriteFile serializes v to path. The extension is expected to already
// reflect the format and compression choice.
func WriteFile(path string, v interface{}, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := Write(f, v, opts); err != nil {
		return err
	}
	return f.Sync()
}

// Extension returns the conventional filename extension for the options.
func Extension(opts Options) string {
	ext := ".json"
	if opts.Format == FormatYAML {
		ext = ".yaml"
	}
	if opts.Compress {
		ext += ".zst"
	}
	return ext
}

func encode(w io.Writer, v interface{}, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
