package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v2"
)

// loadData decodes a YAML or JSON data file into the shape SetVarArray
// binds. An empty path yields no data.
func loadData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	data := make(map[string]any)
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file %s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes rendered text to path, or to stdout when path is empty
// or "-". Files are replaced atomically and gzip-compressed when the name
// ends in ".gz".
func writeOutput(path, text string, stdout io.Writer) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, text)
		return err
	}

	var body bytes.Buffer
	if strings.HasSuffix(path, ".gz") {
		zw, err := gzip.NewWriterLevel(&body, gzip.BestCompression)
		if err != nil {
			return err
		}
		if _, err = io.WriteString(zw, text); err != nil {
			return err
		}
		if err = zw.Close(); err != nil {
			return err
		}
	} else {
		body.WriteString(text)
	}

	if err := atomic.WriteFile(path, &body); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
