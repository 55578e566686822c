package file

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/reactor/internal/dto"
)

// Load reads a YAML, TOML or JSON parameter file, chosen by extension.
// It also returns the keys the file set but nothing reads.
func Load(path string) (dto.ParamsFile, []string, error) {
	syntax, err := dto.SyntaxFromExt(filepath.Ext(path))
	if err != nil {
		return dto.ParamsFile{}, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return dto.ParamsFile{}, nil, fmt.Errorf("failed to read parameter file: %w", err)
	}

	raw, err := dto.Unmarshal(data, syntax)
	if err != nil {
		return dto.ParamsFile{}, nil, err
	}
	return dto.Decode(raw)
}

// Save writes f to path atomically, in the syntax chosen by extension.
// It writes to a temporary file first, syncs it, and then renames it to the destination.
func Save(path string, f dto.ParamsFile) error {
	syntax, err := dto.SyntaxFromExt(filepath.Ext(path))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := dto.Encode(&buf, f, syntax); err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
