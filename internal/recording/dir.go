// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DirSink writes recordings below root/<direction folder>/.
type DirSink struct {
	root   string
	format Format
	logger *slog.Logger
}

func NewDirSink(root string, format Format) *DirSink {
	return &DirSink{
		root:   root,
		format: format,
		logger: slog.With("component", "recording_dir"),
	}
}

func (d *DirSink) Save(_ context.Context, rec Record) (string, error) {
	data, ext, _, err := Encode(rec, d.format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(d.root, DirName(rec.Direction), FileName(rec.Time, rec.Language, rec.Text, ext))
	if err := SaveFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("saving recording: %w", err)
	}
	d.logger.Info("recording saved", "path", path, "bytes", len(data))
	return path, nil
}

// SaveFileAtomic writes data to a temp file, syncs it and renames it into place.
func SaveFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
