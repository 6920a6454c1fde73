// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package vosk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

const (
	hfRepo     = "Nextcloud-AI/vosk-models"
	hfRevision = "06f2f156dcd79092400891afb6cf8101e54f6ba2"
	hfAPIBase  = "https://huggingface.co/api/models"
	hfResolve  = "https://huggingface.co"
)

type hfEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ProgressFunc is called before each file download.
type ProgressFunc func(done, total int)

// Downloader fetches vosk models from a pinned Hugging Face revision.
type Downloader struct {
	Client      *http.Client
	APIBase     string
	ResolveBase string
	Repo        string
	Revision    string
	Progress    ProgressFunc
	logger      *slog.Logger
}

func NewDownloader() *Downloader {
	return &Downloader{
		Client:      http.DefaultClient,
		APIBase:     hfAPIBase,
		ResolveBase: hfResolve,
		Repo:        hfRepo,
		Revision:    hfRevision,
		logger:      slog.With("component", "model_downloader"),
	}
}

// DownloadModels fetches the model directories under storageDir, or the
// whole repository when none are given. Files already present with the
// expected size are skipped.
func (d *Downloader) DownloadModels(ctx context.Context, storageDir string, modelDirs ...string) error {
	d.logger.Info("starting model download", "repo", d.Repo, "dest", storageDir, "models", modelDirs)

	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}

	prefixes := modelDirs
	if len(prefixes) == 0 {
		prefixes = []string{""}
	}
	var files []hfEntry
	for _, p := range prefixes {
		f, err := d.listAllFiles(ctx, p)
		if err != nil {
			return fmt.Errorf("list repo files: %w", err)
		}
		files = append(files, f...)
	}

	d.logger.Info("found files to download", "total", len(files))

	var toDownload []hfEntry
	for _, f := range files {
		localPath := filepath.Join(storageDir, f.Path)
		if info, err := os.Stat(localPath); err == nil && info.Size() == f.Size {
			continue // already downloaded
		}
		toDownload = append(toDownload, f)
	}

	if len(toDownload) == 0 {
		d.logger.Info("all models already downloaded")
		return nil
	}

	d.logger.Info("downloading models", "files", len(toDownload), "skipped", len(files)-len(toDownload))

	for i, f := range toDownload {
		if d.Progress != nil {
			d.Progress(i, len(toDownload))
		}

		if err := d.downloadFile(ctx, storageDir, f.Path); err != nil {
			return fmt.Errorf("download %s: %w", f.Path, err)
		}

		if (i+1)%50 == 0 {
			d.logger.Info("download progress", "completed", i+1, "total", len(toDownload))
		}
	}
	if d.Progress != nil {
		d.Progress(len(toDownload), len(toDownload))
	}

	d.logger.Info("model download complete", "files", len(toDownload))
	return nil
}

func (d *Downloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request %s: %w", url, err)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func (d *Downloader) listAllFiles(ctx context.Context, prefix string) ([]hfEntry, error) {
	url := fmt.Sprintf("%s/%s/tree/%s", d.APIBase, d.Repo, d.Revision)
	if prefix != "" {
		url += "/" + prefix
	}

	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []hfEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var files []hfEntry
	for _, e := range entries {
		switch e.Type {
		case "file":
			files = append(files, e)
		case "directory":
			subFiles, err := d.listAllFiles(ctx, e.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, subFiles...)
		}
	}

	return files, nil
}

func (d *Downloader) downloadFile(ctx context.Context, storageDir, filePath string) error {
	url := fmt.Sprintf("%s/%s/resolve/%s/%s", d.ResolveBase, d.Repo, d.Revision, filePath)
	localPath := filepath.Join(storageDir, filePath)

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmpPath := localPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	_ = f.Close()

	if err := os.Rename(tmpPath, localPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
