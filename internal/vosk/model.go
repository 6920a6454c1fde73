// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package vosk

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/nextcloud/go_voice_bridge/internal/languages"
)

var (
	ErrNoModel       = errors.New("no vosk model for language")
	ErrModelNotFound = errors.New("vosk model not downloaded")
)

var setLogLevelOnce sync.Once

// ModelManager loads models from dir on first use and frees them when the
// last user releases them. Both recognition directions can share a model.
type ModelManager struct {
	mu     sync.Mutex
	dir    string
	models map[string]*modelEntry
	logger *slog.Logger
}

type modelEntry struct {
	model    *vosk.VoskModel
	refCount int
}

func NewModelManager(dir string) *ModelManager {
	setLogLevelOnce.Do(func() {
		vosk.SetLogLevel(-1) // suppress vosk's own logs
	})
	return &ModelManager{
		dir:    dir,
		models: make(map[string]*modelEntry),
		logger: slog.With("component", "model_manager"),
	}
}

func (mm *ModelManager) Dir() string {
	return mm.dir
}

// ModelPath is where the model for the STT code lang lives.
func (mm *ModelManager) ModelPath(lang string) (string, error) {
	modelDir, ok := languages.ModelsList[lang]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoModel, lang)
	}
	return filepath.Join(mm.dir, modelDir), nil
}

func (mm *ModelManager) GetModel(lang string) (*vosk.VoskModel, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if entry, ok := mm.models[lang]; ok {
		entry.refCount++
		mm.logger.Info("reusing cached model", "lang", lang, "ref_count", entry.refCount)
		return entry.model, nil
	}

	modelPath, err := mm.ModelPath(lang)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}

	mm.logger.Info("loading vosk model", "lang", lang, "path", modelPath)
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vosk model for %s: %w", lang, err)
	}

	mm.models[lang] = &modelEntry{model: model, refCount: 1}
	mm.logger.Info("vosk model loaded", "lang", lang)
	return model, nil
}

func (mm *ModelManager) ReleaseModel(lang string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	entry, ok := mm.models[lang]
	if !ok {
		return
	}

	entry.refCount--
	mm.logger.Info("released model", "lang", lang, "ref_count", entry.refCount)

	if entry.refCount <= 0 {
		entry.model.Free()
		delete(mm.models, lang)
		mm.logger.Info("freed vosk model", "lang", lang)
	}
}

func (mm *ModelManager) IsModelAvailable(lang string) bool {
	modelPath, err := mm.ModelPath(lang)
	if err != nil {
		return false
	}
	info, err := os.Stat(modelPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ListAvailableModels returns the STT codes whose model is on disk, sorted.
func (mm *ModelManager) ListAvailableModels() []string {
	var available []string
	for lang := range languages.ModelsList {
		if mm.IsModelAvailable(lang) {
			available = append(available, lang)
		}
	}
	sort.Strings(available)
	return available
}
