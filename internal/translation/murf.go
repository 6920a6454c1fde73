// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const DefaultMurfBaseURL = "https://api.murf.ai"

type murfRequest struct {
	TargetLanguage string   `json:"target_language"`
	Texts          []string `json:"texts"`
}

type murfResponse struct {
	Translations []struct {
		TranslatedText string `json:"translated_text"`
	} `json:"translations"`
}

// MurfBackend calls the Murf text translation endpoint.
type MurfBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewMurfBackend(baseURL, apiKey string, httpClient *http.Client) *MurfBackend {
	if baseURL == "" {
		baseURL = DefaultMurfBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &MurfBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     slog.With("component", "murf_translate"),
	}
}

func (m *MurfBackend) Translate(ctx context.Context, text, _, to string) (string, error) {
	body, err := json.Marshal(murfRequest{TargetLanguage: to, Texts: []string{text}})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := m.baseURL + "/v1/text/translate"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: executing request: %v", ErrTranslate, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrTranslate, err)
	}

	if resp.StatusCode != http.StatusOK {
		m.logger.Warn("translate request failed", "status", resp.StatusCode, "body", string(respBody))
		return "", fmt.Errorf("%w: status %d", ErrTranslate, resp.StatusCode)
	}

	var parsed murfResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: parsing response: %v", ErrTranslate, err)
	}
	if len(parsed.Translations) == 0 {
		return "", ErrEmptyTranslation
	}
	return parsed.Translations[0].TranslatedText, nil
}
