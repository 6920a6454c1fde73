// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/history"
	"github.com/nextcloud/go_voice_bridge/internal/languages"
)

type BindDeviceRequest struct {
	Device string `json:"device"`
}

type BindDeviceResponse struct {
	Role       string `json:"role"`
	Device     string `json:"device"`
	SampleRate int    `json:"sampleRate"`
}

type DevicesResponse struct {
	Devices []device.Info     `json:"devices"`
	Bound   map[string]string `json:"bound"`
}

type LanguagesResponse struct {
	Languages []languages.Language `json:"languages"`
}

type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type StatusResponse struct {
	Status string `json:"status"`
}
