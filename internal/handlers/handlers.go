// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nextcloud/go_voice_bridge/internal/constants"
	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/history"
	"github.com/nextcloud/go_voice_bridge/internal/languages"
	"github.com/nextcloud/go_voice_bridge/internal/service"
)

type HistoryReader interface {
	Recent(n int) ([]history.Entry, error)
}

type Handler struct {
	Service *service.Orchestrator
	// History is nil when the history store is disabled.
	History HistoryReader
}

func NewHandler(svc *service.Orchestrator, hist HistoryReader) *Handler {
	return &Handler{
		Service: svc,
		History: hist,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrMissingDevice):
		return http.StatusConflict
	case errors.Is(err, languages.ErrUnsupportedLanguage),
		errors.Is(err, device.ErrUnknownRole),
		errors.Is(err, device.ErrWrongCapacity):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrNoSuchDevice):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *Handler) GetLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LanguagesResponse{Languages: languages.Supported})
}

func (h *Handler) GetDevices(w http.ResponseWriter, r *http.Request) {
	devs, err := h.Service.Devices()
	if err != nil {
		slog.Error("listing devices failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to list audio devices."})
		return
	}
	writeJSON(w, http.StatusOK, DevicesResponse{Devices: devs, Bound: h.Service.Snapshot().Devices})
}

func (h *Handler) BindDevice(w http.ResponseWriter, r *http.Request) {
	role, err := device.ParseRole(r.PathValue("role"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	var req BindDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Device == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	b, err := h.Service.Bind(role, req.Device)
	if err != nil {
		slog.Error("bind device failed", "error", err, "role", role.String(), "device", req.Device)
		writeJSON(w, errorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, BindDeviceResponse{
		Role:       role.String(),
		Device:     b.DeviceName(),
		SampleRate: b.NativeSampleRate(),
	})
}

func (h *Handler) TestDevice(w http.ResponseWriter, r *http.Request) {
	role, err := device.ParseRole(r.PathValue("role"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.Service.TestDevice(r.Context(), role)
	if err != nil {
		slog.Error("device test failed", "error", err, "role", role.String())
		writeJSON(w, errorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) StartTranslation(w http.ResponseWriter, r *http.Request) {
	var req service.Options
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.Service.Start(req); err != nil {
		slog.Error("start translation failed", "error", err)
		writeJSON(w, errorStatus(err), ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, h.Service.Snapshot())
}

func (h *Handler) StopTranslation(w http.ResponseWriter, r *http.Request) {
	h.Service.Stop()
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Translation stopped."})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Service.Snapshot())
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "History is disabled."})
		return
	}

	limit := constants.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, constants.MaxHistoryLimit)
	}

	entries, err := h.History.Recent(limit)
	if err != nil {
		slog.Error("reading history failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to read history."})
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /heartbeat", h.Heartbeat)

	mux.HandleFunc("GET /api/v1/languages", h.GetLanguages)
	mux.HandleFunc("GET /api/v1/devices", h.GetDevices)
	mux.HandleFunc("PUT /api/v1/devices/{role}", h.BindDevice)
	mux.HandleFunc("POST /api/v1/devices/{role}/test", h.TestDevice)
	mux.HandleFunc("POST /api/v1/translation/start", h.StartTranslation)
	mux.HandleFunc("POST /api/v1/translation/stop", h.StopTranslation)
	mux.HandleFunc("GET /api/v1/status", h.GetStatus)
	mux.HandleFunc("GET /api/v1/history", h.GetHistory)
}
