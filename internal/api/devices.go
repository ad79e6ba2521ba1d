package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumahome/luma-core/internal/command"
	"github.com/lumahome/luma-core/internal/registry"
)

// Readings query bounds (hours).
const (
	defaultReadingsHours = 24
	maxReadingsHours     = 24 * 30
)

// handleListDevices returns every registered device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, device)
}

// handleDeviceReadings returns the reading history for a sensor within
// the requested window: GET /api/devices/{id}/readings?hours=N.
func (s *Server) handleDeviceReadings(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	hours := defaultReadingsHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxReadingsHours {
			writeBadRequest(w, "hours must be between 1 and 720")
			return
		}
		hours = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	readings, err := s.devices.ReadingsSince(r.Context(), device.ID, since)
	if err != nil {
		s.logger.Error("fetching readings failed", "device_id", device.ID, "error", err)
		writeInternalError(w, "failed to fetch readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": device.ID,
		"hours":     hours,
		"readings":  readings,
		"count":     len(readings),
	})
}

// handleGetThreshold returns the alerting band for a device, creating
// the default disabled row on first access.
func (s *Server) handleGetThreshold(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	threshold, err := s.devices.GetThreshold(r.Context(), device.ID)
	if errors.Is(err, registry.ErrThresholdNotFound) {
		threshold, err = s.devices.CreateDefaultThreshold(r.Context(), device.ID)
	}
	if err != nil {
		s.logger.Error("fetching threshold failed", "device_id", device.ID, "error", err)
		writeInternalError(w, "failed to fetch threshold")
		return
	}

	writeJSON(w, http.StatusOK, threshold)
}

// thresholdRequest is the request body for PUT /api/devices/{id}/threshold.
type thresholdRequest struct {
	MinValue     *float64 `json:"min_value"`
	MaxValue     *float64 `json:"max_value"`
	AlertEnabled bool     `json:"alert_enabled"`
}

// handleUpdateThreshold replaces the alerting band for a device.
func (s *Server) handleUpdateThreshold(w http.ResponseWriter, r *http.Request) {
	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Ensure the row exists so the update cannot race first access.
	if _, err := s.devices.CreateDefaultThreshold(r.Context(), device.ID); err != nil {
		s.logger.Error("creating threshold failed", "device_id", device.ID, "error", err)
		writeInternalError(w, "failed to update threshold")
		return
	}

	threshold := &registry.SensorThreshold{
		DeviceID:     device.ID,
		MinValue:     req.MinValue,
		MaxValue:     req.MaxValue,
		AlertEnabled: req.AlertEnabled,
	}
	if err := s.devices.UpdateThreshold(r.Context(), threshold); err != nil {
		if errors.Is(err, registry.ErrInvalidThresholdRange) {
			writeValidationError(w, "min_value must not exceed max_value")
			return
		}
		s.logger.Error("updating threshold failed", "device_id", device.ID, "error", err)
		writeInternalError(w, "failed to update threshold")
		return
	}

	updated, err := s.devices.GetThreshold(r.Context(), device.ID)
	if err != nil {
		s.logger.Error("fetching threshold failed", "device_id", device.ID, "error", err)
		writeInternalError(w, "failed to fetch threshold")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// commandRequest is the request body for POST /api/devices/{id}/command.
// Exactly one of desired or position must be set.
type commandRequest struct {
	Desired  *bool `json:"desired"`
	Position *int  `json:"position"`
}

// handleCommand dispatches an actuator command.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "command dispatch unavailable")
		return
	}

	device, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if (req.Desired == nil) == (req.Position == nil) {
		writeBadRequest(w, "exactly one of desired or position is required")
		return
	}

	var err error
	if req.Desired != nil {
		err = s.commands.Issue(r.Context(), device.ID, *req.Desired)
	} else {
		err = s.commands.IssuePosition(r.Context(), device.ID, *req.Position)
	}
	if err != nil {
		switch {
		case errors.Is(err, command.ErrInvalidPosition), errors.Is(err, command.ErrNotPositionable):
			writeValidationError(w, err.Error())
		case errors.Is(err, registry.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		default:
			s.logger.Error("command dispatch failed", "device_id", device.ID, "error", err)
			writeInternalError(w, "failed to dispatch command")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id":  device.ID,
		"dispatched": true,
	})
}

// lookupDevice resolves the {id} path parameter, writing the error
// response itself when the device cannot be served.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*registry.Device, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "device id is required")
		return nil, false
	}

	device, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		s.logger.Error("device lookup failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to fetch device")
		return nil, false
	}

	return device, true
}
