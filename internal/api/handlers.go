package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/dyson360-bridge/internal/accessory"
	"github.com/nerrad567/dyson360-bridge/internal/history"
	"github.com/nerrad567/dyson360-bridge/internal/vacuum"
)

// healthCheckTimeout bounds the whole /health probe.
const healthCheckTimeout = 2 * time.Second

// characteristicResponse is a descriptor together with its current value.
type characteristicResponse struct {
	accessory.Descriptor
	Value any `json:"value"`
}

// setCharacteristicRequest is the PUT /characteristics/{name} body.
type setCharacteristicRequest struct {
	Value any `json:"value"`
}

// setCharacteristicResponse reports the value after the command resolved.
type setCharacteristicResponse struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

// handleHealth reports the server and each registered component.
// Any failing component turns the response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			components[c.Name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[c.Name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// handleGetAccessory returns identity metadata and the service layout.
func (s *Server) handleGetAccessory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"information": s.accessory.Information(),
		"services":    s.accessory.Services(),
	})
}

// handleIdentify asks the accessory to identify itself.
func (s *Server) handleIdentify(w http.ResponseWriter, _ *http.Request) {
	s.accessory.Identify()
	w.WriteHeader(http.StatusNoContent)
}

// handleListCharacteristics returns every characteristic with its value.
func (s *Server) handleListCharacteristics(w http.ResponseWriter, _ *http.Request) {
	values := s.accessory.Values()
	byName := make(map[string]any, len(values))
	for _, v := range values {
		byName[v.Name] = v.Value
	}

	descriptors := accessory.Characteristics()
	out := make([]characteristicResponse, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, characteristicResponse{Descriptor: d, Value: byName[d.Name]})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"characteristics": out,
		"count":           len(out),
	})
}

// handleGetCharacteristic returns one characteristic.
func (s *Server) handleGetCharacteristic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	d, err := accessory.Lookup(name)
	if err != nil {
		writeNotFound(w, "unknown characteristic: "+name)
		return
	}

	value, err := s.accessory.Get(name)
	if err != nil {
		writeInternalError(w, "reading characteristic")
		return
	}

	writeJSON(w, http.StatusOK, characteristicResponse{Descriptor: d, Value: value})
}

// handleSetCharacteristic writes a switch characteristic and waits for the
// robot to confirm. Timeouts answer 504 with the last known value.
func (s *Server) handleSetCharacteristic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req setCharacteristicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	value, err := s.accessory.Set(r.Context(), name, req.Value)
	if _, lookupErr := accessory.Lookup(name); s.metrics != nil && lookupErr == nil {
		s.metrics.ObserveWrite(name, err)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, setCharacteristicResponse{Name: name, Value: value})

	case errors.Is(err, accessory.ErrUnknownCharacteristic):
		writeNotFound(w, "unknown characteristic: "+name)

	case errors.Is(err, accessory.ErrReadOnly):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "characteristic is read-only: "+name)

	case errors.Is(err, accessory.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "value must be a boolean")

	case errors.Is(err, vacuum.ErrDeviceUnresponsive), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("characteristic write not confirmed", "name", name, "error", err)
		writeJSON(w, http.StatusGatewayTimeout, setCharacteristicResponse{
			Name: name, Value: value, Error: ErrCodeDeviceTimeout,
		})

	case errors.Is(err, vacuum.ErrCommandFailed):
		s.logger.Error("characteristic write failed", "name", name, "error", err)
		writeJSON(w, http.StatusBadGateway, setCharacteristicResponse{
			Name: name, Value: value, Error: ErrCodeCommandFailed,
		})

	default:
		s.logger.Error("characteristic write error", "name", name, "error", err)
		writeInternalError(w, "writing characteristic")
	}
}

// handleGetState returns the raw robot snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Snapshot())
}

// handleGetHistory returns recent state history, newest first.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "state history is disabled")
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = history.ClampLimit(n)
	}

	entries, err := s.history.GetHistory(r.Context(), s.deviceID, limit)
	if err != nil {
		s.logger.Error("reading state history", "error", err)
		writeInternalError(w, "reading state history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": s.deviceID,
		"entries":   entries,
		"count":     len(entries),
	})
}
