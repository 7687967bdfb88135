package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/energy"
	"github.com/sweeney/energy-dashboard/internal/engine"
	"github.com/sweeney/energy-dashboard/internal/export"
)

// AppliancesResponse is the body of GET /api/appliances.
type AppliancesResponse struct {
	Appliances []energy.Appliance      `json:"appliances"`
	Summary    energy.ApplianceSummary `json:"summary"`
}

// ToggleResponse is the body of a successful toggle.
type ToggleResponse struct {
	ID        int                `json:"id"`
	Name      string             `json:"name"`
	Status    energy.Status      `json:"status"`
	Previous  energy.Status      `json:"previous"`
	Message   string             `json:"message"`
	Snapshot  energy.RealTime    `json:"snapshot"`
	Breakdown []energy.TypePower `json:"breakdown"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Records []energy.HistoricalRecord `json:"records"`
	Summary energy.HistorySummary     `json:"summary"`
}

// RealtimeResponse reports the simulation loop state.
type RealtimeResponse struct {
	Running bool `json:"running"`
}

// VisibilityRequest is the body of POST /api/visibility.
type VisibilityRequest struct {
	State string `json:"state"` // "visible" or "hidden"
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleAppliances(w http.ResponseWriter, r *http.Request) {
	list := s.engine.Appliances()
	filtered := energy.FilterByType(list, energy.ApplianceType(r.URL.Query().Get("type")))
	writeJSON(w, http.StatusOK, AppliancesResponse{
		Appliances: filtered,
		Summary:    energy.Summarize(list),
	})
}

func (s *Server) handleAppliance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	a, err := s.engine.Appliance(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	res, err := s.engine.ToggleAppliance(id)
	switch {
	case errors.Is(err, energy.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, engine.ErrDisposed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.log.Error("toggle failed", zap.Int("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "toggle failed")
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		ID:        res.Appliance.ID,
		Name:      res.Appliance.Name,
		Status:    res.Appliance.Status,
		Previous:  res.Previous,
		Message:   res.Message(),
		Snapshot:  res.Snapshot,
		Breakdown: res.Breakdown,
	})
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Breakdown())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HistoryResponse{
		Records: s.engine.History(),
		Summary: s.engine.HistorySummary(),
	})
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Reference())
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RealtimeResponse{Running: s.engine.RealtimeRunning()})
}

func (s *Server) handleRealtimeStart(w http.ResponseWriter, r *http.Request) {
	s.engine.StartRealtime()
	writeJSON(w, http.StatusOK, RealtimeResponse{Running: s.engine.RealtimeRunning()})
}

func (s *Server) handleRealtimeStop(w http.ResponseWriter, r *http.Request) {
	s.engine.StopRealtime()
	writeJSON(w, http.StatusOK, RealtimeResponse{Running: s.engine.RealtimeRunning()})
}

// handleVisibility maps page visibility changes onto the simulation loop:
// a hidden page stops it, a visible page restarts it.
func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch req.State {
	case "hidden":
		s.engine.StopRealtime()
	case "visible":
		s.engine.StartRealtime()
	default:
		writeError(w, http.StatusBadRequest, "state must be visible or hidden")
		return
	}
	s.log.Debug("page visibility changed", zap.String("state", req.State))
	writeJSON(w, http.StatusOK, RealtimeResponse{Running: s.engine.RealtimeRunning()})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", export.CSVContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.CSVFilename+`"`)
	w.Write(export.CSV(s.engine.History()))
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	data, err := export.JSON(s.engine.Dataset())
	if err != nil {
		s.log.Error("export json", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", export.JSONContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.JSONFilename+`"`)
	w.Write(data)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appliance id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}
