// File path: internal/api/report_handler.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jbpark-dev/storesense/internal/common"
)

type reportRequest struct {
	StoreCode string `json:"store_code"`
	Mode      string `json:"mode"`
	TopK      int    `json:"top_k"`
	Full      bool   `json:"full"`
}

// handleReport builds a report for one store. Build failures still
// return 200 with the error folded into the payload; only transport
// problems (bad JSON, missing store_code) get a 4xx.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	req.StoreCode = strings.TrimSpace(req.StoreCode)
	if req.StoreCode == "" {
		writeError(w, http.StatusBadRequest, errors.New("store_code is required"))
		return
	}
	if strings.TrimSpace(req.Mode) == "" {
		req.Mode = "v1"
	}

	common.Logger().Info("api: report requested",
		"store_code", req.StoreCode, "mode", req.Mode, "full", req.Full)

	if req.Full {
		writeJSON(w, http.StatusOK, s.builder.BuildFull(r.Context(), req.StoreCode, req.Mode, req.TopK))
		return
	}
	writeJSON(w, http.StatusOK, s.builder.Build(r.Context(), req.StoreCode, req.Mode, req.TopK))
}

// handleLogs returns the recent captured log entries.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs": common.LogEntries(),
	})
}
