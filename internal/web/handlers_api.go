package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dataprep/internal/core"
	"github.com/JonMunkholm/dataprep/internal/engine"
)

var (
	errBadRequest = errors.New("invalid request")
	errNotCSV     = errors.New("only csv files are allowed")
)

// maxJSONBody bounds operation and chart request bodies.
const maxJSONBody = 1 << 20

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// readUpload extracts the "file" part of a multipart upload. The caller
// must close the returned file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, multipart.File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, core.ErrFileTooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return "", nil, core.ErrNoFile
		}
		return "", nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, core.ErrNoFile
	}
	if header.Filename == "" {
		file.Close()
		return "", nil, core.ErrNoFile
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		file.Close()
		return "", nil, fmt.Errorf("%w: %s", errNotCSV, header.Filename)
	}
	return filepath.Base(header.Filename), file, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// handleAPIUpload parses a multipart CSV upload into a new session.
func (s *Server) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	name, file, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer file.Close()

	view, err := s.service.Upload(r.Context(), name, file)
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/datasets/"+view.ID)
	writeJSON(w, http.StatusCreated, view)
}

// handleAPIDataset returns the profile, flags and preview of a session.
func (s *Server) handleAPIDataset(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Dataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleAPIApply runs one operation. The body is a core.ApplyRequest.
func (s *Server) handleAPIApply(w http.ResponseWriter, r *http.Request) {
	var req core.ApplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	res, err := s.service.Apply(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAPIChart plans a chart. The body is an engine.ChartRequest.
func (s *Server) handleAPIChart(w http.ResponseWriter, r *http.Request) {
	var req engine.ChartRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	spec, err := s.service.Chart(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

// handleAPIExport streams the current dataset as CSV.
func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	name, data, err := s.service.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	sendCSV(w, r, name, data)
}

// sendCSV writes data as an uncached attachment.
func sendCSV(w http.ResponseWriter, r *http.Request, name string, data []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logError(r, err, http.StatusOK)
	}
}

// ValuesResponse lists a column's distinct values.
type ValuesResponse struct {
	Column    string   `json:"column"`
	Values    []string `json:"values"`
	Truncated bool     `json:"truncated"`
}

// handleAPIValues lists distinct values for the value-mapping form. More
// than engine.DefaultUniqueLimit values yields an empty, truncated list.
func (s *Server) handleAPIValues(w http.ResponseWriter, r *http.Request) {
	column := chi.URLParam(r, "column")
	values, err := s.service.UniqueValues(r.Context(), chi.URLParam(r, "id"), column)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValuesResponse{Column: column, Values: values, Truncated: len(values) == 0})
}

// handleAPIHistory lists the session's recorded events.
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleAPIDelete drops a session.
func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListOperations lists the supported operation kinds.
func (s *Server) handleListOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"operations": engine.OpKinds()})
}

// handleListCharts lists the supported chart kinds.
func (s *Server) handleListCharts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"charts": engine.ChartKinds()})
}

// handleStatus reports session and upload-slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}
