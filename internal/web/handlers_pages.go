package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/dataprep/internal/core"
	"github.com/JonMunkholm/dataprep/internal/engine"
	"github.com/JonMunkholm/dataprep/internal/logging"
)

const mapOriginPrefix = "map_origin_"

// redirect sends the browser to target after a form post.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// flashError logs err, queues its user message and redirects to target.
func (s *Server) flashError(w http.ResponseWriter, r *http.Request, err error, target string) {
	logError(r, err, statusFor(err))
	if errors.Is(err, core.ErrSessionNotFound) {
		s.setDatasetID(w, r, "")
		target = "/"
	}
	s.addFlash(w, r, flashDanger, core.FormatUserError(err))
	redirect(w, r, target)
}

// renderPage writes a full page. Flashes are popped first because they
// update the cookie.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	flashes := s.popFlashes(w, r)
	page := layout(title, flashes, s.datasetID(r) != "", body)
	templ.Handler(page, templ.WithStatus(status)).ServeHTTP(w, r)
}

// requireDataset returns the bound dataset id or redirects to the upload
// page.
func (s *Server) requireDataset(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := s.datasetID(r)
	if id == "" {
		s.addFlash(w, r, flashInfo, "Please upload a dataset first.")
		redirect(w, r, "/")
		return "", false
	}
	return id, true
}

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "Upload", indexPage(s.datasetID(r) != ""))
}

// handleUpload replaces the browser's dataset with the uploaded file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, file, err := s.readUpload(w, r)
	if err != nil {
		s.flashError(w, r, err, "/")
		return
	}
	defer file.Close()

	view, err := s.service.Upload(r.Context(), name, file)
	if err != nil {
		s.flashError(w, r, err, "/")
		return
	}

	// One working dataset per browser.
	if prev := s.datasetID(r); prev != "" && prev != view.ID {
		if err := s.service.Delete(r.Context(), prev); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
			logging.FromContext(r.Context()).Warn("previous dataset not released", "session_id", prev, "error", err)
		}
	}

	s.setDatasetID(w, r, view.ID)
	s.addFlash(w, r, flashSuccess, "File uploaded and analyzed successfully!")
	redirect(w, r, "/dashboard")
}

// dashboard renders the dashboard with optional extras.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request, id string, d dashboardData) {
	view, err := s.service.Dataset(r.Context(), id)
	if err != nil {
		s.flashError(w, r, err, "/")
		return
	}
	history, err := s.service.History(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Warn("history unavailable", "session_id", id, "error", err)
	}

	d.View = view
	d.History = history
	s.renderPage(w, r, http.StatusOK, view.FileName, dashboardPage(d))
}

// handleDashboard renders the profile, preview and cleaning forms.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireDataset(w, r)
	if !ok {
		return
	}
	s.dashboard(w, r, id, dashboardData{})
}

// handleTransform renders the dashboard with the value-mapping form for the
// requested column.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireDataset(w, r)
	if !ok {
		return
	}

	column := r.URL.Query().Get("column")
	if column == "" {
		redirect(w, r, "/dashboard")
		return
	}
	values, err := s.service.UniqueValues(r.Context(), id, column)
	if err != nil {
		s.flashError(w, r, err, "/dashboard")
		return
	}
	if len(values) == 0 {
		s.addFlash(w, r, flashWarning,
			fmt.Sprintf("Could not fetch unique values for %s (or too many unique values).", column))
		redirect(w, r, "/dashboard")
		return
	}
	s.dashboard(w, r, id, dashboardData{MapColumn: column, MapValues: values})
}

// operationFromForm builds the operation a cleaning form describes.
func operationFromForm(r *http.Request) (engine.Operation, error) {
	action := r.PostFormValue("action")
	target := r.PostFormValue("target")

	op := engine.Operation{Kind: engine.OpKind(action), Column: target}
	switch action {
	case "drop_specific":
		op.Kind = engine.OpDropColumn
	case "apply_mapping":
		op.Kind = engine.OpMapValues
	case "":
		return op, fmt.Errorf("%w: no cleaning action selected", errBadRequest)
	}

	switch op.Kind {
	case engine.OpRename:
		op.NewName = strings.TrimSpace(r.PostFormValue("new_name"))
	case engine.OpEncode:
		op.Method = engine.EncodingMethod(r.PostFormValue("method"))
	case engine.OpMapValues:
		op.Mapping = map[string]string{}
		for key, vals := range r.PostForm {
			if !strings.HasPrefix(key, mapOriginPrefix) || len(vals) == 0 {
				continue
			}
			if to := strings.TrimSpace(vals[0]); to != "" {
				op.Mapping[strings.TrimPrefix(key, mapOriginPrefix)] = to
			}
		}
	}
	return op, nil
}

// handleCleaning applies one cleaning or transform operation.
func (s *Server) handleCleaning(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireDataset(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.flashError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), "/dashboard")
		return
	}

	op, err := operationFromForm(r)
	if err != nil {
		s.flashError(w, r, err, "/dashboard")
		return
	}

	res, err := s.service.Apply(r.Context(), id, core.ApplyRequest{
		Operation:   op,
		Fingerprint: r.PostFormValue("fingerprint"),
	})
	if err != nil {
		target := "/dashboard"
		if op.Kind == engine.OpMapValues && op.Column != "" {
			target = transformURL(op.Column)
		}
		s.flashError(w, r, err, target)
		return
	}

	s.addFlash(w, r, flashSuccess, res.Message)
	redirect(w, r, "/dashboard")
}

// chartRequestFromForm reads the visualize form. "None" and empty selections
// are skipped; the remaining axes become the column list in x, y, z order.
func chartRequestFromForm(r *http.Request) engine.ChartRequest {
	pick := func(field string) string {
		v := strings.TrimSpace(r.PostFormValue(field))
		if v == "None" {
			return ""
		}
		return v
	}

	req := engine.ChartRequest{
		Kind:  engine.ChartKind(r.PostFormValue("plot_type")),
		Color: pick("color_col"),
		Theme: pick("theme"),
	}
	for _, field := range []string{"x_col", "y_col", "z_col"} {
		if c := pick(field); c != "" {
			req.Columns = append(req.Columns, c)
		}
	}
	return req
}

// handleVisualize plans a chart and renders it on the dashboard.
func (s *Server) handleVisualize(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireDataset(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.flashError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), "/dashboard")
		return
	}

	spec, err := s.service.Chart(r.Context(), id, chartRequestFromForm(r))
	if err != nil {
		s.flashError(w, r, err, "/dashboard")
		return
	}
	s.dashboard(w, r, id, dashboardData{Chart: spec})
}

// handleDownload sends the working dataset as <name>_modified.csv.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireDataset(w, r)
	if !ok {
		return
	}
	name, data, err := s.service.Export(r.Context(), id)
	if err != nil {
		s.flashError(w, r, err, "/dashboard")
		return
	}
	sendCSV(w, r, name, data)
}

// handleReset discards the browser's dataset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if id := s.datasetID(r); id != "" {
		if err := s.service.Delete(r.Context(), id); err != nil && !errors.Is(err, core.ErrSessionNotFound) {
			s.flashError(w, r, err, "/dashboard")
			return
		}
		s.setDatasetID(w, r, "")
	}
	s.addFlash(w, r, flashInfo, "Dataset discarded.")
	redirect(w, r, "/")
}
