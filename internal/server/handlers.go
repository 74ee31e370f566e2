package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"gitlab.com/yelinaung/invoice-dashboard/internal/analytics"
	"gitlab.com/yelinaung/invoice-dashboard/internal/app"
	"gitlab.com/yelinaung/invoice-dashboard/internal/document"
	"gitlab.com/yelinaung/invoice-dashboard/internal/extract"
	"gitlab.com/yelinaung/invoice-dashboard/internal/identity"
	"gitlab.com/yelinaung/invoice-dashboard/internal/invoices"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
	"gitlab.com/yelinaung/invoice-dashboard/internal/models"
	"gitlab.com/yelinaung/invoice-dashboard/internal/session"
)

// MsgPasswordMismatch is returned when a registration's confirmation
// password differs.
const MsgPasswordMismatch = "Passwords don't match"

type credentials struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
	Name            string `json:"name,omitempty"`
}

func respondSession(w http.ResponseWriter, res session.Result, failStatus int) {
	if res.Success {
		respondJSON(w, http.StatusOK, res)
		return
	}
	respondJSON(w, failStatus, res)
}

func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body credentials
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res := rootFrom(req).Session.Login(req.Context(), body.Email, body.Password)
	respondSession(w, res, http.StatusUnauthorized)
}

func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var body credentials
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Password != body.ConfirmPassword {
		respondJSON(w, http.StatusBadRequest, session.Result{Error: MsgPasswordMismatch})
		return
	}
	res := rootFrom(req).Session.Register(req.Context(), body.Email, body.Password, body.Name)
	respondSession(w, res, http.StatusBadRequest)
}

func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	res := rootFrom(req).Session.Logout(req.Context())
	respondSession(w, res, http.StatusBadRequest)
}

type profileResponse struct {
	User        *identity.User  `json:"user"`
	Profile     *models.Profile `json:"profile"`
	DisplayName string          `json:"displayName"`
	Loading     bool            `json:"loading"`
}

func (r *Router) getProfile(w http.ResponseWriter, req *http.Request) {
	s := rootFrom(req).Session
	resp := profileResponse{
		User:        s.User(),
		Profile:     s.Profile(),
		DisplayName: s.DisplayName(),
		Loading:     s.Loading(),
	}
	respondJSON(w, http.StatusOK, resp)
}

func (r *Router) updateProfile(w http.ResponseWriter, req *http.Request) {
	var update models.ProfileUpdate
	if err := decodeJSON(req, &update); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res := rootFrom(req).Session.UpdateProfile(req.Context(), update)
	respondSession(w, res, http.StatusBadRequest)
}

func (r *Router) getTheme(w http.ResponseWriter, req *http.Request) {
	t := rootFrom(req).Theme
	respondJSON(w, http.StatusOK, map[string]any{"theme": t.Name(), "dark": t.IsDark()})
}

func (r *Router) toggleTheme(w http.ResponseWriter, req *http.Request) {
	t := rootFrom(req).Theme
	if _, err := t.Toggle(req.Context()); err != nil {
		// The in-memory theme has already flipped.
		logger.Log.Warn().Err(err).Msg("Failed to persist theme")
	}
	respondJSON(w, http.StatusOK, map[string]any{"theme": t.Name(), "dark": t.IsDark()})
}

func (r *Router) getToast(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, rootFrom(req).Toast.Current())
}

func (r *Router) upload(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxUploadSize)
	if err := req.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if err := extract.ValidateUpload(header.Filename, header.Header.Get("Content-Type")); err != nil {
		respondError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	draft := rootFrom(req).Extract(header.Filename)
	respondJSON(w, http.StatusOK, map[string]any{
		"invoice":    draft,
		"previewUrl": draft.FileURL,
	})
}

func (r *Router) confirmUpload(w http.ResponseWriter, req *http.Request) {
	res := rootFrom(req).ConfirmDraft(req.Context())
	if res.Success {
		respondJSON(w, http.StatusCreated, res)
		return
	}
	respondJSON(w, resultStatus(res.Err), res)
}

func resultStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, invoices.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrVendorRequired),
		errors.Is(err, models.ErrAmountRequired),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrNegativePrice),
		errors.Is(err, models.ErrInvalidStatus):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func statusFilter(req *http.Request) (models.InvoiceStatus, error) {
	v := req.URL.Query().Get("status")
	if v == "" || v == "all" {
		return "", nil
	}
	return models.ParseStatus(v)
}

func (r *Router) listInvoices(w http.ResponseWriter, req *http.Request) {
	status, err := statusFilter(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	st := rootFrom(req).Invoices.State()
	st.Invoices = analytics.Search(st.Invoices, req.URL.Query().Get("q"), status)
	respondJSON(w, http.StatusOK, map[string]any{
		"invoices": st.Invoices,
		"loading":  st.Loading,
		"error":    st.Error(),
		"source":   st.Source,
	})
}

func (r *Router) getInvoice(w http.ResponseWriter, req *http.Request) {
	inv, ok := rootFrom(req).Invoices.Get(mux.Vars(req)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "invoice not found")
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (r *Router) invoicePDF(w http.ResponseWriter, req *http.Request) {
	inv, ok := rootFrom(req).Invoices.Get(mux.Vars(req)["id"])
	if !ok {
		respondError(w, http.StatusNotFound, "invoice not found")
		return
	}
	data, err := document.RenderPDF(inv)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to render invoice PDF")
		respondError(w, http.StatusInternalServerError, "could not render invoice")
		return
	}
	writeFile(w, "application/pdf", document.Filename(inv), data)
}

func (r *Router) exportInvoices(w http.ResponseWriter, req *http.Request) {
	list := rootFrom(req).Invoices.State().Invoices
	data, err := analytics.InvoicesCSV(list)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to export invoices")
		respondError(w, http.StatusInternalServerError, "could not export invoices")
		return
	}
	writeFile(w, "text/csv", analytics.ReportFilename(time.Now()), data)
}

func parseRange(req *http.Request) (analytics.Range, error) {
	var r analytics.Range
	q := req.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return r, fmt.Errorf("invalid from date %q", v)
		}
		r.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return r, fmt.Errorf("invalid to date %q", v)
		}
		// Inclusive of the whole day.
		r.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return r, nil
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request) (analytics.Metrics, bool) {
	rng, err := parseRange(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return analytics.Metrics{}, false
	}
	return analytics.Compute(rootFrom(req).Invoices.State().Invoices, rng), true
}

func (r *Router) getAnalytics(w http.ResponseWriter, req *http.Request) {
	m, ok := r.metrics(w, req)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (r *Router) analyticsChart(w http.ResponseWriter, req *http.Request) {
	m, ok := r.metrics(w, req)
	if !ok {
		return
	}

	chart := mux.Vars(req)["chart"]
	var (
		data []byte
		err  error
	)
	switch chart {
	case "status":
		data, err = analytics.StatusChart(m)
	case "trend":
		data, err = analytics.TrendChart(m)
	default:
		respondError(w, http.StatusNotFound, "unknown chart")
		return
	}
	if errors.Is(err, analytics.ErrNoData) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		logger.Log.Error().Err(err).Str("chart", chart).Msg("Failed to render chart")
		respondError(w, http.StatusInternalServerError, "could not render chart")
		return
	}
	writeFile(w, "image/png", "", data)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to write file response")
	}
}
