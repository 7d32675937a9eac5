package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"daycounter/internal/app"
	"daycounter/internal/codec"
	"daycounter/internal/config"
	"daycounter/internal/countdown"
	"daycounter/internal/fetch"
	appLog "daycounter/internal/log"
	"daycounter/internal/model"
	"daycounter/internal/notify"
	"daycounter/internal/repository"
)

const maxBodyBytes = 10 << 20

// Server exposes the event collection over a JSON API.
type Server struct {
	cfg      *config.Config
	app      *app.App
	recorder *notify.Recorder
	fetcher  *fetch.Fetcher
	mux      *http.ServeMux
	now      func() time.Time
}

// NewServer constructs a new Server. recorder may be nil, in which case
// /api/notifications always returns an empty list.
func NewServer(cfg *config.Config, a *app.App, recorder *notify.Recorder) *Server {
	s := &Server{
		cfg:      cfg,
		app:      a,
		recorder: recorder,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password means disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="DayCounter", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("DELETE /api/events", s.handleClearEvents)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/events/{id}/countdown", s.handleCountdown)
	s.mux.HandleFunc("POST /api/events/{id}/tasks", s.handleAddTask)
	s.mux.HandleFunc("POST /api/events/{id}/tasks/{taskId}/toggle", s.handleToggleTask)
	s.mux.HandleFunc("GET /api/upcoming", s.handleUpcoming)

	s.mux.HandleFunc("GET /api/export.json", s.handleExportJSON)
	s.mux.HandleFunc("GET /api/export.ics", s.handleExportICS)
	s.mux.HandleFunc("POST /api/import", s.handleImport)

	s.mux.HandleFunc("GET /api/settings/daily-summary", s.handleGetDailySummary)
	s.mux.HandleFunc("PUT /api/settings/daily-summary", s.handlePutDailySummary)

	s.mux.HandleFunc("GET /api/notifications", s.handleNotifications)

	s.mux.HandleFunc("GET /api/categories", s.handleCategories)
	s.mux.HandleFunc("GET /api/reminder-presets", s.handleReminderPresets)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventView is an event plus its live countdown.
type eventView struct {
	model.Event
	Countdown countdown.Countdown `json:"countdown"`
	Remaining string              `json:"remaining"`
}

func (s *Server) view(ev model.Event) eventView {
	c := countdown.ForEvent(ev, s.now())
	return eventView{Event: ev, Countdown: c, Remaining: countdown.Format(c)}
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	events := s.app.Events()
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, s.view(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.app.Add(r.Context(), ev)
	if err != nil {
		writeAppError(w, err)
		return
	}
	appLog.Info("event created", "id", created.ID, "title", created.Title)
	writeJSON(w, http.StatusCreated, s.view(created))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.app.Get(r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(ev))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The path wins over any id in the body.
	ev.ID = r.PathValue("id")

	updated, err := s.app.Update(r.Context(), ev)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(updated))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ClearAll(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	appLog.Info("all events cleared")
	w.WriteHeader(http.StatusNoContent)
}

type taskRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.app.AddTask(r.Context(), r.PathValue("id"), req.Text)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleToggleTask(w http.ResponseWriter, r *http.Request) {
	ev, err := s.app.ToggleTask(r.Context(), r.PathValue("id"), r.PathValue("taskId"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(ev))
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Categories)
}

func (s *Server) handleReminderPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.ReminderPresets)
}

type countdownResponse struct {
	EventID   string              `json:"event_id"`
	Countdown countdown.Countdown `json:"countdown"`
	Remaining string              `json:"remaining"`
}

func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := s.app.Countdown(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countdownResponse{EventID: id, Countdown: c, Remaining: countdown.Format(c)})
}

// handleUpcoming lists active future events, soonest first.
//
// GET /api/upcoming?limit=5
//   - limit: maximum number of events; 0 or absent means all.
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 0)
	if limit < 0 {
		limit = 0
	}
	events := s.app.Upcoming(limit)
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, s.view(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, _ *http.Request) {
	data, err := s.app.ExportJSON()
	if err != nil {
		appLog.Error("json export failed", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(codec.Filename(codec.KindJSON, s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExportICS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(codec.Filename(codec.KindICS, s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.app.ExportICS())
}

type importResponse struct {
	Imported int `json:"imported"`
}

// SetFetcher enables POST /api/import?url=... for remote backups.
func (s *Server) SetFetcher(f *fetch.Fetcher) {
	s.fetcher = f
}

// handleImport accepts a JSON backup, or an iCalendar document when the
// body is text/calendar or ?format=ics is given. With ?url= the payload is
// downloaded instead of read from the body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if rawURL := r.URL.Query().Get("url"); rawURL != "" {
		s.handleImportURL(w, r, rawURL)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var n int
	if isICS(r) {
		n, err = s.app.ImportICS(r.Context(), body)
	} else {
		n, err = s.app.ImportJSON(r.Context(), body)
	}
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: n})
}

func (s *Server) handleImportURL(w http.ResponseWriter, r *http.Request, rawURL string) {
	if s.fetcher == nil {
		writeError(w, http.StatusNotImplemented, "remote import disabled")
		return
	}
	if !fetch.IsURL(rawURL) {
		writeError(w, http.StatusBadRequest, "url must be http or https")
		return
	}
	res, err := s.fetcher.Fetch(r.Context(), rawURL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "fetch failed: "+err.Error())
		return
	}
	n, err := s.app.ImportFetched(r.Context(), res)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: n})
}

func isICS(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), codec.KindICS) {
		return true
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "text/calendar"
}

type dailySummaryResponse struct {
	Time    string     `json:"time"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

type dailySummaryRequest struct {
	Time string `json:"time"`
}

func (s *Server) dailySummary() dailySummaryResponse {
	resp := dailySummaryResponse{Time: s.app.DailySummaryTime()}
	if next, err := s.app.NextDailySummary(); err == nil {
		resp.NextRun = &next
	}
	return resp
}

func (s *Server) handleGetDailySummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dailySummary())
}

func (s *Server) handlePutDailySummary(w http.ResponseWriter, r *http.Request) {
	var req dailySummaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := config.ParseTimeOfDay(req.Time); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.SetDailySummaryTime(r.Context(), req.Time); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dailySummary())
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	out := []notify.Notification{}
	if s.recorder != nil {
		out = append(out, s.recorder.All()...)
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// writeAppError maps domain errors onto status codes.
func writeAppError(w http.ResponseWriter, err error) {
	var fe *codec.FormatError
	var se *repository.StorageError
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &fe), errors.Is(err, model.ErrInvalidEvent), errors.Is(err, config.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &se):
		appLog.Error("storage failure", err, "op", se.Op)
		writeError(w, http.StatusInternalServerError, "storage error")
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
