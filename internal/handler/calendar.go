package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/text/language"

	"github.com/dukerupert/calwidget/internal/auth"
	"github.com/dukerupert/calwidget/internal/lang"
	"github.com/dukerupert/calwidget/internal/metrics"
	"github.com/dukerupert/calwidget/internal/middleware"
	"github.com/dukerupert/calwidget/internal/model"
	"github.com/dukerupert/calwidget/internal/query"
	ws "github.com/dukerupert/calwidget/internal/websocket"
	"github.com/dukerupert/calwidget/internal/widget"
)

type CalendarHandler struct {
	registry *widget.Registry
	hub      *ws.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewCalendarHandler(registry *widget.Registry, hub *ws.Hub, m *metrics.Metrics, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{registry: registry, hub: hub, metrics: m, logger: logger}
}

type calendarSummary struct {
	Alias        string `json:"alias"`
	URL          string `json:"url"`
	EventsURL    string `json:"events_url"`
	DisplayModes string `json:"display_modes"`
	Editable     bool   `json:"editable"`
}

// List returns the configured calendars.
func (h *CalendarHandler) List(w http.ResponseWriter, r *http.Request) {
	out := []calendarSummary{}
	for _, alias := range h.registry.Aliases() {
		c, err := h.registry.Make(alias)
		if err != nil {
			continue
		}
		out = append(out, calendarSummary{
			Alias:        alias,
			URL:          c.URL(),
			EventsURL:    c.EventsURL(),
			DisplayModes: c.AvailableDisplayModes,
			Editable:     c.Config().Editable,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendars": out})
}

// Page renders a full HTML page holding the calendar.
func (h *CalendarHandler) Page(w http.ResponseWriter, r *http.Request) {
	c, ok := h.calendar(w, r)
	if !ok {
		return
	}
	c.SetSearchTerm(r.URL.Query().Get("term"))
	if auth.IsAuthenticated(r.Context()) {
		c.SetAPIKey(middleware.APIKey(r))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.RenderPage(w, c.Alias()); err != nil {
		h.logger.Error("render calendar", "widget", c.Alias(), "error", err)
	}
}

// Events answers the client's event fetches with {"events": [...]}.
func (h *CalendarHandler) Events(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, (*widget.Calendar).FetchEvents)
}

// Filter refreshes the events after the client changed its filters.
func (h *CalendarHandler) Filter(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, (*widget.Calendar).OnFilter)
}

func (h *CalendarHandler) fetch(w http.ResponseWriter, r *http.Request, run func(*widget.Calendar, context.Context) ([]model.Event, error)) {
	c, ok := h.calendar(w, r)
	if !ok {
		return
	}
	if !h.applyRequest(w, r, c) {
		return
	}

	start := time.Now()
	events, err := run(c, r.Context())
	h.metrics.ObserveFetch(c.Alias(), time.Since(start), len(events), err)
	if err != nil {
		h.writeCalendarError(w, r, c.Alias(), err)
		return
	}
	writeJSON(w, http.StatusOK, model.EventList{Events: events})
}

// applyRequest moves search, filter and range parameters onto c. It writes a
// 400 response and returns false when a parameter is invalid.
func (h *CalendarHandler) applyRequest(w http.ResponseWriter, r *http.Request, c *widget.Calendar) bool {
	tag := lang.FromRequest(r)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return false
	}
	form := r.Form
	cfg := c.Config()

	c.SetSearchTerm(strings.TrimSpace(form.Get("term")))

	mode := form.Get("mode")
	switch mode {
	case "":
		mode = cfg.Search.Mode
	case query.ModeAll, query.ModeAny, query.ModeExact:
	default:
		writeError(w, http.StatusBadRequest, "mode must be all, any or exact")
		return false
	}
	scope := form.Get("scope")
	if scope == "" {
		scope = cfg.Search.Scope
	}
	if scope != "" && !c.HasScope(scope) {
		writeError(w, http.StatusBadRequest, lang.Get(tag, lang.UnknownSearchScope, scope))
		return false
	}
	c.SetSearchOptions(mode, scope)

	for key, values := range form {
		name, ok := filterName(key)
		if !ok || len(values) == 0 || values[0] == "" {
			continue
		}
		if err := c.ApplyNamedFilter(name, values[0]); err != nil {
			writeError(w, http.StatusBadRequest, lang.Get(tag, lang.UnknownFilter, name))
			return false
		}
	}

	startStr, endStr := form.Get("start"), form.Get("end")
	if startStr == "" && endStr == "" {
		return true
	}
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end must be given together")
		return false
	}
	start, err := parseFlexibleTime(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, lang.Get(tag, lang.InvalidRange, "start"))
		return false
	}
	end, err := parseFlexibleTime(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, lang.Get(tag, lang.InvalidRange, "end"))
		return false
	}
	if err := c.SetDateRange(start, end); err != nil {
		h.writeCalendarError(w, r, c.Alias(), err)
		return false
	}
	return true
}

// filterName extracts name from a filter[name] form key.
func filterName(key string) (string, bool) {
	if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
		return "", false
	}
	name := key[len("filter[") : len(key)-1]
	return name, name != ""
}

type moveRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Move stores a dragged or resized event and tells connected browsers.
func (h *CalendarHandler) Move(w http.ResponseWriter, r *http.Request) {
	c, ok := h.calendar(w, r)
	if !ok {
		return
	}
	tag := lang.FromRequest(r)

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	start, err := parseFlexibleTime(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, lang.Get(tag, lang.InvalidRange, "start"))
		return
	}
	var end time.Time
	if req.End != "" {
		if end, err = parseFlexibleTime(req.End); err != nil {
			writeError(w, http.StatusBadRequest, lang.Get(tag, lang.InvalidRange, "end"))
			return
		}
	}

	id := r.PathValue("id")
	event, err := c.MoveEvent(r.Context(), id, start, end)
	h.metrics.ObserveMove(c.Alias(), err)
	if err != nil {
		h.writeCalendarError(w, r, c.Alias(), err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("calendar_event", "moved", event.ID, map[string]any{
		"calendar": c.Alias(),
		"start":    event.Start,
		"end":      event.End,
	}))
	writeJSON(w, http.StatusOK, event)
}

func (h *CalendarHandler) calendar(w http.ResponseWriter, r *http.Request) (*widget.Calendar, bool) {
	alias := r.PathValue("alias")
	c, err := h.registry.Make(alias)
	if err != nil {
		h.writeCalendarError(w, r, alias, err)
		return nil, false
	}
	return c, true
}

type localizer interface {
	Localize(tag language.Tag) string
}

// writeCalendarError maps widget and query errors onto status codes with a
// message in the client's language.
func (h *CalendarHandler) writeCalendarError(w http.ResponseWriter, r *http.Request, alias string, err error) {
	tag := lang.FromRequest(r)

	var loc localizer
	switch {
	case errors.Is(err, widget.ErrWidgetNotFound):
		writeError(w, http.StatusNotFound, lang.Get(tag, lang.WidgetNotFound, alias))
	case errors.Is(err, widget.ErrNotEditable):
		writeError(w, http.StatusForbidden, lang.Get(tag, lang.NotEditable, alias))
	case errors.Is(err, widget.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, widget.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "start must be before end")
	case errors.Is(err, widget.ErrUnknownScope), errors.Is(err, widget.ErrUnknownFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &loc):
		h.logger.Error("calendar configuration", "widget", alias, "error", err)
		writeError(w, http.StatusInternalServerError, loc.Localize(tag))
	default:
		h.logger.Error("calendar request", "widget", alias, "error", err)
		writeError(w, http.StatusInternalServerError, lang.Get(tag, lang.EventsFetchFailed))
	}
}
