package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/dukerupert/calwidget/internal/config"
	"github.com/dukerupert/calwidget/internal/database"
	"github.com/dukerupert/calwidget/internal/metrics"
	"github.com/dukerupert/calwidget/internal/model"
	ws "github.com/dukerupert/calwidget/internal/websocket"
	"github.com/dukerupert/calwidget/internal/widget"
)

func testWidgets() []config.WidgetConfig {
	def := model.Definition{
		Table: "bookings",
		Relations: map[string]model.Relation{
			"room": {Type: model.BelongsTo, Table: "rooms"},
		},
	}
	cols := config.ColumnList{
		{Name: "title", Searchable: true},
		{Name: "starts_at"},
		{Name: "ends_at"},
		{Name: "room", Relation: "room", ValueFrom: "name", Searchable: true},
	}
	bookings := config.WidgetConfig{
		Alias:                 "bookings",
		Model:                 def,
		Columns:               cols,
		RecordURL:             "/bookings/:id",
		RecordID:              "id",
		RecordTitle:           "title",
		RecordStart:           "starts_at",
		RecordEnd:             "ends_at",
		AvailableDisplayModes: []string{"month", "week"},
		Editable:              true,
		Filters:               []config.FilterConfig{{Name: "status", Condition: "@status = ?"}},
	}

	readonly := bookings
	readonly.Alias = "readonly"
	readonly.Editable = false

	broken := bookings
	broken.Alias = "broken"
	broken.Columns = config.ColumnList{
		{Name: "title", Relation: "ghost", ValueFrom: "name"},
		{Name: "starts_at"},
		{Name: "ends_at"},
	}

	return []config.WidgetConfig{bookings, readonly, broken}
}

func setupHandler(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := widget.NewRegistry(testWidgets(), widget.Options{DB: db, Logger: logger})
	h := NewCalendarHandler(registry, ws.NewHub(logger), metrics.New(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendars", h.List)
	mux.HandleFunc("GET /calendars/{alias}", h.Page)
	mux.HandleFunc("GET /calendars/{alias}/events", h.Events)
	mux.HandleFunc("POST /calendars/{alias}/events", h.Events)
	mux.HandleFunc("POST /calendars/{alias}/filter", h.Filter)
	mux.HandleFunc("PUT /calendars/{alias}/events/{id}", h.Move)
	return mux
}

func decodeEvents(t *testing.T, rec *httptest.ResponseRecorder) []model.Event {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body model.EventList
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode events: %v (%s)", err, rec.Body.String())
	}
	return body.Events
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rec.Body.String())
	}
	return body["error"]
}

func TestListCalendars(t *testing.T) {
	h := setupHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Calendars []calendarSummary `json:"calendars"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Calendars) != 3 {
		t.Fatalf("got %d calendars, want 3", len(body.Calendars))
	}
	first := body.Calendars[0]
	if first.Alias != "broken" {
		t.Errorf("calendars not sorted: first = %q", first.Alias)
	}
	if body.Calendars[1].DisplayModes != "month,agendaWeek" || !body.Calendars[1].Editable {
		t.Errorf("bookings summary = %+v", body.Calendars[1])
	}
}

func TestListUsesBasePath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := widget.NewRegistry(testWidgets(), widget.Options{Logger: logger, BasePath: "/widgets"})
	h := NewCalendarHandler(registry, ws.NewHub(logger), metrics.New(), logger)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/widgets", nil))

	var body struct {
		Calendars []calendarSummary `json:"calendars"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, c := range body.Calendars {
		if c.URL != "/widgets/"+c.Alias || c.EventsURL != "/widgets/"+c.Alias+"/events" {
			t.Errorf("summary urls = %q, %q", c.URL, c.EventsURL)
		}
	}
}

func TestEvents(t *testing.T) {
	h := setupHandler(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all rows", "", 3},
		{"search primary column", "?term=offsite", 1},
		{"search relation", "?term=boreal", 1},
		{"any mode", "?term=offsite+boreal&mode=any", 2},
		{"named filter", "?filter%5Bstatus%5D=confirmed", 2},
		{"empty filter is ignored", "?filter%5Bstatus%5D=", 3},
		{"date range", "?start=2026-02-06&end=2026-02-07", 1},
		{"rfc3339 range", "?start=2026-02-01T00:00:00Z&end=2026-03-01T00:00:00Z", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars/bookings/events"+tt.query, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if got := len(decodeEvents(t, rec)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestEventsProjection(t *testing.T) {
	h := setupHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars/bookings/events?term=design", nil))

	events := decodeEvents(t, rec)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	want := model.Event{
		ID:    "2",
		URL:   "/bookings/2",
		Title: "Design review",
		Start: "2026-02-06T13:00:00Z",
		End:   "2026-02-06T14:00:00Z",
	}
	if events[0] != want {
		t.Errorf("event = %+v, want %+v", events[0], want)
	}
}

func TestEventsBadRequests(t *testing.T) {
	h := setupHandler(t)

	tests := []struct {
		name    string
		query   string
		wantMsg string
	}{
		{"unknown filter", "?filter%5Bcolour%5D=red", "colour"},
		{"unknown scope", "?term=x&scope=nope", "nope"},
		{"bad mode", "?mode=fuzzy", "mode"},
		{"bad start", "?start=yesterday&end=2026-02-07", "start"},
		{"half range", "?start=2026-02-06", "together"},
		{"reversed range", "?start=2026-02-07&end=2026-02-06", "before"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars/bookings/events"+tt.query, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if msg := decodeError(t, rec); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("error = %q, want it to mention %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestEventsUnknownCalendar(t *testing.T) {
	h := setupHandler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars/nope/events", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if msg := decodeError(t, rec); msg != "Calendar 'nope' not found." {
		t.Errorf("error = %q", msg)
	}

	req := httptest.NewRequest("GET", "/calendars/nope/events", nil)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if msg := decodeError(t, rec); msg != "Kalender 'nope' wurde nicht gefunden." {
		t.Errorf("german error = %q", msg)
	}
}

func TestEventsMissingRelation(t *testing.T) {
	h := setupHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars/broken/events", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	want := "Model 'bookings' does not contain a definition for 'ghost'."
	if msg := decodeError(t, rec); msg != want {
		t.Errorf("error = %q, want %q", msg, want)
	}
}

func TestFilterEndpoint(t *testing.T) {
	h := setupHandler(t)
	form := url.Values{}
	form.Set("filter[status]", "tentative")
	req := httptest.NewRequest("POST", "/calendars/bookings/filter", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	events := decodeEvents(t, rec)
	if len(events) != 1 || events[0].Title != "Design review" {
		t.Errorf("events = %+v", events)
	}
}

func TestMove(t *testing.T) {
	h := setupHandler(t)
	body := `{"start":"2026-03-02T08:00:00Z","end":"2026-03-02T09:00:00Z"}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("PUT", "/calendars/bookings/events/1", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var ev model.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Start != "2026-03-02T08:00:00Z" || ev.End != "2026-03-02T09:00:00Z" {
		t.Errorf("event = %+v", ev)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars/bookings/events?start=2026-03-02&end=2026-03-03", nil))
	if events := decodeEvents(t, rec); len(events) != 1 || events[0].ID != "1" {
		t.Errorf("moved event not found in new range: %+v", events)
	}
}

func TestMoveErrors(t *testing.T) {
	h := setupHandler(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"not editable", "/calendars/readonly/events/1", `{"start":"2026-03-02T08:00:00Z"}`, http.StatusForbidden},
		{"unknown event", "/calendars/bookings/events/99", `{"start":"2026-03-02T08:00:00Z"}`, http.StatusNotFound},
		{"invalid json", "/calendars/bookings/events/1", `{`, http.StatusBadRequest},
		{"bad start", "/calendars/bookings/events/1", `{"start":"soon"}`, http.StatusBadRequest},
		{"reversed", "/calendars/bookings/events/1", `{"start":"2026-03-02T08:00:00Z","end":"2026-03-01T08:00:00Z"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("PUT", tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestPage(t *testing.T) {
	h := setupHandler(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/calendars/bookings", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `id="calendar-bookings"`) {
		t.Error("page does not contain the calendar container")
	}
}

func TestFilterName(t *testing.T) {
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"filter[status]", "status", true},
		{"filter[]", "", false},
		{"status", "", false},
		{"filter[status", "", false},
	}
	for _, tt := range tests {
		got, ok := filterName(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("filterName(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}
