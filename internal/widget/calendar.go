package widget

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/calwidget/internal/config"
	"github.com/dukerupert/calwidget/internal/hook"
	"github.com/dukerupert/calwidget/internal/model"
	"github.com/dukerupert/calwidget/internal/query"
)

// PartialFile is the template rendered for the calendar container.
const PartialFile = "calendar"

// System events fired while building the events query. Listeners receive
// (*Calendar, *query.Builder); a *query.Builder returned from
// EventExtendQuery replaces the query.
const (
	EventExtendQueryBefore = "calendar.extendQueryBefore"
	EventExtendQuery       = "calendar.extendQuery"
)

var displayModeDictionary = map[string]string{
	"month": "month",
	"week":  "agendaWeek",
	"day":   "agendaDay",
	"list":  "listMonth",
}

var (
	ErrNotEditable   = errors.New("calendar is not editable")
	ErrEventNotFound = errors.New("event not found")
	ErrUnknownScope  = errors.New("unknown search scope")
	ErrUnknownFilter = errors.New("unknown filter")
	ErrInvalidRange  = errors.New("start must be before end")
)

// DB is the part of *sql.DB the widget needs.
type DB interface {
	query.Querier
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Filter constrains the events query.
type Filter func(q *query.Builder)

// ScopeFunc implements a named search scope. It receives the search term and
// the column expressions that would otherwise be searched.
type ScopeFunc func(q *query.Builder, term string, columns []string)

// Options carries the shared dependencies of calendar widgets.
type Options struct {
	DB     DB
	Bus    *hook.Bus
	Logger *slog.Logger
	// BasePath is the URL prefix of the widget routes, "/calendars" by default.
	BasePath string
	// AssetPath is the URL prefix of the embedded assets, "/assets" by default.
	AssetPath string
	Scopes    map[string]ScopeFunc
}

// Calendar renders a calendar view over a host table and answers its event
// queries. A Calendar serves a single request; the Registry makes a fresh one
// each time.
type Calendar struct {
	config config.WidgetConfig
	model  model.Definition
	db     DB
	bus    *hook.Bus
	logger *slog.Logger

	basePath  string
	assetPath string

	// AvailableDisplayModes is the comma separated list of client view names.
	AvailableDisplayModes string
	assets                []Asset
	vars                  map[string]any

	searchTerm  string
	searchMode  string
	searchScope string
	scopes      map[string]ScopeFunc
	filters     []Filter

	apiKey string

	searchableColumns []config.Column
	visibleColumns    []config.Column
}

// New builds a calendar for cfg and initialises it.
func New(cfg config.WidgetConfig, opts Options) *Calendar {
	c := &Calendar{
		config:    cfg,
		model:     cfg.Model,
		db:        opts.DB,
		bus:       opts.Bus,
		logger:    opts.Logger,
		basePath:  opts.BasePath,
		assetPath: opts.AssetPath,
		scopes:    opts.Scopes,
		vars:      make(map[string]any),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.basePath == "" {
		c.basePath = "/calendars"
	}
	if c.assetPath == "" {
		c.assetPath = "/assets"
	}
	if c.config.RecordID == "" {
		c.config.RecordID = "id"
	}
	c.searchMode = cfg.Search.Mode
	c.searchScope = cfg.Search.Scope

	c.Init()
	c.loadAssets()
	return c
}

// Init maps the configured display modes onto the client view names,
// dropping modes it does not know.
func (c *Calendar) Init() {
	var modes []string
	for _, key := range c.config.AvailableDisplayModes {
		if mode, ok := displayModeDictionary[key]; ok {
			modes = append(modes, mode)
		}
	}
	c.AvailableDisplayModes = strings.Join(modes, ",")
}

func (c *Calendar) Alias() string {
	return c.config.Alias
}

func (c *Calendar) Config() config.WidgetConfig {
	return c.config
}

// URL returns the path of the calendar page.
func (c *Calendar) URL() string {
	return c.basePath + "/" + c.config.Alias
}

// EventsURL returns the path the client fetches events from.
func (c *Calendar) EventsURL() string {
	return c.URL() + "/events"
}

// SetAPIKey hands the key the page was opened with to the client script, so
// its event fetches, moves and websocket pass the same check.
func (c *Calendar) SetAPIKey(key string) {
	c.apiKey = key
}

// SetSearchTerm applies a search term to the event query.
func (c *Calendar) SetSearchTerm(term string) {
	c.searchTerm = term
}

// SetSearchOptions overrides the search mode and scope. Empty values reset
// them to the unconfigured defaults.
func (c *Calendar) SetSearchOptions(mode, scope string) {
	c.searchMode = mode
	c.searchScope = scope
}

// HasScope reports whether a search scope called name is registered.
func (c *Calendar) HasScope(name string) bool {
	_, ok := c.scopes[name]
	return ok
}

// AddFilter registers a constraint applied to every event query.
func (c *Calendar) AddFilter(f Filter) {
	c.filters = append(c.filters, f)
}

// ApplyNamedFilter switches on a filter declared in the widget configuration.
// Every ? in its condition is bound to value.
func (c *Calendar) ApplyNamedFilter(name, value string) error {
	f, ok := c.config.Filter(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
	c.AddFilter(func(q *query.Builder) {
		cond := query.ParseTableName(f.Condition, q.Table())
		args := make([]any, strings.Count(cond, "?"))
		for i := range args {
			args[i] = value
		}
		q.Where(cond, args...)
	})
	return nil
}

// SetDateRange limits events to those overlapping [start, end). Events
// without an end are treated as starting inside the range. Computed and
// relation start or end columns are compared on their selected value.
func (c *Calendar) SetDateRange(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidRange
	}
	base := query.New(&c.model)
	startExpr, startArgs, err := c.columnExpr(base, c.config.RecordStart)
	if err != nil {
		return err
	}
	endExpr, endArgs, err := c.columnExpr(base, c.config.RecordEnd)
	if err != nil {
		return err
	}

	s := "datetime(" + startExpr + ")"
	e := "datetime(" + endExpr + ")"
	from, to := formatSQLTime(start), formatSQLTime(end)
	c.AddFilter(func(q *query.Builder) {
		q.Where(s+" < datetime(?)", bind(startArgs, []any{to})...)
		q.WhereGroup(func(sq *query.Builder) {
			sq.Where(e+" > datetime(?)", bind(endArgs, []any{from})...)
			sq.OrWhere("("+e+" IS NULL AND "+s+" >= datetime(?))", bind(endArgs, startArgs, []any{from})...)
		})
	})
	return nil
}

// FetchEvents runs the events query and projects every row onto an Event.
func (c *Calendar) FetchEvents(ctx context.Context) ([]model.Event, error) {
	q, err := c.PrepareQuery(ctx)
	if err != nil {
		return nil, err
	}
	records, err := q.Get(ctx, c.db)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}

	events := make([]model.Event, 0, len(records))
	for _, r := range records {
		events = append(events, c.makeEvent(r))
	}
	c.logger.Debug("fetched events", "widget", c.config.Alias, "count", len(events), "term", c.searchTerm)
	return events, nil
}

// OnFilter refreshes the events after the filters changed.
func (c *Calendar) OnFilter(ctx context.Context) ([]model.Event, error) {
	return c.FetchEvents(ctx)
}

// MoveEvent stores new start and end values for the row with the given id
// and returns its updated projection. It is only allowed on editable
// calendars. A zero end clears the end column.
func (c *Calendar) MoveEvent(ctx context.Context, id string, start, end time.Time) (*model.Event, error) {
	if !c.config.Editable {
		return nil, ErrNotEditable
	}
	if !end.IsZero() && !start.Before(end) {
		return nil, ErrInvalidRange
	}

	for _, name := range []string{c.config.RecordStart, c.config.RecordEnd} {
		if !c.isTableColumn(name) {
			return nil, fmt.Errorf("%w: %s is not stored on %s", ErrNotEditable, name, c.model.Table)
		}
	}

	g := query.Grammar{}
	table := c.model.QualifiedTable()
	idExpr, idArgs, err := c.columnExpr(query.New(&c.model), c.config.RecordID)
	if err != nil {
		return nil, err
	}
	var endValue any
	if !end.IsZero() {
		endValue = formatSQLTime(end)
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s = ?, %s = ? WHERE %s = ?",
		g.Wrap(table), g.Wrap(c.config.RecordStart), g.Wrap(c.config.RecordEnd), idExpr)
	res, err := c.db.ExecContext(ctx, stmt, bind([]any{formatSQLTime(start), endValue}, idArgs, []any{id})...)
	if err != nil {
		return nil, fmt.Errorf("move event %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrEventNotFound
	}

	q, err := c.PrepareQuery(ctx)
	if err != nil {
		return nil, err
	}
	q.Where(idExpr+" = ?", bind(idArgs, []any{id})...).Limit(1)
	records, err := q.Get(ctx, c.db)
	if err != nil {
		return nil, fmt.Errorf("reload event %s: %w", id, err)
	}
	if len(records) == 0 {
		return nil, ErrEventNotFound
	}
	ev := c.makeEvent(records[0])
	c.logger.Info("event moved", "widget", c.config.Alias, "id", id, "start", ev.Start, "end", ev.End)
	return &ev, nil
}

func (c *Calendar) makeEvent(r query.Record) model.Event {
	id := r.Text(c.config.RecordID)
	return model.Event{
		ID:    id,
		URL:   strings.ReplaceAll(c.config.RecordURL, ":id", id),
		Title: r.Text(c.config.RecordTitle),
		Start: normalizeTime(r.Text(c.config.RecordStart)),
		End:   normalizeTime(r.Text(c.config.RecordEnd)),
	}
}

const sqlTimeLayout = "2006-01-02 15:04:05"

func formatSQLTime(t time.Time) string {
	return t.UTC().Format(sqlTimeLayout)
}

// normalizeTime renders stored date-times as RFC3339 and leaves plain dates
// (all-day values) and unparseable text untouched.
func normalizeTime(v string) string {
	if v == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, sqlTimeLayout, "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return v
}
