package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/calwidget/internal/model"
)

// Record is one result row keyed by column name.
type Record map[string]any

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type clause struct {
	boolean string
	sql     string
	args    []any
}

// Builder assembles a SELECT over one model table. Conditions are raw SQL
// fragments with ? placeholders; identifiers are expected to be qualified by
// the caller.
type Builder struct {
	def     *model.Definition
	grammar Grammar

	from    string
	selects []string
	selArgs []any
	wheres  []clause
	withs   []string
	orders  []string
	limit   int
}

// New starts a query on the table described by def.
func New(def *model.Definition) *Builder {
	return &Builder{
		def:  def,
		from: Grammar{}.Wrap(def.QualifiedTable()),
	}
}

// Definition returns the model the builder queries.
func (b *Builder) Definition() *model.Definition {
	return b.def
}

func (b *Builder) Table() string {
	return b.def.QualifiedTable()
}

func (b *Builder) Grammar() Grammar {
	return b.grammar
}

// Select replaces the select list.
func (b *Builder) Select(exprs ...string) *Builder {
	b.selects = append([]string(nil), exprs...)
	b.selArgs = nil
	return b
}

// AddSelect appends raw select expressions.
func (b *Builder) AddSelect(exprs ...string) *Builder {
	b.selects = append(b.selects, exprs...)
	return b
}

// AddSelectSub appends "(sub) AS alias". The alias is quoted.
func (b *Builder) AddSelectSub(sub *Builder, alias string) *Builder {
	sqlStr, args := sub.ToSQL()
	b.selects = append(b.selects, "("+sqlStr+") AS "+b.grammar.Wrap(alias))
	b.selArgs = append(b.selArgs, args...)
	return b
}

func (b *Builder) Where(cond string, args ...any) *Builder {
	b.wheres = append(b.wheres, clause{boolean: "AND", sql: cond, args: args})
	return b
}

func (b *Builder) OrWhere(cond string, args ...any) *Builder {
	b.wheres = append(b.wheres, clause{boolean: "OR", sql: cond, args: args})
	return b
}

// WhereGroup adds the conditions collected by fn as one parenthesised group.
// An empty group adds nothing.
func (b *Builder) WhereGroup(fn func(*Builder)) *Builder {
	return b.group("AND", fn)
}

func (b *Builder) OrWhereGroup(fn func(*Builder)) *Builder {
	return b.group("OR", fn)
}

func (b *Builder) group(boolean string, fn func(*Builder)) *Builder {
	inner := b.forkConditions()
	fn(inner)
	cond, args := inner.whereSQL()
	if cond == "" {
		return b
	}
	b.wheres = append(b.wheres, clause{boolean: boolean, sql: "(" + cond + ")", args: args})
	return b
}

// forkConditions returns a builder on the same table that only collects
// conditions.
func (b *Builder) forkConditions() *Builder {
	return &Builder{def: b.def, from: b.from}
}

// HasConditions reports whether any where clause was added.
func (b *Builder) HasConditions() bool {
	return len(b.wheres) > 0
}

// With marks relations for eager loading. Duplicates are ignored.
func (b *Builder) With(relations ...string) *Builder {
	for _, r := range relations {
		if !contains(b.withs, r) {
			b.withs = append(b.withs, r)
		}
	}
	return b
}

// Withs returns the relations marked for eager loading.
func (b *Builder) Withs() []string {
	return b.withs
}

func (b *Builder) OrderBy(expr, direction string) *Builder {
	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}
	b.orders = append(b.orders, expr+" "+dir)
	return b
}

func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

func (b *Builder) whereSQL() (string, []any) {
	var sb strings.Builder
	var args []any
	for i, w := range b.wheres {
		if i > 0 {
			sb.WriteString(" " + w.boolean + " ")
		}
		sb.WriteString(w.sql)
		args = append(args, w.args...)
	}
	return sb.String(), args
}

// ToSQL renders the statement and its positional arguments.
func (b *Builder) ToSQL() (string, []any) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(b.selects) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(b.selects, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)

	args := append([]any(nil), b.selArgs...)
	if cond, whereArgs := b.whereSQL(); cond != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(cond)
		args = append(args, whereArgs...)
	}
	if len(b.orders) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orders, ", "))
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	return sb.String(), args
}

// Get runs the query and returns every row.
func (b *Builder) Get(ctx context.Context, db Querier) ([]Record, error) {
	sqlStr, args := b.ToSQL()
	rows, err := db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", b.Table(), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", b.Table(), err)
		}

		rec := make(Record, len(cols))
		for i, c := range cols {
			if v, ok := values[i].([]byte); ok {
				rec[c] = string(v)
				continue
			}
			rec[c] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Text returns the value of field as text. Times are rendered as RFC3339,
// NULL and missing fields as "".
func (r Record) Text(field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
