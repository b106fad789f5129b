package widget

import (
	"context"
	"fmt"

	"github.com/dukerupert/calwidget/internal/config"
	"github.com/dukerupert/calwidget/internal/model"
	"github.com/dukerupert/calwidget/internal/query"
)

// isColumnRelated reports whether col reads through a relation. With multi
// set it only reports relations that can yield several rows.
func (c *Calendar) isColumnRelated(col config.Column, multi bool) (bool, error) {
	if col.Relation == "" {
		return false, nil
	}
	if !c.model.HasRelation(col.Relation) {
		return false, &query.MissingRelationError{Table: c.model.Table, Relation: col.Relation}
	}
	if !multi {
		return true, nil
	}
	return model.IsMultiRelation(c.model.RelationType(col.Relation)), nil
}

// searchable returns the columns flagged searchable, in configuration order.
func (c *Calendar) searchable() []config.Column {
	if c.searchableColumns != nil {
		return c.searchableColumns
	}
	cols := []config.Column{}
	for _, col := range c.config.Columns {
		if col.Searchable {
			cols = append(cols, col)
		}
	}
	c.searchableColumns = cols
	return cols
}

// visible returns the columns backing the event title, start and end.
func (c *Calendar) visible() []config.Column {
	if c.visibleColumns != nil {
		return c.visibleColumns
	}
	wanted := map[string]bool{
		c.config.RecordTitle: true,
		c.config.RecordStart: true,
		c.config.RecordEnd:   true,
	}
	cols := []config.Column{}
	for _, col := range c.config.Columns {
		if wanted[col.Name] {
			cols = append(cols, col)
		}
	}
	c.visibleColumns = cols
	return cols
}

// applySearchToQuery adds the search term to q, through the configured scope
// when there is one.
func (c *Calendar) applySearchToQuery(q *query.Builder, columns []string, boolean string) error {
	term := c.searchTerm

	if c.searchScope != "" {
		scope, ok := c.scopes[c.searchScope]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownScope, c.searchScope)
		}
		fn := func(sq *query.Builder) { scope(sq, term, columns) }
		if boolean == "and" {
			q.WhereGroup(fn)
		} else {
			q.OrWhereGroup(fn)
		}
		return nil
	}

	if boolean == "and" {
		q.SearchWhere(term, columns, c.searchMode)
	} else {
		q.OrSearchWhere(term, columns, c.searchMode)
	}
	return nil
}

// PrepareQuery builds the events query: search term, relation lookups,
// custom column selects and filters, with the extendQueryBefore and
// extendQuery hooks around it.
func (c *Calendar) PrepareQuery(ctx context.Context) (*query.Builder, error) {
	q := query.New(&c.model)
	g := q.Grammar()
	primaryTable := q.Table()
	q.AddSelect(g.Wrap(primaryTable + ".*"))

	c.bus.Fire(EventExtendQueryBefore, c, q)

	var primarySearchable []string
	relationSearchable := make(map[string][]string)
	var searchRelations []string

	if c.searchTerm != "" {
		for _, col := range c.searchable() {
			related, err := c.isColumnRelated(col, false)
			if err != nil {
				return nil, err
			}

			if related {
				rel, err := c.model.MakeRelation(col.Relation)
				if err != nil {
					return nil, err
				}
				var expr string
				switch {
				case col.Select != "":
					expr = query.ParseTableName(col.Select, rel.Table)
				case col.ValueFrom != "":
					expr = g.Wrap(rel.Table + "." + col.ValueFrom)
				default:
					continue
				}
				if _, seen := relationSearchable[col.Relation]; !seen {
					searchRelations = append(searchRelations, col.Relation)
				}
				relationSearchable[col.Relation] = append(relationSearchable[col.Relation], expr)
				continue
			}

			if col.Select != "" {
				primarySearchable = append(primarySearchable, query.ParseTableName(col.Select, primaryTable))
			} else {
				primarySearchable = append(primarySearchable, g.Cast(g.Wrap(primaryTable+"."+col.Name), "TEXT"))
			}
		}
	}

	var joins []string
	for _, col := range c.visible() {
		if col.Relation != "" && col.UseRelationCount {
			if err := q.WithCount(col.Relation); err != nil {
				return nil, err
			}
		}
		related, err := c.isColumnRelated(col, false)
		if err != nil {
			return nil, err
		}
		if !related || (col.Select == "" && col.ValueFrom == "") {
			continue
		}
		if col.ValueFrom != "" {
			q.With(col.Relation)
		}
		joins = appendUnique(joins, col.Relation)
	}
	for _, rel := range searchRelations {
		joins = appendUnique(joins, rel)
	}

	var searchErr error
	q.WhereGroup(func(inner *query.Builder) {
		if len(primarySearchable) > 0 {
			if err := c.applySearchToQuery(inner, primarySearchable, "or"); err != nil {
				searchErr = err
				return
			}
		}

		for _, join := range joins {
			columns := relationSearchable[join]
			if len(columns) == 0 {
				continue
			}
			err := inner.OrWhereHas(join, func(sq *query.Builder) {
				if err := c.applySearchToQuery(sq, columns, "and"); err != nil {
					searchErr = err
				}
			})
			if err != nil {
				searchErr = err
				return
			}
		}
	})
	if searchErr != nil {
		return nil, searchErr
	}

	if err := c.addColumnSelects(q); err != nil {
		return nil, err
	}

	for _, f := range c.filters {
		f(q)
	}

	if result := c.bus.Fire(EventExtendQuery, c, q); result != nil {
		if replaced, ok := result.(*query.Builder); ok {
			return replaced, nil
		}
	}
	return q, nil
}

// addColumnSelects selects the visible columns that are computed: custom
// select expressions and values read through relations.
func (c *Calendar) addColumnSelects(q *query.Builder) error {
	g := q.Grammar()
	primaryTable := q.Table()

	for _, col := range c.visible() {
		if col.Select == "" {
			// Eager loaded relation values are resolved in the same statement.
			if col.Relation != "" && col.ValueFrom != "" && contains(q.Withs(), col.Relation) {
				if err := c.addRelationSelect(q, col); err != nil {
					return err
				}
			}
			continue
		}

		if col.Relation != "" {
			if err := c.addRelationSelect(q, col); err != nil {
				return err
			}
			continue
		}

		q.AddSelect(query.ParseTableName(col.Select, primaryTable) + " AS " + g.Wrap(col.Name))
	}
	return nil
}

// addRelationSelect selects the value of col from its related table as a
// correlated subquery aliased to the column name. Multi relations are
// concatenated.
func (c *Calendar) addRelationSelect(q *query.Builder, col config.Column) error {
	if c.model.RelationType(col.Relation) == model.MorphTo {
		return &query.UnsupportedRelationError{Relation: col.Relation, Type: model.MorphTo}
	}
	rel, err := c.model.MakeRelation(col.Relation)
	if err != nil {
		return &query.MissingRelationError{Table: c.model.Table, Relation: col.Relation}
	}
	sqlSelect := q.Grammar().Wrap(rel.Table + "." + col.ValueFrom)
	if col.Select != "" {
		sqlSelect = query.ParseTableName(col.Select, rel.Table)
	}

	sub, err := q.RelationExistenceQuery(col.Relation)
	if err != nil {
		return err
	}
	multi, err := c.isColumnRelated(col, true)
	if err != nil {
		return err
	}
	if multi {
		sqlSelect = q.Grammar().GroupConcat(sqlSelect)
	}
	sub.Select(sqlSelect)
	q.AddSelectSub(sub, col.Name)
	return nil
}

// columnExpr returns an SQL expression reading the configured column name on
// the current row of q. Computed columns expand their select and relation
// columns become a correlated subquery returning the first related value.
// Names without a column definition are read from the table.
func (c *Calendar) columnExpr(q *query.Builder, name string) (string, []any, error) {
	g := q.Grammar()
	table := q.Table()
	col, ok := c.config.Columns.Get(name)
	if !ok || (col.Relation == "" && col.Select == "") {
		return g.Wrap(table + "." + name), nil, nil
	}
	if col.Relation == "" {
		return query.ParseTableName(col.Select, table), nil, nil
	}
	if col.Select == "" && col.ValueFrom == "" {
		return g.Wrap(table + "." + name), nil, nil
	}

	if c.model.RelationType(col.Relation) == model.MorphTo {
		return "", nil, &query.UnsupportedRelationError{Relation: col.Relation, Type: model.MorphTo}
	}
	rel, err := c.model.MakeRelation(col.Relation)
	if err != nil {
		return "", nil, &query.MissingRelationError{Table: c.model.Table, Relation: col.Relation}
	}
	sub, err := q.RelationExistenceQuery(col.Relation)
	if err != nil {
		return "", nil, err
	}
	expr := g.Wrap(rel.Table + "." + col.ValueFrom)
	if col.Select != "" {
		expr = query.ParseTableName(col.Select, rel.Table)
	}
	sqlStr, args := sub.Select(expr).Limit(1).ToSQL()
	return "(" + sqlStr + ")", args, nil
}

// isTableColumn reports whether the configured column name is stored
// directly on the model table.
func (c *Calendar) isTableColumn(name string) bool {
	col, ok := c.config.Columns.Get(name)
	return !ok || (col.Relation == "" && col.Select == "")
}

// bind joins placeholder arguments in statement order.
func bind(groups ...[]any) []any {
	var out []any
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
