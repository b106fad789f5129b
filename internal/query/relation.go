package query

import "github.com/dukerupert/calwidget/internal/model"

// RelationExistenceQuery returns a builder over the related table that is
// correlated with the current row of b. It is the basis of WhereHas,
// WithCount and relation column subqueries.
func (b *Builder) RelationExistenceQuery(relation string) (*Builder, error) {
	def := b.def
	if !def.HasRelation(relation) {
		return nil, &MissingRelationError{Table: def.Table, Relation: relation}
	}
	rel, err := def.MakeRelation(relation)
	if err != nil {
		return nil, err
	}

	g := b.grammar
	parent := def.QualifiedTable()
	related := &model.Definition{Table: rel.Table, PrimaryKey: rel.OtherKey}
	sub := &Builder{def: related, from: g.Wrap(rel.Table)}

	switch rel.Type {
	case model.BelongsTo:
		sub.Where(g.Wrap(rel.Table+"."+rel.OtherKey) + " = " + g.Wrap(parent+"."+rel.Key))
	case model.HasOne, model.HasMany:
		sub.Where(g.Wrap(rel.Table+"."+rel.Key) + " = " + g.Wrap(parent+"."+rel.OtherKey))
	case model.BelongsToMany:
		if rel.Pivot == "" || rel.PivotKey == "" || rel.PivotOtherKey == "" {
			return nil, &UnsupportedRelationError{Relation: relation, Type: rel.Type}
		}
		sub.from += " INNER JOIN " + g.Wrap(rel.Pivot) + " ON " +
			g.Wrap(rel.Pivot+"."+rel.PivotOtherKey) + " = " + g.Wrap(rel.Table+"."+rel.OtherKey)
		sub.Where(g.Wrap(rel.Pivot+"."+rel.PivotKey) + " = " + g.Wrap(parent+"."+def.Key()))
	default:
		return nil, &UnsupportedRelationError{Relation: relation, Type: rel.Type}
	}
	return sub, nil
}

// WhereHas keeps rows that have at least one related row matching fn. A nil
// fn only requires existence.
func (b *Builder) WhereHas(relation string, fn func(*Builder)) error {
	return b.whereHas("AND", relation, fn)
}

func (b *Builder) OrWhereHas(relation string, fn func(*Builder)) error {
	return b.whereHas("OR", relation, fn)
}

func (b *Builder) whereHas(boolean, relation string, fn func(*Builder)) error {
	sub, err := b.RelationExistenceQuery(relation)
	if err != nil {
		return err
	}
	if fn != nil {
		sub.WhereGroup(fn)
	}
	sub.Select("1")
	sqlStr, args := sub.ToSQL()
	b.wheres = append(b.wheres, clause{boolean: boolean, sql: "EXISTS (" + sqlStr + ")", args: args})
	return nil
}

// WithCount selects the number of related rows as "<relation>_count".
func (b *Builder) WithCount(relation string) error {
	sub, err := b.RelationExistenceQuery(relation)
	if err != nil {
		return err
	}
	sub.Select("count(*)")
	b.AddSelectSub(sub, relation+"_count")
	return nil
}
