package model

import (
	"fmt"
	"strings"
)

// Relation types understood by the calendar query builder. The names follow
// the conventions of the CMS model layer the column configuration comes from.
const (
	BelongsTo      = "belongsTo"
	HasOne         = "hasOne"
	HasMany        = "hasMany"
	BelongsToMany  = "belongsToMany"
	MorphTo        = "morphTo"
	MorphOne       = "morphOne"
	MorphMany      = "morphMany"
	MorphToMany    = "morphToMany"
	MorphedByMany  = "morphedByMany"
	AttachOne      = "attachOne"
	AttachMany     = "attachMany"
	HasManyThrough = "hasManyThrough"
)

var multiRelationTypes = map[string]bool{
	HasMany:        true,
	BelongsToMany:  true,
	MorphToMany:    true,
	MorphedByMany:  true,
	MorphMany:      true,
	AttachMany:     true,
	HasManyThrough: true,
}

// Relation describes how a related table is reached from the owning model.
//
//	belongsTo:     owner.Key -> related.OtherKey
//	hasOne/hasMany: related.Key -> owner.OtherKey (Key defaults to <singular owner table>_id)
//	belongsToMany: owner.pk <- Pivot.PivotKey, Pivot.PivotOtherKey -> related.OtherKey
type Relation struct {
	Type          string `yaml:"type"`
	Table         string `yaml:"table"`
	Key           string `yaml:"key"`
	OtherKey      string `yaml:"otherKey"`
	Pivot         string `yaml:"pivot"`
	PivotKey      string `yaml:"pivotKey"`
	PivotOtherKey string `yaml:"pivotOtherKey"`
}

// Definition is the metadata of a host table that a calendar is bound to.
type Definition struct {
	Table       string              `yaml:"table"`
	PrimaryKey  string              `yaml:"primaryKey"`
	TablePrefix string              `yaml:"tablePrefix"`
	Relations   map[string]Relation `yaml:"relations"`
}

// QualifiedTable returns the table name with the configured prefix applied.
func (d *Definition) QualifiedTable() string {
	return d.TablePrefix + d.Table
}

func (d *Definition) Key() string {
	if d.PrimaryKey == "" {
		return "id"
	}
	return d.PrimaryKey
}

func (d *Definition) HasRelation(name string) bool {
	_, ok := d.Relations[name]
	return ok
}

// RelationType returns the type of the named relation, or "" when the model
// does not define it.
func (d *Definition) RelationType(name string) string {
	return d.Relations[name].Type
}

// MakeRelation returns the named relation with its defaults filled in.
func (d *Definition) MakeRelation(name string) (Relation, error) {
	rel, ok := d.Relations[name]
	if !ok {
		return Relation{}, fmt.Errorf("relation %q not defined on %s", name, d.Table)
	}

	switch rel.Type {
	case BelongsTo:
		if rel.Key == "" {
			rel.Key = name + "_id"
		}
		if rel.OtherKey == "" {
			rel.OtherKey = "id"
		}
	case HasOne, HasMany:
		if rel.Key == "" {
			rel.Key = ForeignKey(d.Table)
		}
		if rel.OtherKey == "" {
			rel.OtherKey = d.Key()
		}
	case BelongsToMany:
		if rel.OtherKey == "" {
			rel.OtherKey = "id"
		}
	}
	rel.Table = d.TablePrefix + rel.Table
	if rel.Pivot != "" {
		rel.Pivot = d.TablePrefix + rel.Pivot
	}
	return rel, nil
}

// ForeignKey returns the column a related table uses to point at rows of
// table: "rooms" becomes "room_id", "categories" becomes "category_id".
func ForeignKey(table string) string {
	name := table
	switch {
	case strings.HasSuffix(name, "ies"):
		name = strings.TrimSuffix(name, "ies") + "y"
	case strings.HasSuffix(name, "sses"), strings.HasSuffix(name, "xes"),
		strings.HasSuffix(name, "ches"), strings.HasSuffix(name, "shes"):
		name = strings.TrimSuffix(name, "es")
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss"):
		name = strings.TrimSuffix(name, "s")
	}
	return name + "_id"
}

// IsMultiRelation reports whether the relation can yield several related rows
// per owner row.
func IsMultiRelation(relationType string) bool {
	return multiRelationTypes[relationType]
}
