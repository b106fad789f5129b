package query

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"

	"github.com/dukerupert/calwidget/internal/lang"
)

var (
	ErrMissingRelation     = errors.New("missing relation")
	ErrUnsupportedRelation = errors.New("unsupported relation")
)

// MissingRelationError is returned when a column references a relation the
// model does not define.
type MissingRelationError struct {
	Table    string
	Relation string
}

func (e *MissingRelationError) Error() string {
	return e.Localize(language.English)
}

// Localize renders the error in the given language.
func (e *MissingRelationError) Localize(tag language.Tag) string {
	return lang.Get(tag, lang.MissingRelation, e.Table, e.Relation)
}

func (e *MissingRelationError) Is(target error) bool {
	return target == ErrMissingRelation
}

// UnsupportedRelationError is returned for relation types that cannot be
// turned into a correlated subquery.
type UnsupportedRelationError struct {
	Relation string
	Type     string
}

func (e *UnsupportedRelationError) Error() string {
	if e.Type == "morphTo" {
		return e.Localize(language.English)
	}
	return fmt.Sprintf("relation %q of type %q is not supported", e.Relation, e.Type)
}

func (e *UnsupportedRelationError) Localize(tag language.Tag) string {
	if e.Type == "morphTo" {
		return lang.Get(tag, lang.MorphToUnsupported)
	}
	return e.Error()
}

func (e *UnsupportedRelationError) Is(target error) bool {
	return target == ErrUnsupportedRelation
}
