package query

import "strings"

// Search modes accepted by SearchWhere.
const (
	ModeAll   = "all"
	ModeAny   = "any"
	ModeExact = "exact"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchWhere constrains the query to rows where term matches one of the
// column expressions.
//
// In "all" mode a column matches when it contains every word of the term, in
// "any" mode when it contains at least one word, and in "exact" mode when it
// contains the whole trimmed term. Matching is case-insensitive. An empty
// term or an empty column list adds nothing.
func (b *Builder) SearchWhere(term string, columns []string, mode string) *Builder {
	return b.searchWhere("AND", term, columns, mode)
}

func (b *Builder) OrSearchWhere(term string, columns []string, mode string) *Builder {
	return b.searchWhere("OR", term, columns, mode)
}

func (b *Builder) searchWhere(boolean, term string, columns []string, mode string) *Builder {
	if strings.TrimSpace(term) == "" || len(columns) == 0 {
		return b
	}
	if mode == "" {
		mode = ModeAll
	}

	return b.group(boolean, func(q *Builder) {
		if mode == ModeExact {
			pattern := likePattern(term)
			for _, col := range columns {
				q.OrWhere(likeCondition(col), pattern)
			}
			return
		}

		words := strings.Split(term, " ")
		for _, col := range columns {
			q.OrWhereGroup(func(cq *Builder) {
				for _, word := range words {
					if word == "" {
						continue
					}
					if mode == ModeAny {
						cq.OrWhere(likeCondition(col), likePattern(word))
					} else {
						cq.Where(likeCondition(col), likePattern(word))
					}
				}
			})
		}
	})
}

func likeCondition(expr string) string {
	return "lower(" + expr + `) LIKE ? ESCAPE '\'`
}

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}
