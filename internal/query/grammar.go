package query

import "strings"

// Grammar renders dialect specific SQL fragments. Only SQLite is supported,
// which is what the service ships with.
type Grammar struct{}

// Wrap quotes an identifier. Dotted names are quoted per segment, "*" is left
// alone and "expr as alias" quotes both sides.
func (g Grammar) Wrap(value string) string {
	if i := strings.Index(strings.ToLower(value), " as "); i > 0 {
		return g.Wrap(value[:i]) + " AS " + g.wrapSegment(strings.TrimSpace(value[i+4:]))
	}
	parts := strings.Split(value, ".")
	for i, p := range parts {
		parts[i] = g.wrapSegment(p)
	}
	return strings.Join(parts, ".")
}

func (g Grammar) wrapSegment(s string) string {
	if s == "*" {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Cast converts expr to the given SQL type.
func (g Grammar) Cast(expr, typ string) string {
	return "CAST(" + expr + " AS " + typ + ")"
}

// GroupConcat joins the values of expr over a group with ", ".
func (g Grammar) GroupConcat(expr string) string {
	return "group_concat(" + expr + ", ', ')"
}

// ParseTableName replaces the @ placeholder of a column select with the
// owning table.
func ParseTableName(sql, table string) string {
	return strings.ReplaceAll(sql, "@", table+".")
}
