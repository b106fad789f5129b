// Package lang holds the translated user-facing messages of the calendar
// widgets.
package lang

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	MissingRelation    = "model.missing_relation"
	MorphToUnsupported = "calendar.morph_to_unsupported"
	NotEditable        = "calendar.not_editable"
	WidgetNotFound     = "calendar.not_found"
	UnknownSearchScope = "calendar.unknown_scope"
	UnknownFilter      = "calendar.unknown_filter"
	InvalidRange       = "calendar.invalid_range"
	EventsFetchFailed  = "calendar.fetch_failed"
)

var supported = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[string]string{
	language.English: {
		MissingRelation:    "Model '%s' does not contain a definition for '%s'.",
		MorphToUnsupported: "The relationship morphTo is not supported for calendar columns.",
		NotEditable:        "Calendar '%s' is not editable.",
		WidgetNotFound:     "Calendar '%s' not found.",
		UnknownSearchScope: "Search scope '%s' is not registered.",
		UnknownFilter:      "Filter '%s' is not defined for this calendar.",
		InvalidRange:       "%s must be RFC3339 or YYYY-MM-DD format.",
		EventsFetchFailed:  "Failed to load calendar events.",
	},
	language.German: {
		MissingRelation:    "Das Model '%s' enthält keine Definition für '%s'.",
		MorphToUnsupported: "Die Beziehung morphTo wird für Kalenderspalten nicht unterstützt.",
		NotEditable:        "Der Kalender '%s' ist nicht bearbeitbar.",
		WidgetNotFound:     "Kalender '%s' wurde nicht gefunden.",
		UnknownSearchScope: "Der Suchbereich '%s' ist nicht registriert.",
		UnknownFilter:      "Der Filter '%s' ist für diesen Kalender nicht definiert.",
		InvalidRange:       "%s muss im Format RFC3339 oder JJJJ-MM-TT angegeben werden.",
		EventsFetchFailed:  "Kalendereinträge konnten nicht geladen werden.",
	},
}

func init() {
	for tag, msgs := range catalog {
		for key, msg := range msgs {
			if err := message.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
}

// Get returns the message for key in the given language, formatted with args.
// Unknown languages fall back to English.
func Get(tag language.Tag, key string, args ...any) string {
	return message.NewPrinter(Match(tag)).Sprintf(key, args...)
}

// Match maps tag onto the closest supported language.
func Match(tags ...language.Tag) language.Tag {
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// FromRequest picks the response language from the Accept-Language header.
func FromRequest(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	return Match(tags...)
}
