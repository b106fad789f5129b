package widget

import (
	"html/template"
	"io"
	"strings"
)

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

// PrepareVars collects the values the calendar partial renders.
func (c *Calendar) PrepareVars() {
	c.vars["Alias"] = c.config.Alias
	c.vars["CSSClasses"] = strings.Join(c.config.CSSClasses, " ")
	c.vars["DisplayModes"] = c.AvailableDisplayModes
	c.vars["Editable"] = c.config.Editable
	c.vars["EventsURL"] = c.EventsURL()
	c.vars["APIKey"] = c.apiKey
	c.vars["RecordURL"] = c.config.RecordURL
	c.vars["RecordOnClick"] = c.config.RecordOnClick
	c.vars["SearchTerm"] = c.searchTerm
	c.vars["Filters"] = c.config.Filters

	var css, js []string
	for _, a := range c.Assets("css") {
		css = append(css, a.URL(c.assetPath))
	}
	for _, a := range c.Assets("js") {
		js = append(js, a.URL(c.assetPath))
	}
	c.vars["Stylesheets"] = css
	c.vars["Scripts"] = js
}

// Render writes the calendar partial.
func (c *Calendar) Render(w io.Writer) error {
	c.PrepareVars()
	return templates.ExecuteTemplate(w, PartialFile, c.vars)
}

// RenderPage writes a full HTML page around the calendar partial.
func (c *Calendar) RenderPage(w io.Writer, title string) error {
	c.PrepareVars()
	data := make(map[string]any, len(c.vars)+1)
	for k, v := range c.vars {
		data[k] = v
	}
	data["Title"] = title
	return templates.ExecuteTemplate(w, "layout", data)
}
