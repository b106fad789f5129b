package widget

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed assets
var assetFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

const (
	fullCalendarVersion = "4.0.0-alpha.4"
	fullCalendarCDN     = "https://cdn.jsdelivr.net/npm/fullcalendar@" + fullCalendarVersion + "/dist/"
)

// Asset is a stylesheet or script the calendar page needs.
type Asset struct {
	Kind    string // "css" or "js"
	Path    string
	Version string
}

// URL returns the address the browser loads the asset from. Embedded assets
// are served under prefix and carry their version as a cache buster.
func (a Asset) URL(prefix string) string {
	if strings.HasPrefix(a.Path, "http://") || strings.HasPrefix(a.Path, "https://") {
		return a.Path
	}
	u := strings.TrimRight(prefix, "/") + "/" + a.Path
	if a.Version != "" {
		u += "?v=" + a.Version
	}
	return u
}

func (c *Calendar) loadAssets() {
	c.addCSS(fullCalendarCDN+"fullcalendar.min.css", fullCalendarVersion)
	c.addCSS("css/calendar.css", "core")
	c.addJS(fullCalendarCDN+"fullcalendar.min.js", fullCalendarVersion)
	c.addJS("js/calendar.js", "core")
}

func (c *Calendar) addCSS(path, version string) {
	c.assets = append(c.assets, Asset{Kind: "css", Path: path, Version: version})
}

func (c *Calendar) addJS(path, version string) {
	c.assets = append(c.assets, Asset{Kind: "js", Path: path, Version: version})
}

// Assets returns the assets of the given kind in load order.
func (c *Calendar) Assets(kind string) []Asset {
	var out []Asset
	for _, a := range c.assets {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// AssetHandler serves the embedded stylesheets and scripts.
func AssetHandler() http.Handler {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
