// internal/handlers/robots.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/common-repository/all-in-one-intranet/internal/access"
	"github.com/common-repository/all-in-one-intranet/internal/settings"
)

// publicRobots is the body served while the site is public.
const publicRobots = "User-agent: *\nDisallow:\n"

// RobotsHandler serves the crawler directives. Private sites disallow
// everything.
func RobotsHandler(view *settings.View) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := access.DecideCrawlerDirectives(view.Load(r.Context()), publicRobots)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, body)
	}
}
