package bridge

import (
	"html/template"
	"net/http"

	"github.com/haukened/focusgate/internal/focus/domain"
)

// UnknownOrigin is shown when the redirect carried no origin.
const UnknownOrigin = "Original address unknown"

var interstitialPage = template.Must(template.New("blocked").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Blocked during focus</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
<h1>Blocked during focus</h1>
{{if .Origin}}<p>You tried to open <code id="origin">{{.Origin}}</code>.</p>
{{else}}<p id="origin-unknown">{{.Unknown}}.</p>
{{end}}<p>This site is on your block list. Your tab goes back there when your focus session ends.</p>
</body>
</html>
`))

// InterstitialHandler serves the page blocked navigations are redirected to
// when the interstitial URL points at the daemon itself. The blocked URL
// arrives as the trailing from= parameter.
func InterstitialHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_ = interstitialPage.Execute(w, struct{ Origin, Unknown string }{
			Origin:  domain.InterstitialOrigin(r.URL.RawQuery),
			Unknown: UnknownOrigin,
		})
	})
}
