// Package httpmiddleware contains the net/http middleware shared by the
// salesdesk servers.
package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// WriteDetail writes a JSON error body of the form {"detail": "..."}.
func WriteDetail(w http.ResponseWriter, status int, detail string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("detail", func(e *jx.Encoder) { e.Str(detail) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
