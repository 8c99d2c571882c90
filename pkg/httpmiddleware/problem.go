package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// writeProblem writes the API's {"kind","message"} error body.
func writeProblem(w http.ResponseWriter, status int, kind, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("kind", func(e *jx.Encoder) { e.Str(kind) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
