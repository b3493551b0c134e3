package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/pure-golang/orderbrowser/logger"
)

// Recovery turns a handler panic into 500 "Internal Server Error".
func Recovery(next http.Handler) http.Handler {
	return RecoveryText(http.StatusText(http.StatusInternalServerError))(next)
}

// RecoveryText turns a handler panic into a plain text 500 with body text.
// http.ErrAbortHandler is re-panicked so net/http aborts the response.
func RecoveryText(text string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.FromContext(r.Context()).Error("panic recovered",
					"panic", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", stackLines(debug.Stack()),
				)

				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = fmt.Fprint(w, text)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func stackLines(stack []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(stack), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
