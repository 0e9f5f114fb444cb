package middleware

import (
	"log/slog"
	"net/http"
	"runtime"
)

// Recover turns a handler panic into a 500 and logs the stack.
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					stack := make([]byte, 4096)
					n := runtime.Stack(stack, false)
					log.Error("panic_recovered",
						"err", err,
						"method", r.Method,
						"path", r.URL.Path,
						"stack", string(stack[:n]),
					)
					writeError(w, http.StatusInternalServerError, "unexpected error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
