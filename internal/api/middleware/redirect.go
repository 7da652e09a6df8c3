package middleware

import (
	"net/http"
	"strings"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
	TodosPath = "/todos"
)

// passthroughPrefixes are never redirected.
var passthroughPrefixes = []string{"/admin", "/api", "/static", "/health", "/ready", "/metrics"}

// PageRedirects sends browsers to the right page for their session state:
//
//	authenticated   on /login or /  -> /todos
//	anonymous       on /            -> /login
//	anonymous       on other pages  -> /login
//
// Place it after Authenticate.
func PageRedirects(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if (r.Method != http.MethodGet && r.Method != http.MethodHead) || isPassthrough(path) {
			next.ServeHTTP(w, r)
			return
		}

		authenticated := GetCaller(r.Context()) != nil

		switch {
		case path == LoginPath && authenticated:
			http.Redirect(w, r, TodosPath, http.StatusFound)
		case path == LoginPath:
			next.ServeHTTP(w, r)
		case path == HomePath && authenticated:
			http.Redirect(w, r, TodosPath, http.StatusFound)
		case !authenticated:
			http.Redirect(w, r, LoginPath, http.StatusFound)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func isPassthrough(path string) bool {
	for _, prefix := range passthroughPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
