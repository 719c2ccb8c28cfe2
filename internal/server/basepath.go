package server

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

// NormalizeBasePath validates a mount path for the relay endpoints and
// returns it in "/seg/seg" form. The root base ("" or "/") normalizes
// to the empty string.
func NormalizeBasePath(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	if base == "" || base == "/" {
		return "", nil
	}
	if strings.Contains(base, "://") {
		return "", fmt.Errorf("base path %q must not carry a scheme", raw)
	}
	if strings.ContainsAny(base, "?#") {
		return "", fmt.Errorf("base path %q must not carry a query or fragment", raw)
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	for _, seg := range strings.Split(base[1:], "/") {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("base path %q must not contain dot segments", raw)
		}
	}
	base = path.Clean(base)
	if base == "/" {
		return "", nil
	}
	return base, nil
}

// WrapBasePath serves handler below base. Requests for base itself
// redirect to base+"/". An empty base returns the handler unchanged.
func WrapBasePath(base string, handler http.Handler) http.Handler {
	if base == "" {
		return handler
	}
	mux := http.NewServeMux()
	mux.Handle(base+"/", http.StripPrefix(base, handler))
	mux.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, base+"/", http.StatusMovedPermanently)
	})
	return mux
}
