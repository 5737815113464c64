// Package redirect builds the 303 targets of the auth form routes.
package redirect

import (
	"net/http"
	"net/url"
	"strings"
)

// SafeCallback returns raw when it is a same-site relative path, otherwise
// def. Absolute URLs, protocol-relative "//host" paths and backslash tricks
// are rejected.
func SafeCallback(raw, def string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return def
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return def
	}
	if strings.ContainsAny(raw, "\r\n") {
		return def
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return def
	}
	return raw
}

// Builder joins paths onto the public application URL.
type Builder struct {
	Base string
}

// URL returns path with the given key/value pairs appended to its query.
// Empty values are skipped. An odd trailing key is ignored.
func (b Builder) URL(path string, pairs ...string) string {
	target := strings.TrimRight(b.Base, "/") + path
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		q.Set(pairs[i], pairs[i+1])
	}
	if len(q) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return target + sep + q.Encode()
}

// SeeOther answers with 303 to the built URL.
func (b Builder) SeeOther(w http.ResponseWriter, r *http.Request, path string, pairs ...string) {
	http.Redirect(w, r, b.URL(path, pairs...), http.StatusSeeOther)
}
