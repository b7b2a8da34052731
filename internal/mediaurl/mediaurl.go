package mediaurl

import (
	"net/url"
	"path"
	"strings"
)

const PathPrefix = "/uploads/"

// Reference turns a blob storage path into the path stored on records and
// served by the static file route.
func Reference(storagePath string) string {
	return PathPrefix + strings.TrimLeft(storagePath, "/")
}

// ParseStoragePath extracts the storage path from a reference path or an
// absolute upload URL.
func ParseStoragePath(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	p := u.Path
	if p == "" {
		p = raw
	}

	clean := path.Clean(p)
	if !strings.HasPrefix(p, PathPrefix) || !strings.HasPrefix(clean, PathPrefix) {
		return "", false
	}

	return strings.TrimPrefix(clean, PathPrefix), true
}
