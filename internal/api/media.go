package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"coursehub/internal/blob"
	"coursehub/internal/mediaurl"
)

type MediaHandler struct {
	blobs *blob.Service
}

func NewMediaHandler(blobs *blob.Service) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// GET /uploads/*
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	storagePath, ok := mediaurl.ParseStoragePath(r.URL.Path)
	if !ok {
		notFound(w, "Media not found")
		return
	}

	file, err := h.blobs.Open(storagePath)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, blob.ErrInvalidPath) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		notFound(w, "Media not found")
		return
	}

	// Stored names are random and never rewritten.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")

	fileName := sanitizeDispositionFilename(path.Base(storagePath))
	if shouldForceDownload(r) {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
	} else {
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", fileName))
	}

	http.ServeContent(w, r, fileName, info.ModTime(), file)
}

func sanitizeDispositionFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "download"
	}
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "\r", "")
	name = strings.ReplaceAll(name, "\n", "")
	if name == "" {
		return "download"
	}
	return name
}

func shouldForceDownload(r *http.Request) bool {
	download := strings.TrimSpace(r.URL.Query().Get("download"))
	if download == "" {
		return false
	}

	force, err := strconv.ParseBool(download)
	if err != nil {
		return false
	}

	return force
}
