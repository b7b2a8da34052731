package blob

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
	// DefaultOrphanGrace leaves recent files alone so uploads whose course
	// record is still being written are not swept.
	DefaultOrphanGrace = 1 * time.Hour
)

// ReferenceLister reports every storage path still referenced by a record.
type ReferenceLister interface {
	ReferencedStoragePaths(ctx context.Context) (map[string]struct{}, error)
}

// CleanupService removes stored course media that no record points to,
// such as files left behind when a submission was interrupted.
type CleanupService struct {
	refs     ReferenceLister
	blobs    *Service
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

func NewCleanupService(refs ReferenceLister, blobs *Service) *CleanupService {
	return &CleanupService{
		refs:     refs,
		blobs:    blobs,
		interval: DefaultCleanupInterval,
		grace:    DefaultOrphanGrace,
		now:      time.Now,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting blob cleanup service", "component", "blob_cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping blob cleanup service", "component", "blob_cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) int {
	referenced, err := s.refs.ReferencedStoragePaths(ctx)
	if err != nil {
		slog.Error("error listing referenced media", "component", "blob_cleanup", "error", err)
		return 0
	}

	cutoff := s.now().Add(-s.grace)
	deleted := 0

	for _, kind := range []Kind{KindCourseVideo, KindCourseImage} {
		root := filepath.Join(s.blobs.RootDir(), string(kind))
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || strings.Contains(d.Name(), ".tmp-") {
				return nil
			}

			info, err := d.Info()
			if err != nil || info.ModTime().After(cutoff) {
				return nil
			}

			rel, err := filepath.Rel(s.blobs.RootDir(), path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if _, ok := referenced[rel]; ok {
				return nil
			}

			if err := s.blobs.Delete(rel); err != nil {
				slog.Warn("error deleting orphaned media", "component", "blob_cleanup", "error", err, "path", rel)
				return nil
			}
			deleted++
			return nil
		})
		if err != nil {
			slog.Error("error walking media directory", "component", "blob_cleanup", "error", err, "kind", kind)
		}
	}

	if deleted > 0 {
		slog.Info("deleted orphaned media", "component", "blob_cleanup", "count", deleted)
	}
	return deleted
}
