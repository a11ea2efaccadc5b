package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/queryquack/queryquack/logger"
	"github.com/queryquack/queryquack/models"
)

// DirectoryWatcher feeds plain-text files dropped into a directory
// through the ingestion pipeline. All watched files share one dedicated
// session, ended when the watcher stops. Only .txt and .md files are
// picked up; anything needing format-specific parsing belongs to the
// extraction collaborators upstream of this pipeline.
type DirectoryWatcher struct {
	service RAGService
	dir     string
}

func NewDirectoryWatcher(service RAGService, dir string) *DirectoryWatcher {
	return &DirectoryWatcher{service: service, dir: dir}
}

// Watch scans the directory once, then blocks ingesting new and
// modified files until the context is cancelled.
func (w *DirectoryWatcher) Watch(ctx context.Context) error {
	session := w.service.CreateSession()
	defer func() {
		if err := w.service.EndSession(context.WithoutCancel(ctx), session.ID); err != nil {
			logger.Error("ending watch session", "error", err)
		}
	}()

	w.scan(ctx, session.ID)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	logger.Info("watching directory", "dir", w.dir, "session", session.ID)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSupportedFile(event.Name) {
				continue
			}
			// Editors often write via create-temp-and-rename, so Create
			// and Write are handled the same way.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.ingestFile(ctx, session.ID, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)

		case <-ctx.Done():
			logger.Info("watcher shutting down", "dir", w.dir)
			return nil
		}
	}
}

func (w *DirectoryWatcher) scan(ctx context.Context, sessionID string) {
	err := filepath.Walk(w.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isSupportedFile(path) {
			w.ingestFile(ctx, sessionID, path)
		}
		return nil
	})
	if err != nil {
		logger.Error("scanning watch directory", "dir", w.dir, "error", err)
	}
}

func (w *DirectoryWatcher) ingestFile(ctx context.Context, sessionID, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error("reading watched file", "path", path, "error", err)
		return
	}

	doc := models.Document{
		Filename: filepath.Base(path),
		Type:     strings.TrimPrefix(filepath.Ext(path), "."),
		Text:     string(content),
		Metadata: map[string]any{"source": "watch_dir"},
	}
	// Reingest, not Ingest: a Write event for a known filename means the
	// file changed and its old vectors must be replaced.
	if err := w.service.Reingest(ctx, sessionID, doc); err != nil {
		logger.Error("ingesting watched file", "path", path, "error", err)
	}
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	default:
		return false
	}
}
