package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/M-24rjgc/cognical/internal/schema"
	"github.com/M-24rjgc/cognical/models"
	"github.com/fsnotify/fsnotify"
)

// SessionSeeder accepts planning session views, typically the simulated
// collaborator.
type SessionSeeder interface {
	SeedSession(view models.PlanningSessionView) error
}

// WatchSessions feeds planning session JSON files from dir to the seeder:
// first everything already present, then each file as it is created or
// rewritten. Blocks until ctx is done.
//
// Files that do not parse or validate are skipped with a warning; editors
// and partial writes produce follow-up events, so a half-written file is
// picked up once it is complete.
func WatchSessions(ctx context.Context, dir string, seeder SessionSeeder, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// Seed what is already there before reacting to changes.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		seedSessionFile(filepath.Join(dir, entry.Name()), seeder, log)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			seedSessionFile(event.Name, seeder, log)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("session watcher error", "error", err)
		}
	}
}

func seedSessionFile(path string, seeder SessionSeeder, log *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("read session file", "path", path, "error", err)
		return
	}

	var view models.PlanningSessionView
	if err := json.Unmarshal(data, &view); err != nil {
		log.Warn("skipping session file", "path", path, "error", err)
		return
	}
	schema.NormalizeSessionView(&view)
	if err := schema.CheckSessionView(&view); err != nil {
		log.Warn("skipping invalid session file", "path", path, "error", err)
		return
	}

	if err := seeder.SeedSession(view); err != nil {
		log.Warn("seed session", "path", path, "session", view.Session.ID, "error", err)
		return
	}
	log.Info("seeded session", "path", path, "session", view.Session.ID)
}
