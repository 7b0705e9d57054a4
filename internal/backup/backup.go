// Package backup writes periodic JSON exports of the event store and prunes
// old ones.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/store"
)

const filePrefix = "family-calendar-"

// Exporter is the store surface a backup needs.
type Exporter interface {
	Serialize() store.Data
}

// Runner owns the backup directory and the optional cron schedule.
type Runner struct {
	src  Exporter
	dir  string
	keep int
	loc  *time.Location

	cron *cron.Cron
}

// New returns a Runner writing into dir and keeping the newest keep files.
func New(src Exporter, dir string, keep int, loc *time.Location) *Runner {
	if keep <= 0 {
		keep = 1
	}
	if loc == nil {
		loc = time.Local
	}
	return &Runner{src: src, dir: dir, keep: keep, loc: loc}
}

// Start schedules RunOnce on spec (standard 5-field cron). An empty spec
// leaves the runner idle.
func (r *Runner) Start(spec string) error {
	if strings.TrimSpace(spec) == "" {
		appLog.Info("backup schedule disabled")
		return nil
	}
	if r.cron != nil {
		return errors.New("backup: already started")
	}
	c := cron.New(cron.WithLocation(r.loc))
	if _, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(time.Now()); err != nil {
			appLog.Error("scheduled backup failed", err, "dir", r.dir)
		}
	}); err != nil {
		return fmt.Errorf("backup: bad schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	appLog.Info("backup scheduled", "cron", spec, "dir", r.dir, "keep", r.keep)
	return nil
}

// Stop halts the schedule and waits for a running backup to finish or ctx
// to end.
func (r *Runner) Stop(ctx context.Context) {
	if r.cron == nil {
		return
	}
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
	r.cron = nil
}

// RunOnce writes today's backup (overwriting an earlier one from the same
// day) and prunes the directory. It returns the written path.
func (r *Runner) RunOnce(now time.Time) (string, error) {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", err
	}
	data, err := store.Encode(r.src.Serialize(), true)
	if err != nil {
		return "", err
	}

	path := filepath.Join(r.dir, store.ExportFilename(now.In(r.loc)))
	tmp, err := os.CreateTemp(r.dir, ".backup-*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}

	removed, err := r.prune()
	if err != nil {
		appLog.Warn("backup prune failed", "dir", r.dir, "err", err)
	}
	appLog.Info("backup written", "path", path, "bytes", len(data), "pruned", removed)
	return path, nil
}

// prune deletes all but the newest r.keep backups. Names sort by date.
func (r *Runner) prune() (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && isBackupName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= r.keep {
		return 0, nil
	}
	slices.Sort(names)

	var errs []error
	removed := 0
	for _, name := range names[:len(names)-r.keep] {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// isBackupName matches family-calendar-YYYY-MM-DD.json only, so the live
// store file never counts against keep.
func isBackupName(name string) bool {
	day, ok := strings.CutPrefix(name, filePrefix)
	if !ok {
		return false
	}
	day, ok = strings.CutSuffix(day, ".json")
	if !ok {
		return false
	}
	_, err := model.ParseDateKey(day)
	return err == nil
}
