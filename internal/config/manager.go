package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	reloadDebounce     = 250 * time.Millisecond
	restartBackoffBase = 250 * time.Millisecond
	restartBackoffMax  = 5 * time.Second
)

// ScheduleManager holds the active Schedule and reloads it when the policy
// file changes on disk. A bad file never replaces a good one.
type ScheduleManager struct {
	path string
	log  zerolog.Logger

	mu  sync.RWMutex
	cur Schedule

	subsMu sync.Mutex
	subs   []func(Schedule)
}

func NewScheduleManager(path string, log zerolog.Logger) *ScheduleManager {
	return &ScheduleManager{path: path, log: log, cur: DefaultSchedule()}
}

// Load reads the file and commits it.
func (m *ScheduleManager) Load() (Schedule, error) {
	s, err := LoadSchedule(m.path)
	if err != nil {
		return Schedule{}, err
	}
	m.set(s)
	return s, nil
}

func (m *ScheduleManager) Current() Schedule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// OnChange registers fn to run after every committed reload.
func (m *ScheduleManager) OnChange(fn func(Schedule)) {
	m.subsMu.Lock()
	m.subs = append(m.subs, fn)
	m.subsMu.Unlock()
}

func (m *ScheduleManager) set(s Schedule) {
	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()

	m.subsMu.Lock()
	subs := append([]func(Schedule){}, m.subs...)
	m.subsMu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (m *ScheduleManager) reload() {
	s, err := LoadSchedule(m.path)
	if err != nil {
		m.log.Warn().Err(err).Str("path", m.path).Msg("policy reload failed; keeping previous")
		return
	}
	m.set(s)
	m.log.Info().
		Str("path", m.path).
		Str("mode", string(s.Policy.Mode)).
		Int("start_hour", s.Policy.StartHour).
		Int("end_hour", s.Policy.EndHour).
		Msg("policy reloaded")
}

// Watch blocks until ctx is done, reloading on writes to the policy file.
// The directory is watched so editors that replace the file are handled.
func (m *ScheduleManager) Watch(ctx context.Context) error {
	if strings.TrimSpace(m.path) == "" {
		<-ctx.Done()
		return nil
	}
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(reloadDebounce, m.reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	backoff := restartBackoffBase
	wait := func() bool {
		d := backoff
		if backoff < restartBackoffMax {
			backoff = min(backoff*2, restartBackoffMax)
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err != nil {
			m.log.Warn().Err(err).Str("dir", dir).Msg("policy watch init failed")
			if !wait() {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			m.log.Warn().Err(err).Str("dir", dir).Msg("policy watch add failed")
			if !wait() {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase
		m.log.Debug().Str("dir", dir).Str("file", file).Msg("policy watcher started")

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) != file {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				m.log.Warn().Err(err).Str("dir", dir).Msg("policy watch error")
			}
		}

		_ = w.Close()
		m.log.Warn().Str("dir", dir).Msg("policy watcher stopped; restarting")
		if !wait() {
			return nil
		}
	}
}
