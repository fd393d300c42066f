package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"shift_processor/internal/domain"
)

// IconFetcher downloads one coin-network icon (SVG bytes).
type IconFetcher interface {
	GetCoinIcon(ctx context.Context, coinNetwork string) ([]byte, error)
}

// IconStore keeps <dir>/<coin-network>.svg in line with the listing.
// Downloads are paced with a fixed delay to respect remote rate limits.
type IconStore struct {
	dir     string
	fetcher IconFetcher
	limiter *rate.Limiter
	log     zerolog.Logger
	observe func(op string, err error)
}

// NewIconStore creates a store writing into dir.
func NewIconStore(dir string, fetcher IconFetcher, delay time.Duration, logger zerolog.Logger) *IconStore {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &IconStore{
		dir:     dir,
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		log:     logger.With().Str("component", "icons").Str("dir", dir).Logger(),
	}
}

// SetObserver installs a hook called after every download or deletion.
func (s *IconStore) SetObserver(fn func(op string, err error)) {
	s.observe = fn
}

// Dir returns the icon directory.
func (s *IconStore) Dir() string { return s.dir }

// Path returns the icon path for key and whether the file exists.
func (s *IconStore) Path(key string) (string, bool) {
	name := domain.SanitizeKey(key)
	if name == "" {
		return "", false
	}
	p := filepath.Join(s.dir, name+".svg")
	_, err := os.Stat(p)
	return p, err == nil
}

// Reconcile downloads missing icons for keys and deletes icons no longer listed.
// Individual download failures are logged and skipped.
func (s *IconStore) Reconcile(ctx context.Context, keys []string) error {
	if err := EnsureDir(s.dir); err != nil {
		return fmt.Errorf("failed to create icon dir: %w", err)
	}

	existing, err := s.existing()
	if err != nil {
		return err
	}

	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if name := domain.SanitizeKey(k); name != "" {
			wanted[name] = struct{}{}
		}
	}

	deleted := 0
	for name := range existing {
		if _, ok := wanted[name]; ok {
			continue
		}
		err := os.Remove(filepath.Join(s.dir, name+".svg"))
		s.record("delete", err)
		if err != nil {
			s.log.Error().Err(err).Str("icon", name).Msg("✗ failed to delete deprecated icon")
			continue
		}
		deleted++
	}

	downloaded, failed := 0, 0
	for _, k := range keys {
		name := domain.SanitizeKey(k)
		if name == "" {
			continue
		}
		if _, ok := existing[name]; ok {
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		err := s.download(ctx, name)
		s.record("download", err)
		if err != nil {
			failed++
			s.log.Warn().Err(err).Str("icon", name).Msg("✗ icon download failed")
			continue
		}
		existing[name] = struct{}{}
		downloaded++
	}

	s.log.Info().
		Int("downloaded", downloaded).
		Int("failed", failed).
		Int("deleted", deleted).
		Msg("✨ icon reconciliation completed")
	return nil
}

func (s *IconStore) existing() (map[string]struct{}, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list icon dir: %w", err)
	}
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".svg") {
			continue
		}
		out[strings.TrimSuffix(e.Name(), ".svg")] = struct{}{}
	}
	return out, nil
}

func (s *IconStore) download(ctx context.Context, name string) error {
	data, err := s.fetcher.GetCoinIcon(ctx, name)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("empty icon body")
	}

	// write-then-rename so readers never see a partial file
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name+".svg"))
}

func (s *IconStore) record(op string, err error) {
	if s.observe != nil {
		s.observe(op, err)
	}
}
