// Package checkpoint implements the session/checkpoint manager spec §6
// names as an external collaborator: a durable per-match-directory ledger
// of which game sequence numbers have already produced a complete .log
// line, so that -c/--continue can resume without re-playing finished games
// (Testable Property 8) and -f/--force can wipe the ledger and start over.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dumbarb/dumbarb/internal/util/slogx"
	"github.com/dumbarb/dumbarb/internal/util/timeutil"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Options configures the underlying sqlite connection.
type Options struct {
	Path          string
	SlowThreshold time.Duration
	BusyTimeout   time.Duration
	NoUseWAL      bool
}

func (o *Options) FillDefaults() {
	if o.SlowThreshold == 0 {
		o.SlowThreshold = 200 * time.Millisecond
	}
	if o.BusyTimeout == 0 {
		o.BusyTimeout = time.Minute
	}
}

func buildPath(o Options) string {
	var params []string
	if !o.NoUseWAL {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}
	params = append(params, fmt.Sprintf("_busy_timeout=%v", o.BusyTimeout.Milliseconds()))
	if len(params) == 0 {
		return o.Path
	}
	return o.Path + "?" + strings.Join(params, "&")
}

// Store is the durable completed-games ledger for one sqlite database
// (normally one file per session, shared across all matches it runs).
type Store struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open opens (creating and migrating if necessary) the checkpoint database
// at o.Path.
func Open(log *slog.Logger, o Options) (*Store, error) {
	o.FillDefaults()
	if o.Path == "" {
		return nil, fmt.Errorf("checkpoint: no path to db")
	}
	if log == nil {
		log = slogx.DiscardLogger()
	}

	db, err := gorm.Open(sqlite.Open(buildPath(o)), &gorm.Config{
		Logger: newLogger(log, o.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open db: %w", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("checkpoint: migrate db: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// RecordGame marks game seq of matchDir as complete. Called once per game,
// right after the Result emitter has durably written its .log line.
func (s *Store) RecordGame(ctx context.Context, matchDir string, seq int) error {
	err := s.db.WithContext(ctx).Create(&CompletedGame{
		MatchDir:  matchDir,
		Seq:       seq,
		UpdatedAt: timeutil.NowUTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("checkpoint: record game %d: %w", seq, err)
	}
	return nil
}

// CompletedSeqs returns the set of game sequence numbers already recorded
// complete for matchDir.
func (s *Store) CompletedSeqs(ctx context.Context, matchDir string) (map[int]bool, error) {
	var rows []CompletedGame
	err := s.db.WithContext(ctx).Where("match_dir = ?", matchDir).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list completed games: %w", err)
	}
	out := make(map[int]bool, len(rows))
	for _, r := range rows {
		out[r.Seq] = true
	}
	return out, nil
}

// NextGame returns the lowest 1-based game sequence number in
// [1, numGames] not yet recorded complete, or numGames+1 if every game is
// done (the caller should then spawn nothing, per Testable Property 8).
func (s *Store) NextGame(ctx context.Context, matchDir string, numGames int) (int, error) {
	done, err := s.CompletedSeqs(ctx, matchDir)
	if err != nil {
		return 0, err
	}
	for seq := 1; seq <= numGames; seq++ {
		if !done[seq] {
			return seq, nil
		}
	}
	return numGames + 1, nil
}

// LastUpdated returns the most recent RecordGame timestamp for matchDir, or
// the zero time if no game has been recorded yet.
func (s *Store) LastUpdated(ctx context.Context, matchDir string) (time.Time, error) {
	var row CompletedGame
	err := s.db.WithContext(ctx).
		Where("match_dir = ?", matchDir).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("checkpoint: last updated: %w", err)
	}
	return row.UpdatedAt.UTC(), nil
}

// Reset deletes every recorded game for matchDir, the effect of -f/--force.
func (s *Store) Reset(ctx context.Context, matchDir string) error {
	err := s.db.WithContext(ctx).Where("match_dir = ?", matchDir).Delete(&CompletedGame{}).Error
	if err != nil {
		return fmt.Errorf("checkpoint: reset: %w", err)
	}
	return nil
}
