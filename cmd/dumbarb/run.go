package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dumbarb/dumbarb/internal/checkpoint"
	"github.com/dumbarb/dumbarb/internal/config"
	"github.com/dumbarb/dumbarb/internal/match"
	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/dumbarb/dumbarb/internal/report"
	"github.com/dumbarb/dumbarb/internal/statusserver"
	"github.com/dumbarb/dumbarb/internal/util/human"
	"github.com/dumbarb/dumbarb/internal/util/signal"
	"github.com/dumbarb/dumbarb/internal/util/style"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.ExactArgs(1),
	Short: "Run a match described by a TOML config file",
	Long: `Run plays a match between two (optionally three) GTP engines as described
by the given TOML config file, writing .log/.mvtimes/.run/SGF artifacts into
the match's output directory.
`,
}

func init() {
	p := runCmd.Flags()
	outDir := p.StringP("outdir", "o", "", "match output directory (required)")
	cont := p.BoolP("continue", "c", false, "resume a match directory, skipping already-completed games")
	force := p.BoolP("force", "f", false, "wipe any existing checkpoint state for this match directory and start over")
	statusAddr := p.String("status-addr", "", "if set, serve a live status feed (GET /status, GET /ws) on this address")
	checkpointDB := p.String("checkpoint-db", "", "path to the checkpoint sqlite database (default: <outdir>/checkpoint.db)")
	_ = runCmd.MarkFlagRequired("outdir")

	runCmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}

		matchDir, err := filepath.Abs(*outDir)
		if err != nil {
			return fmt.Errorf("resolve outdir: %w", err)
		}
		if err := os.MkdirAll(matchDir, 0o755); err != nil {
			return fmt.Errorf("create outdir: %w", err)
		}

		plan, err := cfg.ToPlan(matchDir)
		if err != nil {
			return err
		}

		log := slog.Default()

		// A second Ctrl-C force-exits in case an engine subprocess is wedged
		// and the graceful shutdown path is stuck waiting on it.
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		dbPath := *checkpointDB
		if dbPath == "" {
			dbPath = filepath.Join(matchDir, "checkpoint.db")
		}
		store, err := checkpoint.Open(log, checkpoint.Options{Path: dbPath})
		if err != nil {
			return fmt.Errorf("open checkpoint db: %w", err)
		}
		defer store.Close()

		if *force {
			if err := store.Reset(ctx, matchDir); err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
		}

		startGame := 1
		if *cont {
			next, err := store.NextGame(ctx, matchDir, plan.NumGames)
			if err != nil {
				return fmt.Errorf("resolve resume point: %w", err)
			}
			if last, err := store.LastUpdated(ctx, matchDir); err == nil && !last.IsZero() {
				log.Info("resuming match",
					slog.Int("next_game", next),
					slog.String("last_recorded", human.TimeFromBase(time.Now(), last)),
				)
			}
			startGame = next
		}
		if startGame > plan.NumGames {
			log.Info("match already complete, nothing to do")
			return nil
		}

		emitter, err := report.New(matchDir, plan.MatchName, plan.DisableSGF, cfg.LogStderrEnabled())
		if err != nil {
			return fmt.Errorf("open result emitter: %w", err)
		}
		defer emitter.Close()

		var status *statusserver.Server
		if *statusAddr != "" {
			status = statusserver.New(log, statusserver.Options{})
			go func() {
				if err := status.Run(ctx, *statusAddr); err != nil {
					log.Warn("status server stopped", slog.Any("err", err))
				}
			}()
		}

		runner := &match.Runner{
			Plan:       plan,
			Log:        log,
			StartGame:  startGame,
			RunTrace:   emitter.Trace,
			StderrSink: emitter.StderrSink,
			BeforeGame: func(seq int) {
				_ = emitter.BeginGame(seq, plan.EngineA.Name, plan.EngineB.Name)
			},
			OnResult: func(res *model.GameResult) {
				printGameLine(res, plan.NumGames)
				if err := emitter.EmitGame(res); err != nil {
					log.Error("write game result failed", slog.Int("seq", res.Seq), slog.Any("err", err))
					return
				}
				if res.Outcome.Kind != model.OutcomeUnfinished {
					if err := store.RecordGame(ctx, matchDir, res.Seq); err != nil {
						log.Error("record checkpoint failed", slog.Int("seq", res.Seq), slog.Any("err", err))
					}
				}
				if status != nil {
					status.PublishResult(res)
				}
			},
		}
		if status != nil {
			runner.OnMove = status.PublishMove
		}

		runErr := runner.Run(ctx)
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return nil
	}
}

// printGameLine prints a one-line, colour-coded progress update to stdout
// as each game finishes, independent of the durable .log artifact.
func printGameLine(res *model.GameResult, numGames int) {
	var thinkTotal time.Duration
	for _, m := range res.Moves {
		thinkTotal += m.Elapsed
	}

	winner := "draw/unscored"
	colorCode := 33 // yellow
	if c, ok := res.Outcome.Winner(); ok {
		name := res.EngineA
		if c != res.ColorA {
			name = res.EngineB
		}
		winner = name
		colorCode = 32 // green
	}

	fmt.Printf("%s game %d/%d: %s (%v of play)\n",
		style.WithS(fmt.Sprintf("[%s]", winner), colorCode),
		res.Seq, numGames,
		style.WithS(winner, colorCode),
		thinkTotal.Round(time.Second),
	)
}
