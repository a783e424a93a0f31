// Command manualsync reconciles tournaments against the fixture feed once,
// for a matchday or a date range, then scores finished matches.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"sportify/worker/internal/bootstrap"
	"sportify/worker/internal/config"
	"sportify/worker/internal/models"
	"sportify/worker/internal/reconcile"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	tournament int // remote id, 0 for all tracked
	matchDay   int
	from, to   time.Time
	score      bool
	teams      bool
}

func (o options) window() reconcile.Window {
	if o.matchDay > 0 {
		return reconcile.MatchDayWindow(o.matchDay)
	}
	return reconcile.RangeWindow(o.from, o.to)
}

func parseFlags(args []string, now time.Time) (options, error) {
	var (
		opts     options
		from, to string
	)

	fs := flag.NewFlagSet("manualsync", flag.ContinueOnError)
	fs.IntVar(&opts.tournament, "tournament", 0, "remote id of the tournament to sync (default: all tracked)")
	fs.IntVar(&opts.matchDay, "matchday", 0, "matchday to sync")
	fs.StringVar(&from, "from", "", "start of the date range, YYYY-MM-DD (default: 3 days ago)")
	fs.StringVar(&to, "to", "", "end of the date range, YYYY-MM-DD (default: 7 days ahead)")
	fs.BoolVar(&opts.score, "score", true, "score finished matches after syncing")
	fs.BoolVar(&opts.teams, "teams", false, "refresh tournament teams before syncing fixtures")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.matchDay < 0 {
		return opts, errors.New("-matchday must be positive")
	}
	if opts.matchDay > 0 && (from != "" || to != "") {
		return opts, errors.New("-matchday cannot be combined with -from/-to")
	}

	today := now.UTC().Truncate(24 * time.Hour)
	opts.from = today.AddDate(0, 0, -3)
	opts.to = today.AddDate(0, 0, 7)

	var err error
	if from != "" {
		if opts.from, err = time.Parse(time.DateOnly, from); err != nil {
			return opts, fmt.Errorf("invalid -from: %w", err)
		}
	}
	if to != "" {
		if opts.to, err = time.Parse(time.DateOnly, to); err != nil {
			return opts, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if opts.to.Before(opts.from) {
		return opts, errors.New("-to is before -from")
	}

	return opts, nil
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	opts, err := parseFlags(os.Args[1:], time.Now())
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid arguments")
	}

	cfg := config.MustLoad()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	redisCache := bootstrap.OpenTeamCache(cfg)
	if redisCache != nil {
		defer redisCache.Close()
	}

	reconciler := bootstrap.NewReconciler(cfg, bootstrap.NewFeed(cfg), db, redisCache)

	tournaments, err := selectTournaments(ctx, db.Tournaments, opts.tournament)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to select tournaments")
	}

	if opts.teams {
		for _, t := range tournaments {
			if _, err := reconciler.SyncTeams(ctx, t); err != nil {
				log.Error().Err(err).Int("tournament_id", t.ID).Msg("Team refresh failed")
			}
		}
	}

	results := reconciler.ReconcileAll(ctx, tournaments, opts.window())
	failed := printResults(os.Stdout, tournaments, results)

	if opts.score {
		summary, err := bootstrap.NewScorer(cfg, db).ScoreFinishedMatches(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Scoring failed")
		}
		fmt.Fprintf(os.Stdout, "\nscored %d predictions in %d matches (%d matches failed)\n",
			summary.Predictions, summary.Matches, summary.Failed)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

type tournamentSource interface {
	ListTracked(ctx context.Context) ([]*models.Tournament, error)
	GetByRemoteID(ctx context.Context, remoteID int) (*models.Tournament, error)
}

func selectTournaments(ctx context.Context, source tournamentSource, remoteID int) ([]*models.Tournament, error) {
	if remoteID == 0 {
		tracked, err := source.ListTracked(ctx)
		if err != nil {
			return nil, err
		}
		if len(tracked) == 0 {
			return nil, errors.New("no tracked tournaments")
		}
		return tracked, nil
	}

	t, err := source.GetByRemoteID(ctx, remoteID)
	if err != nil {
		return nil, fmt.Errorf("tournament with remote id %d: %w", remoteID, err)
	}
	return []*models.Tournament{t}, nil
}

// printResults writes one line per tournament and returns how many failed
func printResults(out io.Writer, tournaments []*models.Tournament, results []reconcile.Result) int {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOURNAMENT\tREMOTE\tFETCHED\tCREATED\tFINISHED\tCORRECTED\tRESCHEDULED\tTEAMS\tCONFLICTS\tSKIPPED\tERROR")

	failed := 0
	for i, res := range results {
		errText := "-"
		if res.Err != nil {
			errText = res.Err.Error()
			failed++
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			tournaments[i].Name, res.RemoteID, res.Fetched, res.Created, res.Finished,
			res.Corrected, res.Rescheduled, res.TeamsCreated, res.Conflicts, res.Skipped, errText)
	}
	_ = w.Flush()

	return failed
}
