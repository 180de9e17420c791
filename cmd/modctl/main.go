package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/config"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/database"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/eventbus"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/logging"
	"github.com/ahmetcoskunkizilkaya/community-moderation/internal/services"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

const defaultFollowPoll = 2 * time.Second

func main() {
	app := cli.App{
		Name:  "modctl",
		Usage: "operator tool for community moderation data",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "community",
				Aliases:  []string{"c"},
				Usage:    "community id",
				EnvVars:  []string{"MODCTL_COMMUNITY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  "actor",
				Usage: "actor id recorded in the moderation log",
				Value: "modctl",
			},
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:      "restrict",
			Usage:     "ban, mute or restrict a user",
			ArgsUsage: "<user-id>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "type", Value: "ban", Usage: "ban, mute or restrict"},
				&cli.StringFlag{Name: "reason"},
				&cli.DurationFlag{Name: "duration", Usage: "restriction length; omit for permanent"},
				&cli.StringSliceFlag{Name: "action", Usage: "action covered by a restrict (repeatable)"},
			},
			Action: runRestrict,
		},
		{
			Name:      "revoke",
			Usage:     "end a restriction early",
			ArgsUsage: "<restriction-id>",
			Action:    runRevoke,
		},
		{
			Name:  "reports",
			Usage: "list reports",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "status", Usage: "pending, reviewing, resolved or dismissed"},
				&cli.IntFlag{Name: "limit", Value: 20},
				&cli.IntFlag{Name: "offset"},
			},
			Action: runReports,
		},
		{
			Name:  "logs",
			Usage: "print the moderation log, oldest first",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Value: 50},
				&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "keep printing new entries"},
			},
			Action: runLogs,
		},
		{
			Name:  "keywords",
			Usage: "show or edit the banned keyword list",
			Subcommands: []*cli.Command{
				{Name: "list", Action: runKeywordsList},
				{Name: "add", ArgsUsage: "<keyword>...", Action: runKeywordsEdit(true)},
				{Name: "remove", ArgsUsage: "<keyword>...", Action: runKeywordsEdit(false)},
			},
		},
	}
	app.RunAndExitOnError()
}

// env holds the services a command needs. The bus relays through redis when
// REDIS_URL is set so running servers pick up changes made here.
type env struct {
	db           *gorm.DB
	rdb          *redis.Client
	bus          *eventbus.Bus
	audit        *services.AuditLog
	settings     *services.SettingsService
	restrictions *services.RestrictionService
	reports      *services.ReportService
}

func setup(follow bool) (*env, error) {
	cfg := config.Load()
	logging.Setup(logging.ParseLevel(cfg.LogLevel))

	// Without a relay, polling is how a follower sees other processes' writes.
	poll := time.Duration(0)
	if follow {
		poll = cfg.EventBusPollInterval
		if poll <= 0 {
			poll = defaultFollowPoll
		}
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	e := &env{db: db}
	busOpts := []eventbus.Option{eventbus.WithPollInterval(poll)}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		e.rdb = redis.NewClient(opts)
		busOpts = append(busOpts, eventbus.WithRelay(eventbus.NewRedisRelay(e.rdb, "")))
	}
	e.bus = eventbus.New(busOpts...)

	opts := []services.Option{services.WithBus(e.bus)}
	e.audit = services.NewAuditLog(db, opts...)
	e.settings = services.NewSettingsService(db, e.audit, cfg.SettingsCacheSize, cfg.SettingsCacheTTL, opts...)
	e.restrictions = services.NewRestrictionService(db, e.audit, opts...)
	e.reports = services.NewReportService(db, e.audit, opts...)
	return e, nil
}

func (e *env) close() {
	e.bus.Close()
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func runRestrict(cctx *cli.Context) error {
	userID := cctx.Args().First()
	if userID == "" {
		return cli.Exit("need a user id", 2)
	}
	e, err := setup(false)
	if err != nil {
		return err
	}
	defer e.close()

	in := services.CreateRestrictionInput{
		CommunityID: cctx.String("community"),
		UserID:      userID,
		Type:        cctx.String("type"),
		Reason:      cctx.String("reason"),
		CreatedBy:   cctx.String("actor"),
		Actions:     cctx.StringSlice("action"),
	}
	if cctx.IsSet("duration") {
		d := cctx.Duration("duration")
		in.Duration = &d
	}

	id, err := e.restrictions.CreateRestriction(cctx.Context, in)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runRevoke(cctx *cli.Context) error {
	id, err := parseID(cctx.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	e, err := setup(false)
	if err != nil {
		return err
	}
	defer e.close()

	existing, err := e.restrictions.Get(cctx.Context, id)
	if err != nil {
		return err
	}
	if existing.CommunityID != cctx.String("community") {
		return services.ErrRestrictionNotFound
	}
	return e.restrictions.Revoke(cctx.Context, id, cctx.String("actor"))
}

func runReports(cctx *cli.Context) error {
	e, err := setup(false)
	if err != nil {
		return err
	}
	defer e.close()

	reports, total, err := e.reports.List(cctx.Context, cctx.String("community"),
		cctx.String("status"), cctx.Int("limit"), cctx.Int("offset"))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for i := range reports {
		if err := enc.Encode(&reports[i]); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "%d of %d reports\n", len(reports), total)
	return nil
}

func runLogs(cctx *cli.Context) error {
	e, err := setup(cctx.Bool("follow"))
	if err != nil {
		return err
	}
	defer e.close()

	communityID := cctx.String("community")
	enc := json.NewEncoder(os.Stdout)

	if !cctx.Bool("follow") {
		logs, err := e.audit.List(cctx.Context, communityID, cctx.Int("limit"))
		if err != nil {
			return err
		}
		_, err = printNew(enc, logs, newSeen())
		return err
	}

	ctx, cancel := context.WithCancel(cctx.Context)
	defer cancel()
	go func() {
		if err := e.bus.Run(ctx); err != nil {
			slog.Warn("event relay stopped", "error", err)
		}
	}()

	sub := e.audit.Subscribe(communityID, cctx.Int("limit"))
	defer sub.Cancel()

	seen := newSeen()
	for {
		select {
		case <-ctx.Done():
			return nil
		case logs, ok := <-sub.C:
			if !ok {
				select {
				case err := <-sub.Err:
					return err
				default:
					return nil
				}
			}
			if _, err := printNew(enc, logs, seen); err != nil {
				return err
			}
		}
	}
}

func runKeywordsList(cctx *cli.Context) error {
	e, err := setup(false)
	if err != nil {
		return err
	}
	defer e.close()

	settings, err := e.settings.Get(cctx.Context, cctx.String("community"))
	if err != nil {
		return err
	}
	for _, kw := range settings.BannedKeywords {
		fmt.Println(kw)
	}
	return nil
}

func runKeywordsEdit(add bool) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		if cctx.NArg() == 0 {
			return cli.Exit("need at least one keyword", 2)
		}
		e, err := setup(false)
		if err != nil {
			return err
		}
		defer e.close()

		communityID := cctx.String("community")
		settings, err := e.settings.Get(cctx.Context, communityID)
		if err != nil {
			return err
		}
		keywords := editKeywords(settings.BannedKeywords, cctx.Args().Slice(), add)
		_, err = e.settings.Update(cctx.Context, communityID, cctx.String("actor"), services.SettingsUpdate{
			BannedKeywords: &keywords,
		})
		return err
	}
}
