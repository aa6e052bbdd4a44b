package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rmoroz/gcalcache/internal/api"
	"github.com/rmoroz/gcalcache/internal/model"
	"github.com/rmoroz/gcalcache/internal/notify"
	"github.com/rmoroz/gcalcache/internal/store"
	"github.com/rmoroz/gcalcache/internal/store/migrations"
	gcsync "github.com/rmoroz/gcalcache/internal/sync"
	"github.com/rmoroz/gcalcache/pkg/clock"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := NewConfig(ctx)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := mustLogger(conf.Dev)

	var loc *time.Location
	if conf.DefaultTimezone != "" {
		loc, err = time.LoadLocation(conf.DefaultTimezone)
		if err != nil {
			log.Error("Invalid default timezone", "timezone", conf.DefaultTimezone, "error", err)
			os.Exit(1)
		}
	}

	var root store.Store
	var boltDB *store.BoltDB
	if conf.DBPath != "" {
		boltDB, err = store.NewBoltDB(conf.DBPath)
		if err != nil {
			log.Error("Failed to open database", "error", err)
			os.Exit(1)
		}
		defer boltDB.Close()

		if err := migrations.RunMigrations(boltDB.DB(), log); err != nil {
			log.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		root = boltDB.Blob("sync_state")
	} else {
		log.Warn("No DB path configured; cache is in-memory only")
		root = store.NewInMemoryStore()
	}

	google, err := api.NewGoogle(ctx, conf.GoogleCredentialsPath)
	if err != nil {
		log.Error("Failed to create calendar client", "error", err)
		os.Exit(1)
	}

	clk := clock.New()

	calendarList := gcsync.NewCalendarListSyncManager(google, root, log)
	eventManagers := make([]*gcsync.EventSyncManager, 0, len(conf.CalendarIDs))
	eventStores := make([]*gcsync.EventStoreService, 0, len(conf.CalendarIDs))
	for _, id := range conf.CalendarIDs {
		m := gcsync.NewEventSyncManager(google, root, id, clk, log)
		if conf.EventSearch != "" {
			m = m.WithTemplate(api.ListEventsRequest{Search: conf.EventSearch})
		}
		eventManagers = append(eventManagers, m)
		eventStores = append(eventStores, gcsync.NewEventStoreService(google, root, id, log))
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		syncLoop(ctx, calendarList, eventManagers, conf.SyncInterval, log.With("component", "schedule").With("action", "sync"))
	}()

	if len(conf.NotifyChatIDs) > 0 {
		if boltDB == nil {
			log.Warn("Notifier requires a database; skipping")
		} else {
			sender, err := notify.NewTelegramSender(conf.TelegramToken)
			if err != nil {
				log.Error("Failed to create telegram sender", "error", err)
				os.Exit(1)
			}
			notifier := notify.NewNotifier(
				combinedEvents{stores: eventStores},
				sender, boltDB, clk,
				conf.NotifyChatIDs, conf.NotifyLookahead, loc, log)

			wg.Add(1)
			go func() {
				defer wg.Done()
				notifyLoop(ctx, notifier, conf.NotifyInterval, log.With("component", "schedule").With("action", "notify"))
			}()
		}
	}

	wg.Wait()
	log.Info("Stopped")
}

func syncLoop(ctx context.Context, calendars *gcsync.CalendarListSyncManager, events []*gcsync.EventSyncManager, delay time.Duration, log *slog.Logger) {
	defer func() {
		log.InfoContext(ctx, "Stopped sync schedule")
	}()

	log.InfoContext(ctx, "Starting sync schedule")
	runSyncPass(ctx, calendars, events, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			runSyncPass(ctx, calendars, events, log)
		}
	}
}

func runSyncPass(ctx context.Context, calendars *gcsync.CalendarListSyncManager, events []*gcsync.EventSyncManager, log *slog.Logger) {
	if err := calendars.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.ErrorContext(ctx, "Error syncing calendar list", "error", err)
	}
	for _, m := range events {
		if err := m.Run(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.ErrorContext(ctx, "Error syncing events", "error", err)
		}
	}
}

func notifyLoop(ctx context.Context, notifier *notify.Notifier, delay time.Duration, log *slog.Logger) {
	defer func() {
		log.InfoContext(ctx, "Stopped notify schedule")
	}()

	log.InfoContext(ctx, "Starting notify schedule")
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			if err := notifier.NotifyUpcoming(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.ErrorContext(ctx, "Error notifying upcoming events", "error", err)
			}
		}
	}
}

// combinedEvents merges the mirrored events of all configured calendars
// into one start-ordered listing for the notifier.
type combinedEvents struct {
	stores []*gcsync.EventStoreService
}

func (c combinedEvents) ListEvents(start time.Time, end *time.Time) ([]model.Event, error) {
	var all []model.Event
	for _, s := range c.stores {
		events, err := s.ListEvents(start, end)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Normalize(time.UTC).Before(all[j].Start.Normalize(time.UTC))
	})
	return all, nil
}

func mustLogger(dev bool) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	if dev {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler)
}
