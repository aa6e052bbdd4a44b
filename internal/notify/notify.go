// Package notify sends a digest of upcoming calendar events to Telegram
// chats, de-duplicated so an unchanged digest is not resent.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rmoroz/gcalcache/internal/model"
	"github.com/rmoroz/gcalcache/internal/store"
)

//go:generate go run go.uber.org/mock/mockgen@latest -package mocks -destination mocks/notify.go . Events,Sender,StateStore

type (
	Events interface {
		ListEvents(start time.Time, end *time.Time) ([]model.Event, error)
	}

	Sender interface {
		Send(ctx context.Context, chatID int64, text string) error
	}

	StateStore interface {
		GetNotificationState(chatID int64) (store.NotificationState, bool, error)
		PutNotificationState(state store.NotificationState) error
	}

	Clock interface {
		Now() time.Time
	}

	Notifier struct {
		events Events
		sender Sender
		states StateStore
		clock  Clock

		chatIDs   []int64
		lookahead time.Duration
		loc       *time.Location

		log *slog.Logger
		mx  sync.Mutex
	}
)

func NewNotifier(
	events Events,
	sender Sender,
	states StateStore,
	clk Clock,
	chatIDs []int64,
	lookahead time.Duration,
	loc *time.Location,
	log *slog.Logger,
) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	return &Notifier{
		events:    events,
		sender:    sender,
		states:    states,
		clock:     clk,
		chatIDs:   chatIDs,
		lookahead: lookahead,
		loc:       loc,

		log: log.With("component", "notify"),
	}
}

// NotifyUpcoming sends the digest of events active within the lookahead
// window to every configured chat. A chat whose last sent digest matches is
// skipped; a send failure for one chat does not block the others.
func (n *Notifier) NotifyUpcoming(ctx context.Context) error {
	n.mx.Lock()
	defer n.mx.Unlock()

	now := n.clock.Now()
	end := now.Add(n.lookahead)
	events, err := n.events.ListEvents(now, &end)
	if err != nil {
		return fmt.Errorf("list upcoming events: %w", err)
	}
	if len(events) == 0 {
		n.log.DebugContext(ctx, "No upcoming events")
		return nil
	}

	text := renderDigest(events, n.loc)
	digest := digestHash(text)

	for _, chatID := range n.chatIDs {
		state, found, err := n.states.GetNotificationState(chatID)
		if err != nil {
			return fmt.Errorf("get notification state for chatID=%d: %w", chatID, err)
		}
		if found && state.Digest == digest {
			continue
		}

		if err := n.sender.Send(ctx, chatID, text); err != nil {
			n.log.ErrorContext(ctx, "Failed to send digest",
				"chat_id", chatID,
				"error", err)
			continue
		}

		if err := n.states.PutNotificationState(store.NotificationState{
			ChatID: chatID,
			SentAt: now,
			Digest: digest,
		}); err != nil {
			return fmt.Errorf("put notification state for chatID=%d: %w", chatID, err)
		}
	}

	return nil
}

func renderDigest(events []model.Event, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Upcoming events:\n")
	for _, ev := range events {
		summary := ev.Summary
		if summary == "" {
			summary = "(no title)"
		}
		if ev.Start.IsAllDay() {
			fmt.Fprintf(&b, "• %s — %s (all day)\n", ev.Start.Date(), summary)
			continue
		}
		start := ev.Start.Normalize(loc).In(loc)
		fmt.Fprintf(&b, "• %s — %s\n", start.Format("Jan 2 15:04"), summary)
	}
	return b.String()
}

func digestHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
