package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
	tghelpers "github.com/m3rciful/starsbot/core/telegram/helpers"
	"github.com/m3rciful/starsbot/internal/exchange"
)

// ErrAdminUnbound is returned until the sink is bound to a running bot.
var ErrAdminUnbound = errors.New("admin sink: bot not bound")

// chatHandle addresses a public chat by its @username.
type chatHandle string

func (h chatHandle) Recipient() string { return string(h) }

// AdminSink delivers messages to the operator chat configured by id or @username.
type AdminSink struct {
	mu  sync.RWMutex
	api tele.API
	to  tele.Recipient
}

// NewAdminSink resolves the admin recipient. A numeric id wins over a handle.
func NewAdminSink(adminID int64, adminChat string) (*AdminSink, error) {
	var to tele.Recipient
	switch handle := strings.TrimSpace(adminChat); {
	case adminID != 0:
		to = tele.ChatID(adminID)
	case handle != "":
		if !strings.HasPrefix(handle, "@") {
			handle = "@" + handle
		}
		to = chatHandle(handle)
	default:
		return nil, errors.New("admin sink: neither admin id nor admin chat configured")
	}
	return &AdminSink{to: to}, nil
}

// Bind attaches the Telegram API once the bot is running.
func (s *AdminSink) Bind(api tele.API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

// Recipient returns the resolved admin chat.
func (s *AdminSink) Recipient() tele.Recipient {
	return s.to
}

func (s *AdminSink) bound() (tele.API, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.api == nil {
		return nil, ErrAdminUnbound
	}
	return s.api, nil
}

// NotifyAdmin sends text to the admin chat through the outbound dispatcher.
func (s *AdminSink) NotifyAdmin(ctx context.Context, text string) error {
	api, err := s.bound()
	if err == nil {
		err = tghelpers.SendTo(ctx, api, s.to, text)
	}
	logger.LogEvent(ctx, logger.TG, levelFor(err), "admin.notify",
		slog.String("to", s.to.Recipient()),
		slog.String("status", logger.Status(err)),
	)
	if err != nil {
		return fmt.Errorf("notify admin: %w", err)
	}
	return nil
}

// Forward copies a user's message (e.g. a payment screenshot) to the admin chat.
func (s *AdminSink) Forward(ctx context.Context, msg *tele.Message) error {
	if msg == nil {
		return errors.New("admin sink: nil message")
	}
	api, err := s.bound()
	if err == nil {
		err = tghelpers.Deliver(ctx, "forward.admin", "forwardMessage", func() error {
			_, ferr := api.Forward(s.to, msg)
			return ferr
		})
	}
	logger.LogEvent(ctx, logger.TG, levelFor(err), "admin.forward",
		slog.String("to", s.to.Recipient()),
		slog.String("status", logger.Status(err)),
	)
	return err
}

func levelFor(err error) slog.Level {
	if err != nil {
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// Lister returns recently completed requests, newest first.
type Lister interface {
	Recent(ctx context.Context, limit int) ([]exchange.Request, error)
}

// RequestsCommand lists recent requests for the admin.
func RequestsCommand(l Lister, limit int) tele.HandlerFunc {
	return func(c tele.Context) error {
		if l == nil {
			return tghelpers.SendText(c, "Request archive is disabled.")
		}
		reqs, err := l.Recent(tghelpers.BuildContext(c), limit)
		if err != nil {
			_ = tghelpers.SendText(c, "⚠️ Could not load requests, see logs.")
			return err
		}
		return tghelpers.SendText(c, formatRequests(reqs))
	}
}

func formatRequests(reqs []exchange.Request) string {
	if len(reqs) == 0 {
		return "No requests yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗂 Last %d requests:\n", len(reqs))
	for _, r := range reqs {
		route := string(r.Network)
		if r.Method != "" {
			route = r.Method.Label()
		}
		who := r.DisplayName
		if r.Username != "" {
			who = "@" + r.Username
		}
		fmt.Fprintf(&b, "\n• %s · %s (%d)\n  %s Stars → %s %s via %s · %s\n",
			r.CreatedAt.UTC().Format("2006-01-02 15:04"),
			who, r.UserID,
			r.Stars, r.Payout.StringFixed(2), r.Currency, route, r.Action,
		)
		if r.GatewayID != "" {
			fmt.Fprintf(&b, "  gateway id: %s\n", r.GatewayID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
