package router

import (
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starsbot/core/logger"
	tg "github.com/m3rciful/starsbot/core/telegram"
	"github.com/m3rciful/starsbot/core/telegram/middleware"
)

// CommandRouteOptions configures the admin gate in front of admin-only commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per command and per alias. Every handler is
// wrapped with recovery, request logging and, for admin commands, the admin gate.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	gate := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	entries := reg.Commands()
	routes := make([]tg.Route, 0, len(entries))
	for _, entry := range entries {
		name, handler := handlerName(entry.Name), entry.Handler
		h := wrap(func(c tele.Context) error {
			return newSummary(name).run(c, handler)
		})
		if entry.AdminOnly {
			h = gate(h)
		}
		routes = append(routes, tg.Route{Endpoint: entry.Name, Handler: h})
		for _, alias := range entry.Aliases {
			routes = append(routes, tg.Route{Endpoint: "/" + strings.TrimPrefix(alias, "/"), Handler: h})
		}
	}

	logger.LogEvent(logger.Background(), logger.TWire, slog.LevelInfo, "complete",
		slog.Int("commands", len(entries)),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// wrap applies the per-route middleware shared by every router.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.LoggerMiddleware(middleware.RecoverMiddleware(h))
}
