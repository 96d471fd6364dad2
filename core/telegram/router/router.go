// Package router turns a command and callback registry into telebot routes.
package router

import (
	tg "github.com/m3rciful/starsbot/core/telegram"
	"github.com/m3rciful/starsbot/core/telegram/ui"
)

// Build returns every route of a bot: commands and aliases, the callback
// dispatcher and the text and media handlers. fb may be nil.
func Build(reg *tg.Registry, conv Conversation, fb ui.FallbackProvider, opts CommandRouteOptions) []tg.Route {
	var cbOpts CallbackOptions
	var textOpts TextOptions
	if fb != nil {
		cbOpts.NotFound = fb.UnknownCallback()
		textOpts = TextOptions{UnknownText: fb.UnknownText(), UnknownMedia: fb.UnknownMedia()}
	}
	routes := CommandRoutes(reg, opts)
	routes = append(routes, CallbackRoute(reg, cbOpts))
	return append(routes, TextRoutes(conv, reg, textOpts)...)
}
