// Package commands defines slash command metadata shared by the registry and routers.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command definition.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are routed through the admin check and never shown in the menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are alternative names, with or without the leading slash.
	Aliases []string
}

// Public reports whether the command belongs in the bot's command menu.
func (c Command) Public() bool {
	return !c.Hidden && !c.AdminOnly
}
