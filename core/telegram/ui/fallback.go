// Package ui declares the hooks a bot provides for updates that no command,
// callback or conversation step handles.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider is consumed by router.Build. Any handler may be nil.
type FallbackProvider interface {
	// UnknownText answers free text outside a conversation.
	UnknownText() tele.HandlerFunc
	// UnknownMedia answers photos and documents.
	UnknownMedia() tele.HandlerFunc
	// UnknownCallback answers buttons whose key is not registered.
	UnknownCallback() tele.HandlerFunc
}
