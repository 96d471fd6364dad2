// Package keyboard builds inline keyboards for menus.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline button. Key is the callback unique name the router
// dispatches on and Payload its data.
type Button struct {
	Label   string
	Key     string
	Payload string
}

// Grid lays buttons out left to right with at most perRow per row.
// perRow <= 0 puts every button on its own row.
func Grid(perRow int, buttons ...Button) *tele.ReplyMarkup {
	if perRow <= 0 {
		perRow = 1
	}
	markup := &tele.ReplyMarkup{}
	var row []tele.InlineButton
	for _, b := range buttons {
		row = append(row, *markup.Data(b.Label, b.Key, b.Payload).Inline())
		if len(row) == perRow {
			markup.InlineKeyboard = append(markup.InlineKeyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, row)
	}
	return markup
}
