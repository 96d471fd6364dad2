package keyboard

import (
	"strings"
	"testing"
)

func TestGrid(t *testing.T) {
	markup := Grid(2,
		Button{Label: "BEP20", Key: "network", Payload: "BEP20"},
		Button{Label: "TRC20", Key: "network", Payload: "TRC20"},
		Button{Label: "ERC20", Key: "network", Payload: "ERC20"},
	)
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 || len(markup.InlineKeyboard[1]) != 1 {
		t.Fatalf("rows = %+v", markup.InlineKeyboard)
	}
	btn := markup.InlineKeyboard[0][1]
	if btn.Text != "TRC20" || btn.Unique != "network" || !strings.Contains(btn.Data, "TRC20") {
		t.Fatalf("button = %+v", btn)
	}
}

func TestGridOnePerRow(t *testing.T) {
	for _, perRow := range []int{0, 1} {
		markup := Grid(perRow, Button{Label: "a", Key: "x"}, Button{Label: "b", Key: "y"})
		if len(markup.InlineKeyboard) != 2 {
			t.Fatalf("perRow %d: rows = %d, want 2", perRow, len(markup.InlineKeyboard))
		}
	}
}

func TestGridEmpty(t *testing.T) {
	if rows := Grid(3).InlineKeyboard; len(rows) != 0 {
		t.Fatalf("rows = %v", rows)
	}
}
