package helpers

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const outboundKey = "outbound"

// Outbound counts the replies an update produced. Sends are counted when
// queued, so the totals are final once the handler returns.
type Outbound struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// ResetOutbound installs fresh counters on the update.
func ResetOutbound(c tele.Context) *Outbound {
	o := &Outbound{}
	c.Set(outboundKey, o)
	return o
}

// CountOutbound records one reply; markup marks that it carried a keyboard.
// It is a no-op when no counters are installed.
func CountOutbound(c tele.Context, markup bool) {
	o, _ := c.Get(outboundKey).(*Outbound)
	if o == nil {
		return
	}
	o.messages.Add(1)
	if markup {
		o.keyboard.Store(true)
	}
}

// OutboundCounts returns the reply count and whether any reply had a keyboard.
func OutboundCounts(c tele.Context) (messages int, keyboard bool) {
	o, _ := c.Get(outboundKey).(*Outbound)
	if o == nil {
		return 0, false
	}
	return int(o.messages.Load()), o.keyboard.Load()
}
