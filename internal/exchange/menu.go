package exchange

import "fmt"

var cancelItem = MenuItem{Token: CancelToken, Label: "❌ Cancel"}

func amountMenu(o Options) []MenuItem {
	if len(o.PresetAmounts) == 0 {
		return nil
	}
	items := make([]MenuItem, 0, len(o.PresetAmounts)+1)
	for _, p := range o.PresetAmounts {
		items = append(items, MenuItem{
			Token: Token{Kind: KindAmount, Value: p.String()},
			Label: fmt.Sprintf("⭐ %s Stars", p),
		})
	}
	return append(items, cancelItem)
}

func targetMenu(o Options) []MenuItem {
	items := []MenuItem{
		{Token: Token{Kind: KindTarget, Value: string(USDT)}, Label: "💵 USDT"},
		{Token: Token{Kind: KindTarget, Value: string(TON)}, Label: "💎 TON"},
	}
	if o.FiatPayouts {
		items = append(items,
			MenuItem{Token: Token{Kind: KindTarget, Value: string(USD)}, Label: "🇺🇸 USD"},
			MenuItem{Token: Token{Kind: KindTarget, Value: string(EUR)}, Label: "🇪🇺 EUR"},
			MenuItem{Token: Token{Kind: KindTarget, Value: string(GBP)}, Label: "🇬🇧 GBP"},
		)
	}
	return append(items, cancelItem)
}

func networkMenu() []MenuItem {
	items := make([]MenuItem, 0, len(USDTNetworks)+1)
	for _, n := range USDTNetworks {
		items = append(items, MenuItem{Token: Token{Kind: KindNetwork, Value: string(n)}, Label: "🔗 " + string(n)})
	}
	return append(items, cancelItem)
}

func methodMenu() []MenuItem {
	items := make([]MenuItem, 0, len(Methods)+1)
	for _, m := range Methods {
		items = append(items, MenuItem{Token: Token{Kind: KindMethod, Value: string(m)}, Label: "🏦 " + m.Label()})
	}
	return append(items, cancelItem)
}

func confirmMenu() []MenuItem {
	return []MenuItem{
		{Token: ConfirmToken, Label: "✅ Confirm"},
		cancelItem,
	}
}

func menuContains(menu []MenuItem, tok Token) bool {
	for _, item := range menu {
		if item.Token == tok {
			return true
		}
	}
	return false
}
