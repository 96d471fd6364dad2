package exchange

import (
	"fmt"
	"strings"
)

const (
	msgEntryHint     = "👋 Send /start to begin."
	msgChooseOption  = "👆 Please choose one of the options below."
	msgStaleButton   = "This button is no longer active."
	msgCancelled     = "❌ Request cancelled. Send /start to begin again."
	msgGatewayFailed = "⚠️ We could not create your payout right now. Please press Confirm again in a moment, or Cancel to start over."
)

func welcomeText(name string, o Options) string {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	targets := "USDT or TON"
	if o.FiatPayouts {
		targets = "USDT, TON, USD, EUR or GBP"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🌟 Welcome, %s!\n\n", name)
	fmt.Fprintf(&b, "Sell your Telegram Stars for %s.\n\n", targets)
	fmt.Fprintf(&b, "💰 Rate: %s Stars = %s USDT\n", o.Rates.StarsPerUnit, o.Rates.USDTPerUnit.StringFixed(2))
	fmt.Fprintf(&b, "📉 Minimum: %s Stars\n", o.MinAmount)
	fmt.Fprintf(&b, "📈 Maximum: %s Stars", o.MaxAmount)
	return b.String()
}

func amountText(o Options) string {
	if len(o.PresetAmounts) > 0 {
		return fmt.Sprintf("How many Stars do you want to sell? Pick an amount or type one between %s and %s.", o.MinAmount, o.MaxAmount)
	}
	return fmt.Sprintf("How many Stars do you want to sell? Enter an amount between %s and %s.", o.MinAmount, o.MaxAmount)
}

func targetText(s Session, o Options) string {
	return fmt.Sprintf("⭐ %s Stars ≈ %s USDT\n\nChoose your payout currency:", s.Amount, o.Rates.ComputeUSDT(s.Amount).StringFixed(2))
}

func quoteText(s Session) string {
	if s.Quote == nil {
		return ""
	}
	if s.Target == TON {
		return fmt.Sprintf("💱 You will receive %s worth of TON.", s.Quote)
	}
	return fmt.Sprintf("💱 You will receive %s.", s.Quote)
}

func routeText(s Session) string {
	if s.Target.IsFiat() {
		return fmt.Sprintf("Choose how you want to receive %s:", s.Target)
	}
	return "Choose the USDT network:"
}

func detailsText(s Session) string {
	switch {
	case s.Target.IsFiat():
		return fmt.Sprintf("📬 Send your %s payout details (email, IBAN, card or account number):", s.Method.Label())
	case s.Target == TON:
		return "📬 Send your TON wallet address (starts with EQ or kQ):"
	}
	return fmt.Sprintf("📬 Send your USDT (%s) wallet address:", s.Network)
}

// destinationLine renders the network or rail line shared by summaries.
func destinationLine(s Session) string {
	if s.Target.IsFiat() {
		return "🏦 Method: " + s.Method.Label()
	}
	return "🔗 Network: " + string(s.Network)
}

func confirmText(s Session) string {
	var b strings.Builder
	b.WriteString("📝 Please confirm your request:\n\n")
	fmt.Fprintf(&b, "⭐ Stars: %s\n", s.Amount)
	if s.Quote != nil {
		fmt.Fprintf(&b, "💵 You receive: %s", s.Quote)
		if s.Target == TON {
			b.WriteString(" in TON")
		}
		b.WriteString("\n")
	}
	b.WriteString(destinationLine(s) + "\n")
	fmt.Fprintf(&b, "📬 Details: %s\n\n", s.Details)
	b.WriteString("Press Confirm to submit.")
	return b.String()
}

func receivedText(s Session) string {
	var b strings.Builder
	b.WriteString("✅ Request received.\n\n")
	b.WriteString("💫 To complete the exchange:\n")
	fmt.Fprintf(&b, "1️⃣ Send %s Stars as instructed by the admin.\n", s.Amount)
	b.WriteString("2️⃣ Keep the payment confirmation until the payout arrives.\n\n")
	b.WriteString("📨 The admin will verify your request and process the payout manually.")
	return b.String()
}

func gatewayText(s Session) string {
	var b strings.Builder
	b.WriteString("✅ Your payout order was created.\n\n")
	fmt.Fprintf(&b, "🆔 Order: %s\n", s.OrderID)
	if s.Transaction != nil {
		if s.Transaction.ID != "" {
			fmt.Fprintf(&b, "🧾 Transaction: %s\n", s.Transaction.ID)
		}
		if s.Transaction.Address != "" {
			fmt.Fprintf(&b, "📥 Deposit address: %s\n", s.Transaction.Address)
		}
		if s.Transaction.PayURL != "" {
			fmt.Fprintf(&b, "🔗 Payment page: %s\n", s.Transaction.PayURL)
		}
	}
	b.WriteString("\nFollow the payment page to complete the transfer.")
	return b.String()
}

// AdminSummary renders the fixed-format hand-off message for the admin.
func AdminSummary(s Session) string {
	var b strings.Builder
	b.WriteString("📩 New Stars sell request\n\n")
	user := s.DisplayName
	if s.Username != "" {
		user = fmt.Sprintf("@%s (%s)", s.Username, s.DisplayName)
	}
	fmt.Fprintf(&b, "👤 User: %s\n", strings.TrimSpace(user))
	fmt.Fprintf(&b, "🆔 User ID: %d\n", s.UserID)
	fmt.Fprintf(&b, "⭐ Stars: %s\n", s.Amount)
	if s.Quote != nil {
		fmt.Fprintf(&b, "💵 Payout: %s\n", s.Quote)
	}
	fmt.Fprintf(&b, "🎯 Asset: %s\n", s.Target)
	b.WriteString(destinationLine(s) + "\n")
	fmt.Fprintf(&b, "📬 Details: %s\n", s.Details)
	fmt.Fprintf(&b, "🧾 Order: %s", s.OrderID)
	return b.String()
}
