package exchange

import "strings"

// Currency is a payout currency or asset.
type Currency string

const (
	USDT Currency = "USDT"
	TON  Currency = "TON"
	USD  Currency = "USD"
	EUR  Currency = "EUR"
	GBP  Currency = "GBP"
)

// IsFiat reports whether payouts in c go through a fiat rail.
func (c Currency) IsFiat() bool {
	switch c {
	case USD, EUR, GBP:
		return true
	}
	return false
}

// Network is the blockchain a crypto payout is sent on.
type Network string

const (
	BEP20      Network = "BEP20"
	TRC20      Network = "TRC20"
	ERC20      Network = "ERC20"
	NetworkTON Network = "TON"
)

// USDTNetworks lists the networks offered for USDT payouts, in menu order.
var USDTNetworks = []Network{BEP20, TRC20, ERC20}

// Method is a fiat payout rail.
type Method string

const (
	MethodWise    Method = "wise"
	MethodRevolut Method = "revolut"
	MethodPayPal  Method = "paypal"
	MethodBank    Method = "bank"
	MethodSkrill  Method = "skrill"
	MethodCard    Method = "card"
	MethodPayeer  Method = "payeer"
	MethodAlipay  Method = "alipay"
)

// Methods lists the fiat payout rails, in menu order.
var Methods = []Method{
	MethodWise, MethodRevolut, MethodPayPal, MethodBank,
	MethodSkrill, MethodCard, MethodPayeer, MethodAlipay,
}

var methodLabels = map[Method]string{
	MethodWise:    "Wise",
	MethodRevolut: "Revolut",
	MethodPayPal:  "PayPal",
	MethodBank:    "Bank Transfer",
	MethodSkrill:  "Skrill/Neteller",
	MethodCard:    "Card",
	MethodPayeer:  "Payeer",
	MethodAlipay:  "Alipay",
}

// Label returns the human readable rail name.
func (m Method) Label() string {
	if l, ok := methodLabels[m]; ok {
		return l
	}
	return string(m)
}

// Step is the position of a user in the conversation.
type Step string

const (
	StepIdle     Step = "idle"
	StepAmount   Step = "awaiting_amount"
	StepTarget   Step = "awaiting_target"
	StepRoute    Step = "awaiting_network_or_method"
	StepDetails  Step = "awaiting_payout_details"
	StepConfirm  Step = "awaiting_confirmation"
	StepTerminal Step = "terminal"
)

// TokenKind identifies which menu a selection belongs to.
type TokenKind string

const (
	KindAmount  TokenKind = "amount"
	KindTarget  TokenKind = "target"
	KindNetwork TokenKind = "network"
	KindMethod  TokenKind = "method"
	KindConfirm TokenKind = "confirm"
	KindCancel  TokenKind = "cancel"
)

// TokenKinds is the closed set of menu kinds; transports register one callback per kind.
var TokenKinds = []TokenKind{KindAmount, KindTarget, KindNetwork, KindMethod, KindConfirm, KindCancel}

// Token is a typed menu selection. Value is only meaningful together with Kind.
type Token struct {
	Kind  TokenKind
	Value string
}

var (
	// ConfirmToken submits the request.
	ConfirmToken = Token{Kind: KindConfirm, Value: "yes"}
	// CancelToken abandons the conversation.
	CancelToken = Token{Kind: KindCancel, Value: "cancel"}
)

// String renders the token as kind:value for logs.
func (t Token) String() string {
	if t.Value == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + ":" + t.Value
}

// ParseToken turns a raw callback key and payload into a Token.
// Only the kind is checked here; whether the value fits the user's current menu is decided by the Machine.
func ParseToken(kind, value string) (Token, error) {
	k := TokenKind(strings.ToLower(strings.TrimSpace(kind)))
	for _, known := range TokenKinds {
		if k == known {
			return Token{Kind: k, Value: strings.TrimSpace(value)}, nil
		}
	}
	return Token{}, rejectf(ReasonStaleSelection, "This button is no longer active.")
}

// MenuItem is one selectable option of a prompt.
type MenuItem struct {
	Token Token
	Label string
}

// Prompt is an outbound message for a user, optionally carrying a menu.
type Prompt struct {
	UserID int64
	Text   string
	Menu   []MenuItem
}

// EventKind enumerates inbound events.
type EventKind int

const (
	EventEntry EventKind = iota + 1
	EventSelection
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventEntry:
		return "entry"
	case EventSelection:
		return "selection"
	case EventText:
		return "text"
	}
	return "unknown"
}

// Event is an inbound user action, already stripped of transport details.
type Event struct {
	Kind        EventKind
	UserID      int64
	DisplayName string
	Username    string
	Token       Token
	Text        string
}

// EntryCommand builds the event that starts (or restarts) a conversation.
func EntryCommand(userID int64, displayName string) Event {
	return Event{Kind: EventEntry, UserID: userID, DisplayName: displayName}
}

// MenuSelection builds a button press event.
func MenuSelection(userID int64, tok Token) Event {
	return Event{Kind: EventSelection, UserID: userID, Token: tok}
}

// TextInput builds a free text event.
func TextInput(userID int64, text string) Event {
	return Event{Kind: EventText, UserID: userID, Text: text}
}
