// Package transport defines the channel-neutral inbound message shape.
// Concrete adapters (whatsapp, telegram) translate their wire formats into
// Updates and push them to the router's channel.
package transport

// Update is one inbound text message.
type Update struct {
	// From is the sender's destination address ("919900112233" for
	// WhatsApp, "tg:12345" for Telegram). Replies go back to it.
	From string
	// Name is the sender's display name when the channel provides one.
	Name string
	Text string
}
