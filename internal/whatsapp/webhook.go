package whatsapp

import (
	"strconv"
	"time"
)

// WebhookPayload mirrors the Meta webhook envelope for message events.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

type Profile struct {
	Name string `json:"name"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // unix seconds as a string
	Type      string `json:"type"`
	Text      *Text  `json:"text,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// Status entries arrive for delivery/read receipts; the bot ignores them.
type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// InboundMessage is the transport-neutral event handed to the core.
type InboundMessage struct {
	From        string
	DisplayName string
	Text        string
	MessageID   string
	ReceivedAt  time.Time
}

// IsMessageEvent reports whether the payload carries at least one text message.
func (p *WebhookPayload) IsMessageEvent() bool {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type == "text" && msg.Text != nil {
					return true
				}
			}
		}
	}
	return false
}

// InboundMessages extracts every text message from the payload, pairing each
// with the sender's profile name when the contact block carries one.
func (p *WebhookPayload) InboundMessages() []InboundMessage {
	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}
				received := time.Now()
				if secs, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					received = time.Unix(secs, 0)
				}
				out = append(out, InboundMessage{
					From:        msg.From,
					DisplayName: names[msg.From],
					Text:        msg.Text.Body,
					MessageID:   msg.ID,
					ReceivedAt:  received,
				})
			}
		}
	}
	return out
}
