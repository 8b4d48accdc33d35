package models

import (
	"strconv"
	"time"
)

type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
)

// Subscriber is a person receiving alerts for a region. Exactly one channel
// identity (telegram or phone) is populated. Unsubscribing flips Subscribed
// off; rows are never deleted so dispatch history stays attributable.
type Subscriber struct {
	ID          string    `json:"id"`
	TelegramID  int64     `json:"telegram_id,omitempty"`  // 0 when the subscriber uses a phone channel
	PhoneNumber string    `json:"phone_number,omitempty"` // empty when the subscriber uses telegram
	Region      string    `json:"region"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Subscribed  bool      `json:"subscribed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Channels lists the deliverable channels for this subscriber with the
// identity each provider needs.
func (s *Subscriber) Channels() map[Channel]string {
	out := make(map[Channel]string, 1)
	if s.TelegramID != 0 {
		out[ChannelTelegram] = strconv.FormatInt(s.TelegramID, 10)
	}
	if s.PhoneNumber != "" {
		out[ChannelWhatsApp] = s.PhoneNumber
	}
	return out
}
