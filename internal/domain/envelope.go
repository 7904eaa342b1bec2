package domain

import "time"

// OutboundEnvelope is the rendered form of a relay or notice.
type OutboundEnvelope struct {
	AuthorName    string
	AuthorIconURL string
	Title         string
	Body          string
	ImageURL      string
	Color         int
	Timestamp     time.Time
}
