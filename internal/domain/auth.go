package domain

import "time"

// SubjectType identifies who an admin API token was issued to.
type SubjectType string

const (
	SubjectTypeAdmin SubjectType = "ADMIN"
)

// Token represents issued authentication token metadata.
type Token struct {
	SubjectID string
	Subject   SubjectType
	ExpiresAt time.Time
	IssuedAt  time.Time
}
