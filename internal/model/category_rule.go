package model

import (
	"time"
)

// MatchType describes how a rule's pattern is compared against transaction
// descriptions.
type MatchType string

// Match type constants.
const (
	// MatchExact requires the whole normalised description to equal the pattern.
	MatchExact MatchType = "exact"
	// MatchContains requires the description to contain the pattern as a substring.
	MatchContains MatchType = "contains"
)

// ValidMatchType reports whether m is a supported match type.
func ValidMatchType(m MatchType) bool {
	return m == MatchExact || m == MatchContains
}

// CategoryRule maps a description pattern to a category. Rules are consumed
// by the categorisation engine when classifying new transactions; this
// subsystem only creates them from accepted suggestions and tracks usage.
type CategoryRule struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Pattern    string    `json:"pattern"`
	MatchType  MatchType `json:"match_type"`
	ID         int64     `json:"id"`
	CategoryID int64     `json:"category_id"`
	Confidence float64   `json:"confidence"`
	UseCount   int       `json:"use_count"`
	IsActive   bool      `json:"is_active"`
}

// Category represents a transaction category owned by the wider application.
type Category struct {
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ID          int64     `json:"id"`
	IsActive    bool      `json:"is_active"`
}
