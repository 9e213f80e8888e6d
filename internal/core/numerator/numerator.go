// Package numerator provides domain contracts for final document numbering.
//
// Final numbers come from ranges reserved by a remote authority and cached
// per (organization, kind) on the device. The allocator implementation
// lives in infrastructure/numerator.
package numerator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"fieldledger/internal/core/id"
)

// Kind is a numbered document kind.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindInvoice Kind = "invoice"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindQuote || k == KindInvoice
}

// DefaultPrefix returns the number prefix used for kind.
func (k Kind) DefaultPrefix() string {
	switch k {
	case KindQuote:
		return "DEV"
	case KindInvoice:
		return "FAC"
	default:
		return strings.ToUpper(string(k))
	}
}

// Allocator hands out final numbers.
type Allocator interface {
	// AllocateFinalNumber returns a formatted final number, or a placeholder
	// (see IsPlaceholder) when no reserved range is available.
	AllocateFinalNumber(ctx context.Context, orgID string, kind Kind) (string, error)
}

// Range is a contiguous block of numbers granted by the authority,
// Start and End inclusive.
type Range struct {
	Prefix string `json:"prefix"`
	Start  int64  `json:"startNumber"`
	End    int64  `json:"endNumber"`
}

// Reserver asks the numbering authority for a new block.
type Reserver interface {
	Reserve(ctx context.Context, orgID string, kind Kind, count int) (Range, error)
}

// ErrOffline means the authority could not be reached.
var ErrOffline = errors.New("numbering authority unreachable")

// RejectedError means the authority answered and refused the reservation.
type RejectedError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("reservation rejected (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// IsOffline reports whether err means no connectivity rather than a refusal.
func IsOffline(err error) bool {
	return errors.Is(err, ErrOffline)
}

// Phase is the state of a cached range.
type Phase string

const (
	PhaseEmpty     Phase = "EMPTY"
	PhaseHasRange  Phase = "HAS_RANGE"
	PhaseExhausted Phase = "EXHAUSTED"
)

// State is the cached range of one (organization, kind).
// NextNumber is the first unused number, EndNumber the last usable one.
type State struct {
	OrgID      string    `db:"org_id" json:"orgId"`
	Kind       Kind      `db:"kind" json:"kind"`
	Prefix     string    `db:"prefix" json:"prefix"`
	NextNumber int64     `db:"next_number" json:"nextNumber"`
	EndNumber  int64     `db:"end_number" json:"endNumber"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Phase derives the range state. A nil state is EMPTY.
func (s *State) Phase() Phase {
	if s == nil {
		return PhaseEmpty
	}
	if s.NextNumber > s.EndNumber {
		return PhaseExhausted
	}
	return PhaseHasRange
}

// Remaining returns how many numbers are left in the range.
func (s *State) Remaining() int64 {
	if s.Phase() != PhaseHasRange {
		return 0
	}
	return s.EndNumber - s.NextNumber + 1
}

// StateStore persists cached ranges. Load returns (nil, nil) when no
// range was ever cached.
type StateStore interface {
	Load(ctx context.Context, orgID string, kind Kind) (*State, error)
	Save(ctx context.Context, state State) error
}

const (
	placeholderPrefix = "TEMP-"
	numberWidth       = 6
)

var (
	yearSuffix = regexp.MustCompile(`(?:^|\D)\d{4}$`)
	hyphenRuns = regexp.MustCompile(`-{2,}`)
)

// Format builds a final number: prefix, the year unless the prefix already
// ends with a 4-digit year, then n padded to 6 digits, joined by hyphens.
//
//	Format("FAC", 7, t)       // FAC-2026-000007
//	Format("FAC-2026", 7, t)  // FAC-2026-000007
func Format(prefix string, n int64, now time.Time) string {
	parts := []string{strings.TrimRight(strings.TrimSpace(prefix), "-")}
	if !yearSuffix.MatchString(parts[0]) {
		parts = append(parts, fmt.Sprintf("%04d", now.Year()))
	}
	parts = append(parts, fmt.Sprintf("%0*d", numberWidth, n))
	s := hyphenRuns.ReplaceAllString(strings.Join(parts, "-"), "-")
	return strings.TrimPrefix(s, "-")
}

// Placeholder returns a fresh TEMP- number.
func Placeholder() string {
	return placeholderPrefix + uuid.NewString()
}

// PlaceholderFor returns the placeholder a draft document is created with.
func PlaceholderFor(docID id.ID) string {
	return placeholderPrefix + docID.String()
}

// IsPlaceholder reports whether number is a TEMP- stand-in.
func IsPlaceholder(number string) bool {
	return number == "" || strings.HasPrefix(number, placeholderPrefix)
}
