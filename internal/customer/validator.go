package customer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidName      = errors.New("name must contain only letters and spaces")
	ErrInvalidCookie    = errors.New("cookie must be a valid UUID")
	ErrAgeOutOfRange    = errors.New("age out of range")
	ErrBannerOutOfRange = errors.New("banner id out of range")
)

var nameRe = regexp.MustCompile(`^[A-Za-z\s]+$`)

// Bounds carries the configurable validation limits.
// Limits are passed explicitly at construction rather than through an
// ambient context object.
type Bounds struct {
	MinAge      int
	MaxAge      int
	MinBannerID int
	MaxBannerID int
}

// Validate checks internal consistency of the bounds themselves.
func (b Bounds) Validate() error {
	if b.MinAge < 0 {
		return fmt.Errorf("min age must be non-negative, got %d", b.MinAge)
	}
	if b.MaxAge < b.MinAge {
		return fmt.Errorf("max age (%d) must be >= min age (%d)", b.MaxAge, b.MinAge)
	}
	if b.MinBannerID < 0 {
		return fmt.Errorf("min banner id must be non-negative, got %d", b.MinBannerID)
	}
	if b.MaxBannerID < b.MinBannerID {
		return fmt.Errorf("max banner id (%d) must be >= min banner id (%d)", b.MaxBannerID, b.MinBannerID)
	}
	return nil
}

// Validator applies per-record business rules against configured bounds.
type Validator struct {
	bounds Bounds
}

// NewValidator constructs a Validator, rejecting inconsistent bounds up front.
func NewValidator(bounds Bounds) (*Validator, error) {
	if err := bounds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validation bounds: %w", err)
	}
	return &Validator{bounds: bounds}, nil
}

// Validate checks a single record. The record is expected to be normalized
// (name trimmed) before the call; see NormalizeName.
func (v *Validator) Validate(c Customer) error {
	if c.Name == "" || !nameRe.MatchString(c.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, c.Name)
	}
	if _, err := uuid.Parse(c.Cookie); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCookie, c.Cookie)
	}
	if c.Age < v.bounds.MinAge || c.Age > v.bounds.MaxAge {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrAgeOutOfRange, c.Age, v.bounds.MinAge, v.bounds.MaxAge)
	}
	if c.BannerID < v.bounds.MinBannerID || c.BannerID > v.bounds.MaxBannerID {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrBannerOutOfRange, c.BannerID, v.bounds.MinBannerID, v.bounds.MaxBannerID)
	}
	return nil
}

// NormalizeName trims surrounding whitespace from a raw name field.
func NormalizeName(raw string) string {
	return strings.TrimSpace(raw)
}
