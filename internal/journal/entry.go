// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MyJournal Contributors

// Package journal manages journal entries owned by principals.
package journal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("entry not found")

// Validation limits for entries.
const (
	MaxMoodLength    = 64
	MaxTextLength    = 20000
	MaxWeatherLength = 200
)

// PointType is the GeoJSON geometry type of an entry location.
const PointType = "Point"

// Point is a GeoJSON point. Coordinates are [longitude, latitude].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint returns a validated point.
func NewPoint(lon, lat float64) (*Point, error) {
	p := &Point{Type: PointType, Coordinates: [2]float64{lon, lat}}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Lon returns the longitude.
func (p *Point) Lon() float64 { return p.Coordinates[0] }

// Lat returns the latitude.
func (p *Point) Lat() float64 { return p.Coordinates[1] }

// Validate checks the geometry type and coordinate ranges.
func (p *Point) Validate() error {
	if p.Type != PointType {
		return invalid("location", fmt.Sprintf("type must be %q", PointType))
	}
	for _, v := range p.Coordinates {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid("location", "coordinates must be finite numbers")
		}
	}
	if p.Lon() < -180 || p.Lon() > 180 {
		return invalid("location", "longitude out of range")
	}
	if p.Lat() < -90 || p.Lat() > 90 {
		return invalid("location", "latitude out of range")
	}
	return nil
}

// Entry is a single journal entry. OwnerID is set at creation and never changes.
type Entry struct {
	ID        ulid.ULID `json:"id"`
	OwnerID   ulid.ULID `json:"owner_id"`
	Date      time.Time `json:"date"`
	Mood      string    `json:"mood"`
	Text      string    `json:"text"`
	Location  *Point    `json:"location,omitempty"`
	Weather   string    `json:"weather,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntry holds the fields supplied when writing an entry.
// A zero Date means now.
type NewEntry struct {
	Date     time.Time `json:"date"`
	Mood     string    `json:"mood"`
	Text     string    `json:"text"`
	Location *Point    `json:"location,omitempty"`
	Weather  string    `json:"weather,omitempty"`
}

// EntryPatch describes a modification. Empty Mood or Text keep the previous
// value; nil pointers leave the field unchanged.
type EntryPatch struct {
	Mood     string     `json:"mood"`
	Text     string     `json:"text"`
	Date     *time.Time `json:"date,omitempty"`
	Location *Point     `json:"location,omitempty"`
	Weather  *string    `json:"weather,omitempty"`
}

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return oops.Code("JOURNAL_INVALID_ENTRY").
		With("field", field).
		Wrap(&ValidationError{Field: field, Message: message})
}

// Validate checks that the entry fields are acceptable for storage.
func (e *Entry) Validate() error {
	if err := validateText("mood", e.Mood, MaxMoodLength); err != nil {
		return err
	}
	if err := validateText("text", e.Text, MaxTextLength); err != nil {
		return err
	}
	if len(e.Weather) > MaxWeatherLength {
		return invalid("weather", fmt.Sprintf("exceeds maximum length of %d", MaxWeatherLength))
	}
	if e.Location != nil {
		if err := e.Location.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply merges a patch into a copy of the entry.
func (e *Entry) Apply(patch EntryPatch) *Entry {
	out := *e
	if mood := strings.TrimSpace(patch.Mood); mood != "" {
		out.Mood = mood
	}
	if text := strings.TrimSpace(patch.Text); text != "" {
		out.Text = text
	}
	if patch.Date != nil {
		out.Date = patch.Date.UTC()
	}
	if patch.Location != nil {
		loc := *patch.Location
		out.Location = &loc
	}
	if patch.Weather != nil {
		out.Weather = *patch.Weather
	}
	return &out
}

func validateText(field, value string, maxLen int) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	if !utf8.ValidString(value) {
		return invalid(field, "must be valid UTF-8")
	}
	if len(value) > maxLen {
		return invalid(field, fmt.Sprintf("exceeds maximum length of %d", maxLen))
	}
	return nil
}
