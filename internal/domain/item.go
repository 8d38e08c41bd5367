package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Item status values
const (
	StatusPublished = "published"
	StatusHidden    = "hidden"
	StatusArchived  = "archived"
)

// FallbackCategory is assigned when no category can be inferred
const FallbackCategory = "Other"

// Item is the authoritative metadata record for one stored file
type Item struct {
	ID          string
	Name        string
	Category    string
	Slug        string
	Status      string
	Size        int64
	MimeType    string
	ContentHash string
	Fingerprint string
	Caption     string
	AspectRatio string
	Likes       int64
	Comments    int64
	Views       int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidStatus reports whether s is a known status value
func ValidStatus(s string) bool {
	switch s {
	case StatusPublished, StatusHidden, StatusArchived:
		return true
	}
	return false
}

// ValidateTransition checks the status state machine. published and hidden
// toggle freely without a physical move; leaving archived is a restore and
// needs a target category so the file can be placed back.
func (i *Item) ValidateTransition(newStatus, category string) error {
	if !ValidStatus(newStatus) {
		return ErrInvalidInput
	}
	if i.Status == StatusArchived && newStatus != StatusArchived && category == "" {
		return ErrCategoryRequired
	}
	return nil
}

// IsArchived reports whether the item lives in the archive table
func (i *Item) IsArchived() bool {
	return i.Status == StatusArchived
}

// Rename updates the name and recomputes the slug. The slug is derived only
// from the name, so it survives status and category changes untouched.
func (i *Item) Rename(name string) {
	i.Name = name
	i.Slug = Slugify(name)
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a file name into a stable URL slug: extension dropped,
// diacritics removed, non-alphanumerics collapsed to single hyphens.
func Slugify(name string) string {
	s := name
	if idx := strings.LastIndex(s, "."); idx > 0 {
		s = s[:idx]
	}
	s = removeDiacritics(strings.ToLower(s))
	s = slugStrip.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func removeDiacritics(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// AspectRatioBucket maps image dimensions to a display bucket
func AspectRatioBucket(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	ratio := float64(width) / float64(height)
	switch {
	case abs(ratio-1) < 0.05:
		return "1:1"
	case abs(ratio-1.78) < 0.05:
		return "16:9"
	case abs(ratio-0.56) < 0.05:
		return "9:16"
	case abs(ratio-1.33) < 0.05:
		return "4:3"
	}
	return "Other"
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Engagement event types
const (
	EngagementLike    = "like"
	EngagementComment = "comment"
	EngagementView    = "view"
)

// EngagementEvent is one recorded interaction with an item
type EngagementEvent struct {
	ID        int64
	ItemID    string
	User      string
	Type      string
	CreatedAt time.Time
}

// ValidEngagement reports whether t is a known engagement type
func ValidEngagement(t string) bool {
	switch t {
	case EngagementLike, EngagementComment, EngagementView:
		return true
	}
	return false
}
