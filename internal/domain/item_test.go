package domain

import (
	"errors"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Sunset.jpg", "sunset"},
		{"spaces and case", "My Holiday Photo.PNG", "my-holiday-photo"},
		{"punctuation collapses", "hello__world--2024!.jpeg", "hello-world-2024"},
		{"diacritics removed", "Café Münster.jpg", "cafe-munster"},
		{"no extension", "README", "readme"},
		{"leading dot kept as name", ".hidden", "hidden"},
		{"trims hyphens", "--edge--.png", "edge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyDeterministic(t *testing.T) {
	a := Slugify("Autumn Leaves.jpg")
	b := Slugify("Autumn Leaves.jpg")
	if a != b {
		t.Errorf("Slugify not deterministic: %q vs %q", a, b)
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		category string
		wantErr  error
	}{
		{"publish to hidden", StatusPublished, StatusHidden, "", nil},
		{"hidden to published", StatusHidden, StatusPublished, "", nil},
		{"published to archived", StatusPublished, StatusArchived, "", nil},
		{"restore with category", StatusArchived, StatusPublished, "Nature", nil},
		{"restore to hidden with category", StatusArchived, StatusHidden, "Nature", nil},
		{"restore without category", StatusArchived, StatusPublished, "", ErrCategoryRequired},
		{"unknown status", StatusPublished, "deleted", "", ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &Item{Status: tt.from}
			err := item.ValidateTransition(tt.to, tt.category)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTransition(%q, %q) from %q = %v, want %v",
					tt.to, tt.category, tt.from, err, tt.wantErr)
			}
		})
	}
}

func TestRenameRecomputesSlug(t *testing.T) {
	item := &Item{Name: "old.jpg", Slug: "old"}
	item.Rename("Brand New Name.jpg")
	if item.Name != "Brand New Name.jpg" {
		t.Errorf("Name = %q", item.Name)
	}
	if item.Slug != "brand-new-name" {
		t.Errorf("Slug = %q, want brand-new-name", item.Slug)
	}
}

func TestAspectRatioBucket(t *testing.T) {
	tests := []struct {
		width, height int
		want          string
	}{
		{1000, 1000, "1:1"},
		{1920, 1080, "16:9"},
		{1080, 1920, "9:16"},
		{1600, 1200, "4:3"},
		{1000, 300, "Other"},
		{0, 100, ""},
		{100, 0, ""},
	}
	for _, tt := range tests {
		if got := AspectRatioBucket(tt.width, tt.height); got != tt.want {
			t.Errorf("AspectRatioBucket(%d, %d) = %q, want %q", tt.width, tt.height, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{ErrNotFound, KindNotFound},
		{ErrInvalidInput, KindValidation},
		{ErrCategoryRequired, KindValidation},
		{ErrRateLimited, KindRateLimited},
		{ErrExpiredRequest, KindAuth},
		{ErrInvalidSignature, KindAuth},
		{ErrNotAdmin, KindAuth},
		{ErrLockTimeout, KindConflict},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryableErrorWrapping(t *testing.T) {
	base := errors.New("connection reset")
	err := NewRetryableError(base)

	if !IsRetryable(err) {
		t.Error("expected IsRetryable to be true")
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to match base")
	}
	if IsRetryable(base) {
		t.Error("plain error should not be retryable")
	}
}
