package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugRun  = regexp.MustCompile(`[^a-z0-9]+`)
)

// ErrEmptySlug is returned when a display name reduces to nothing after
// normalization (e.g. a name made entirely of punctuation).
var ErrEmptySlug = errors.New("name produces an empty slug")

// NormalizeSlug trims whitespace, lowercases the value, and ensures it matches
// the canonical URL-safe slug pattern required for public identifiers.
func NormalizeSlug(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", errors.New("slug is required")
	}

	normalized := strings.ToLower(trimmed)
	if !slugPattern.MatchString(normalized) {
		return "", fmt.Errorf("invalid slug %q: must match ^[a-z0-9]+(?:-[a-z0-9]+)*$", input)
	}

	return normalized, nil
}

// Slugify derives a slug candidate from a display name: lowercase, every
// maximal run of characters outside [a-z0-9] collapses to a single hyphen,
// leading and trailing hyphens are stripped. Idempotent.
func Slugify(name string) string {
	slug := nonSlugRun.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// SlugExistsFunc reports whether a candidate slug is already taken. The
// directory store supplies a DB-backed oracle; batch seeding supplies an
// in-memory one.
type SlugExistsFunc func(ctx context.Context, slug string) (bool, error)

// UniqueSlug derives a slug from name and resolves collisions against the
// supplied oracle by appending -1, -2, ... until a free candidate is found.
// For a fixed name and a fixed set of taken slugs the result is always the
// lowest-numbered free form. Returns ErrEmptySlug when the name normalizes
// to nothing.
func UniqueSlug(ctx context.Context, name string, exists SlugExistsFunc) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", ErrEmptySlug
	}

	candidate := base
	for counter := 1; ; counter++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}
