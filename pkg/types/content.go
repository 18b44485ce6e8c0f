package types

import (
	"fmt"
	"strings"
)

// ContentType identifies the kind of a content item
type ContentType string

const (
	TypeScene     ContentType = "scene"
	TypeDialogue  ContentType = "dialogue"
	TypeAction    ContentType = "action"
	TypeCharacter ContentType = "character"
	TypeLocation  ContentType = "location"
	TypeObject    ContentType = "object"
)

// Well-known metadata keys
const (
	MetaSequence  = "sequence"
	MetaCharacter = "character"
	MetaHeading   = "heading"
	MetaName      = "name"
	MetaLocation  = "location"
	MetaSceneID   = "scene_id"
)

// AllContentTypes lists every content type in canonical order
var AllContentTypes = []ContentType{
	TypeScene, TypeDialogue, TypeAction, TypeCharacter, TypeLocation, TypeObject,
}

// EntityCategories is the allow-list of named entity categories
var EntityCategories = []ContentType{TypeCharacter, TypeLocation, TypeObject}

// ContentItem is one unit of retrievable text
type ContentItem struct {
	ID       string
	Type     ContentType
	Text     string
	Metadata map[string]any
}

// Validate checks the item has an id, a known type and non-blank text
func (c *ContentItem) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: content id is required", ErrInvalidInput)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown content type %q", ErrInvalidInput, c.Type)
	}
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Sequence returns the item's sequence-order metadata value, if numeric
func (c *ContentItem) Sequence() (float64, bool) {
	return MetadataNumber(c.Metadata, MetaSequence)
}

// Valid reports whether t is a known content type
func (t ContentType) Valid() bool {
	for _, known := range AllContentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsEntity reports whether t is a named entity category
func (t ContentType) IsEntity() bool {
	for _, cat := range EntityCategories {
		if t == cat {
			return true
		}
	}
	return false
}

// ParseContentType converts a user-supplied string to a ContentType
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown content type %q", ErrInvalidInput, s)
	}
	return t, nil
}

// ValidateEntityCategory checks category against the entity allow-list
func ValidateEntityCategory(category string) (ContentType, error) {
	t := ContentType(strings.ToLower(strings.TrimSpace(category)))
	if !t.IsEntity() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return t, nil
}

// MetadataNumber reads a numeric metadata value regardless of its concrete type
func MetadataNumber(md map[string]any, key string) (float64, bool) {
	v, ok := md[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// MetadataString reads a string metadata value
func MetadataString(md map[string]any, key string) (string, bool) {
	v, ok := md[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// CopyMetadata returns a shallow copy of md (nil stays nil)
func CopyMetadata(md map[string]any) map[string]any {
	if md == nil {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

// EstimateTokens approximates a token count as characters / 4
func EstimateTokens(text string) int {
	return len(text) / 4
}

// ContentQuery selects candidate content items from storage
type ContentQuery struct {
	Types []ContentType

	// Terms are matched case-insensitively as substrings; an item matches
	// when it contains any term. Empty matches everything.
	Terms []string

	// EntityFilter restricts items to those whose metadata equals every
	// given key/value pair.
	EntityFilter map[string]any

	Limit  int
	Offset int
}
