package product

import "strings"

// TagMaxChars is the marketplace's per-tag character limit.
const TagMaxChars = 20

// TagCount is the exact number of tags a listing must carry.
const TagCount = 13

// Listing is the e-commerce copy the listing stage produces.
type Listing struct {
	ProductID string `json:"product_id" validate:"required" jsonschema:"required"`

	// Title is at most 14 words with no banned adjectives, banned phrases,
	// or repeated words; the rules tier enforces all three.
	Title string `json:"title" validate:"required" jsonschema:"description=Listing title of at most 14 words,required"`

	// Tags is a comma-separated string of exactly 13 tags, each at most 20
	// characters. Kept as a string because that is the shape the model
	// emits and the marketplace ingests.
	Tags string `json:"tags" validate:"required" jsonschema:"description=Exactly 13 comma-separated tags of at most 20 characters each,required"`

	// Description is plain text, no markdown, at least 30 characters.
	Description string `json:"description" validate:"required,min=30" jsonschema:"description=Plain-text description of at least 30 characters,required"`

	Attributes map[string]string `json:"attributes" jsonschema:"description=Marketplace attribute key-value pairs"`

	// TitleVariations carries exactly 2 alternates for A/B testing when set.
	TitleVariations []string `json:"title_variations,omitempty" jsonschema:"description=Exactly 2 alternative titles"`

	// LongTailKeywords carries 8 search phrases of 2 to 6 words when set.
	LongTailKeywords []string `json:"long_tail_keywords,omitempty" jsonschema:"description=8 long-tail search phrases of 2 to 6 words"`
}

// TagList splits the comma-separated tags, trimming whitespace and dropping
// empties.
func (l *Listing) TagList() []string {
	parts := strings.Split(l.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// AutoFixTags truncates over-long tags at word boundaries and rewrites the
// tag string. Returns true when anything changed. A tag whose first word
// already exceeds the limit is hard-cut at TagMaxChars.
func (l *Listing) AutoFixTags() bool {
	tags := l.TagList()
	fixed := false

	for i, tag := range tags {
		if len(tag) <= TagMaxChars {
			continue
		}
		tags[i] = TruncateTag(tag)
		fixed = true
	}

	if fixed {
		l.Tags = strings.Join(tags, ", ")
	}
	return fixed
}

// TruncateTag shortens a tag to at most TagMaxChars, cutting at a word
// boundary where possible.
func TruncateTag(tag string) string {
	if len(tag) <= TagMaxChars {
		return tag
	}

	var truncated string
	for _, word := range strings.Fields(tag) {
		candidate := word
		if truncated != "" {
			candidate = truncated + " " + word
		}
		if len(candidate) > TagMaxChars {
			break
		}
		truncated = candidate
	}

	if truncated == "" {
		return tag[:TagMaxChars]
	}
	return truncated
}
