package rss

import (
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// TagKind identifies the shape a feed category tag arrived in.
type TagKind int

const (
	TagPlain  TagKind = iota // bare string
	TagText                  // element with a text value
	TagTerm                  // element carrying a term attribute
	TagNested                // wrapper whose child carries the term
)

// Tag is a category tag in any of the shapes feeds use.
type Tag struct {
	Kind  TagKind
	Value string
	Inner *Tag
}

func PlainTag(s string) Tag { return Tag{Kind: TagPlain, Value: s} }
func TextTag(s string) Tag  { return Tag{Kind: TagText, Value: s} }
func TermTag(s string) Tag  { return Tag{Kind: TagTerm, Value: s} }

func NestedTag(inner Tag) Tag {
	return Tag{Kind: TagNested, Inner: &inner}
}

// Name normalizes any tag shape to its label.
func (t Tag) Name() (string, bool) {
	var v string
	switch t.Kind {
	case TagPlain, TagText, TagTerm:
		v = t.Value
	case TagNested:
		if t.Inner == nil {
			return "", false
		}
		return t.Inner.Name()
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// MatchesFilter reports whether any tag equals filter, ignoring case.
func MatchesFilter(tags []Tag, filter string) bool {
	filter = strings.TrimSpace(filter)
	for _, t := range tags {
		if name, ok := t.Name(); ok && strings.EqualFold(name, filter) {
			return true
		}
	}
	return false
}

var categoryElements = []string{"category", "subject"}

// TagsFromItem collects category tags from the parsed categories, Dublin
// Core subjects, and any category-like extension elements.
func TagsFromItem(item *gofeed.Item) []Tag {
	var tags []Tag
	for _, c := range item.Categories {
		tags = append(tags, PlainTag(c))
	}
	if item.DublinCoreExt != nil {
		for _, s := range item.DublinCoreExt.Subject {
			tags = append(tags, PlainTag(s))
		}
	}
	for _, byName := range item.Extensions {
		for _, name := range categoryElements {
			for _, e := range byName[name] {
				if t, ok := tagFromExtension(e); ok {
					tags = append(tags, t)
				}
			}
		}
	}
	return tags
}

func tagFromExtension(e ext.Extension) (Tag, bool) {
	if term := e.Attrs["term"]; strings.TrimSpace(term) != "" {
		return TermTag(term), true
	}
	if strings.TrimSpace(e.Value) != "" {
		return TextTag(e.Value), true
	}
	for _, children := range e.Children {
		for _, c := range children {
			if term := c.Attrs["term"]; strings.TrimSpace(term) != "" {
				return NestedTag(TermTag(term)), true
			}
			if c.Name == "term" && strings.TrimSpace(c.Value) != "" {
				return NestedTag(TermTag(c.Value)), true
			}
		}
	}
	return Tag{}, false
}
