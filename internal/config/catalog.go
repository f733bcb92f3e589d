package config

import (
	"fmt"
	"os"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
	"gopkg.in/yaml.v3"
)

// Source is one configured origin. A non-empty Feed selects the RSS path,
// otherwise URL is scraped.
type Source struct {
	Name           string `yaml:"name" json:"name"`
	URL            string `yaml:"url" json:"url"`
	Feed           string `yaml:"feed,omitempty" json:"feed,omitempty"`
	CategoryFilter string `yaml:"categoryFilter,omitempty" json:"categoryFilter,omitempty"`
}

// IsFeed reports whether the source is read through RSS.
func (s Source) IsFeed() bool {
	return s.Feed != ""
}

// Section is one category block of the catalog, in file order.
type Section struct {
	Name     string
	Category news.Category
	Sources  []Source
	// Known is false for a section whose name is not a category; its
	// sources are scanned as tech but take no priority rank.
	Known bool
}

// Catalog is the ordered category -> sources mapping. Order is significant:
// a source's position within its category is its priority rank.
type Catalog struct {
	Sections []Section
}

// LoadCatalog reads the catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes the catalog keeping both section and source order as
// written.
func ParseCatalog(data []byte) (*Catalog, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}
	if len(root.Content) == 0 {
		return &Catalog{}, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("sources config must be a mapping of category to sources")
	}

	cat := &Catalog{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, value := doc.Content[i], doc.Content[i+1]

		var sources []Source
		if err := value.Decode(&sources); err != nil {
			return nil, fmt.Errorf("category %q: %w", key.Value, err)
		}
		for j, s := range sources {
			if s.Name == "" {
				return nil, fmt.Errorf("category %q: source #%d has no name", key.Value, j+1)
			}
			if s.URL == "" && s.Feed == "" {
				return nil, fmt.Errorf("category %q: source %q needs url or feed", key.Value, s.Name)
			}
		}

		category, err := news.ParseCategory(key.Value)
		known := err == nil
		if !known {
			logger.Warn("unknown category section, treating as tech", "section", key.Value)
			category = news.TechProduct
		}

		cat.Sections = append(cat.Sections, Section{
			Name:     key.Value,
			Category: category,
			Sources:  sources,
			Known:    known,
		})
	}
	return cat, nil
}

// Sources returns the ranked source list for a category. Sections with an
// unknown name are left out.
func (c *Catalog) Sources(category news.Category) []Source {
	var out []Source
	for _, sec := range c.Sections {
		if sec.Known && sec.Category == category {
			out = append(out, sec.Sources...)
		}
	}
	return out
}

// Find looks a source up by name across all categories, in file order.
func (c *Catalog) Find(name string) (Source, news.Category, bool) {
	for _, sec := range c.Sections {
		for _, s := range sec.Sources {
			if s.Name == name {
				return s, sec.Category, true
			}
		}
	}
	return Source{}, "", false
}

// Len counts every configured source.
func (c *Catalog) Len() int {
	n := 0
	for _, sec := range c.Sections {
		n += len(sec.Sources)
	}
	return n
}
