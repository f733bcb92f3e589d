package news

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category is one of the three fixed topical buckets.
type Category string

const (
	TechProduct     Category = "TECH_PRODUCT"
	ResearchScience Category = "RESEARCH_SCIENCE"
	BusinessSociety Category = "BUSINESS_SOCIETY"
)

// Categories lists every category in display order.
var Categories = []Category{TechProduct, ResearchScience, BusinessSociety}

var categoryAliases = map[string]Category{
	"tech_product":        TechProduct,
	"tech-product":        TechProduct,
	"tech":                TechProduct,
	"tech & product news": TechProduct,
	"research_science":    ResearchScience,
	"research-science":    ResearchScience,
	"research":            ResearchScience,
	"research & science":  ResearchScience,
	"business_society":    BusinessSociety,
	"business-society":    BusinessSociety,
	"business":            BusinessSociety,
	"business & society":  BusinessSociety,
}

// ParseCategory resolves enum values, config section names and API aliases.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// RawArticle is what an extraction strategy yields before normalization.
// PublishedAt is set when the extractor already has a parsed timestamp.
type RawArticle struct {
	Title          string
	URL            string
	PublishedAtRaw string
	PublishedAt    *time.Time
	SummaryRaw     string
	SourceName     string
}

// Article is a normalized article, immutable once created.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Category    Category  `json:"category"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ScanResult reports the outcome of one source within a scan.
type ScanResult struct {
	SourceName  string   `json:"sourceName"`
	Category    Category `json:"category"`
	NewArticles int      `json:"newArticles"`
	Error       *string  `json:"error"`
}

// Failed reports whether the source ended with an error.
func (r ScanResult) Failed() bool {
	return r.Error != nil
}

// SetError records err as the source's error message.
func (r *ScanResult) SetError(err error) {
	msg := err.Error()
	r.Error = &msg
}

type CompleteScanResult struct {
	Results          []ScanResult `json:"results"`
	TotalNewArticles int          `json:"totalNewArticles"`
	ProcessedSources int          `json:"processedSources"`
	ScanStartedAt    time.Time    `json:"scanStartedAt"`
	ScanCompletedAt  time.Time    `json:"scanCompletedAt"`
}

// Add appends a source result and updates the totals.
func (c *CompleteScanResult) Add(r ScanResult) {
	c.Results = append(c.Results, r)
	c.TotalNewArticles += r.NewArticles
	c.ProcessedSources++
}

// AllNews is the aggregate returned by the all-categories read path.
type AllNews struct {
	TechNews     []Article `json:"techNews"`
	ResearchNews []Article `json:"researchNews"`
	BusinessNews []Article `json:"businessNews"`
}

// ArticleID derives a stable identifier from the article URL: the
// name-based (SHA-1) UUID of the URL.
func ArticleID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}
