package curate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/deusflow/newscurator/internal/config"
	"github.com/deusflow/newscurator/internal/news"
	"github.com/deusflow/newscurator/internal/storage"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func art(source string, age time.Duration, n int) news.Article {
	url := fmt.Sprintf("https://%s.example/%d", source, n)
	return news.Article{
		ID:          news.ArticleID(url),
		Title:       fmt.Sprintf("%s %d", source, n),
		URL:         url,
		Source:      source,
		PublishedAt: now.Add(-age),
	}
}

func TestFreshness(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{0, 1.0},
		{24 * time.Hour, 1.0},
		{25 * time.Hour, 0.7},
		{48 * time.Hour, 0.7},
		{100 * time.Hour, 0.4},
		{168 * time.Hour, 0.4},
		{169 * time.Hour, 0.1},
		{-time.Hour, 1.0},
	}
	for _, tt := range tests {
		if got := Freshness(now.Add(-tt.age), now); got != tt.want {
			t.Errorf("Freshness(age=%s) = %v, want %v", tt.age, got, tt.want)
		}
	}
}

func TestSourcePriority(t *testing.T) {
	sources := []string{"A", "B", "C", "D", "E"}
	tests := map[string]float64{
		"A":       1,
		"B":       0.5,
		"D":       0.25,
		"E":       0.2,
		"missing": 0.1,
	}
	for name, want := range tests {
		if got := SourcePriority(name, sources); got != want {
			t.Errorf("SourcePriority(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFreshnessMonotonic(t *testing.T) {
	sources := []string{"A"}
	ages := []time.Duration{time.Hour, 30 * time.Hour, 72 * time.Hour, 200 * time.Hour, 2000 * time.Hour}
	for i := 1; i < len(ages); i++ {
		newer := Score(art("A", ages[i-1], 0), sources, now)
		older := Score(art("A", ages[i], 1), sources, now)
		if newer < older {
			t.Fatalf("newer article scored lower: %v < %v", newer, older)
		}
	}
}

func TestCurateSingleNonPrioritySource(t *testing.T) {
	var articles []news.Article
	for i := 0; i < 30; i++ {
		articles = append(articles, art("Solo", time.Duration(i)*time.Hour, i))
	}

	got := Curate(articles, nil, 10, now)
	if len(got) != 10 {
		t.Fatalf("expected the quota to be filled, got %d", len(got))
	}
	for i, a := range got {
		if a.URL != articles[i].URL {
			t.Fatalf("position %d: expected %s, got %s", i, articles[i].URL, a.URL)
		}
	}
}

func TestCurateDiversityCap(t *testing.T) {
	sources := []string{"Top", "Second", "Third", "Fourth", "Fifth", "Sixth"}

	var articles []news.Article
	for i := 0; i < 5; i++ {
		articles = append(articles, art("Top", time.Hour, i))
	}
	for _, s := range sources[1:] {
		for i := 0; i < 3; i++ {
			articles = append(articles, art(s, 30*time.Hour, i))
		}
	}

	got := Curate(articles, sources, 5, now)
	if len(got) != 5 {
		t.Fatalf("expected 5, got %d", len(got))
	}

	// floor(0.8*5) = 4 admissions ignore the cap; after that Top (cap 2) is
	// already over and Second (priority 0.5) has room.
	counts := map[string]int{}
	for _, a := range got {
		counts[a.Source]++
	}
	if counts["Top"] != 4 || counts["Second"] != 1 {
		t.Fatalf("unexpected mix %v", counts)
	}
}

func TestCurateLowPrioritySourcesPastQuota(t *testing.T) {
	sources := []string{"A", "B", "C", "D", "E", "F"}

	// Fresh articles from A fill the uncapped part of the walk; low priority
	// sources E and F then get at most one slot each before the fill.
	var articles []news.Article
	for i := 0; i < 8; i++ {
		articles = append(articles, art("A", time.Hour, i))
	}
	for i := 0; i < 3; i++ {
		articles = append(articles, art("E", 30*time.Hour, i))
		articles = append(articles, art("F", 30*time.Hour, i))
	}

	got := Curate(articles, sources, 10, now)
	if len(got) != 10 {
		t.Fatalf("expected 10, got %d", len(got))
	}
	if got[8].Source != "E" || got[9].Source != "F" {
		t.Fatalf("expected one E and one F after the quota, got %s and %s", got[8].Source, got[9].Source)
	}
}

func TestCurateStableTies(t *testing.T) {
	articles := []news.Article{
		art("X", time.Hour, 1),
		art("Y", time.Hour, 2),
		art("Z", time.Hour, 3),
	}
	got := Curate(articles, nil, 3, now)
	for i := range articles {
		if got[i].URL != articles[i].URL {
			t.Fatalf("ties must keep input order, got %v", got)
		}
	}
}

func TestCurateEdges(t *testing.T) {
	if got := Curate(nil, nil, 10, now); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", got)
	}
	if got := Curate([]news.Article{art("A", 0, 0)}, nil, 0, now); len(got) != 0 {
		t.Fatalf("maxCount 0 must return nothing")
	}
	got := Curate([]news.Article{art("A", 0, 0), art("A", 0, 1)}, nil, 1, now)
	if len(got) != 1 {
		t.Fatalf("maxCount 1 must return one article, got %d", len(got))
	}
}

func TestReaderAll(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	for i := 0; i < 40; i++ {
		a := art("Feed", time.Duration(i)*time.Hour, i)
		a.Category = news.TechProduct
		store.Insert(ctx, a)
	}
	for i := 0; i < 3; i++ {
		a := art("Lab", time.Duration(i)*time.Hour, i)
		a.Category = news.ResearchScience
		store.Insert(ctx, a)
	}

	catalog := &config.Catalog{Sections: []config.Section{
		{Name: "Tech & Product News", Category: news.TechProduct, Known: true, Sources: []config.Source{{Name: "Feed", URL: "https://feed.example"}}},
		{Name: "Research & Science", Category: news.ResearchScience, Known: true, Sources: []config.Source{{Name: "Lab", URL: "https://lab.example"}}},
	}}
	r := NewReader(store, func() (*config.Catalog, error) { return catalog, nil })
	r.SetClock(func() time.Time { return now })

	all, err := r.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all.TechNews) != TechNewsLimit {
		t.Fatalf("expected %d tech articles, got %d", TechNewsLimit, len(all.TechNews))
	}
	if all.TechNews[0].Source != "Feed" || !all.TechNews[0].PublishedAt.Equal(now) {
		t.Fatalf("newest tech article should lead, got %+v", all.TechNews[0])
	}
	if len(all.ResearchNews) != 3 {
		t.Fatalf("expected all 3 research articles, got %d", len(all.ResearchNews))
	}
	if all.BusinessNews == nil || len(all.BusinessNews) != 0 {
		t.Fatalf("empty category should be an empty list, got %v", all.BusinessNews)
	}
}

func TestReaderWithoutCatalog(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	for i := 0; i < 3; i++ {
		a := art("Any", time.Duration(i)*time.Hour, i)
		a.Category = news.BusinessSociety
		store.Insert(ctx, a)
	}

	r := NewReader(store, func() (*config.Catalog, error) {
		return nil, fmt.Errorf("missing file")
	})
	r.SetClock(func() time.Time { return now })

	got, err := r.ByCategory(ctx, news.BusinessSociety, 10)
	if err != nil {
		t.Fatalf("a missing catalog should not fail the read path: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(got))
	}
}

func TestUnknownSectionTakesNoRank(t *testing.T) {
	catalog := &config.Catalog{Sections: []config.Section{
		{Name: "Misc", Category: news.TechProduct, Sources: []config.Source{{Name: "Extra", URL: "https://extra.example"}}},
		{Name: "Tech & Product News", Category: news.TechProduct, Known: true, Sources: []config.Source{{Name: "Lead", URL: "https://lead.example"}}},
	}}
	ranked := sourceNames(catalog.Sources(news.TechProduct))
	if got := SourcePriority("Lead", ranked); got != 1.0 {
		t.Fatalf("Lead should rank first, got %v", got)
	}
	if got := SourcePriority("Extra", ranked); got != unknownSourcePriority {
		t.Fatalf("Extra should be unranked, got %v", got)
	}
}
