// Package curate reduces a category's recent articles to a bounded list
// that favors fresh articles and trusted sources while keeping any one
// source from dominating.
package curate

import (
	"sort"
	"time"

	"github.com/deusflow/newscurator/internal/news"
)

const (
	freshnessWeight = 0.6
	priorityWeight  = 0.4

	// unknownSourcePriority applies to sources missing from the catalog.
	unknownSourcePriority = 0.1

	// sources scoring above this may place two articles
	trustedPriority = 0.2
)

// Freshness is a step function of article age.
func Freshness(published, now time.Time) float64 {
	age := now.Sub(published)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 48*time.Hour:
		return 0.7
	case age <= 168*time.Hour:
		return 0.4
	default:
		return 0.1
	}
}

// SourcePriority is 1/(1+rank) for the source's position in the category
// list.
func SourcePriority(source string, sources []string) float64 {
	for rank, s := range sources {
		if s == source {
			return 1 / float64(1+rank)
		}
	}
	return unknownSourcePriority
}

// Score combines freshness and source priority.
func Score(a news.Article, sources []string, now time.Time) float64 {
	return score(a, SourcePriority(a.Source, sources), now)
}

func score(a news.Article, priority float64, now time.Time) float64 {
	return freshnessWeight*Freshness(a.PublishedAt, now) + priorityWeight*priority
}

func perSourceCap(priority float64) int {
	if priority > trustedPriority {
		return 2
	}
	return 1
}

type candidate struct {
	article  news.Article
	score    float64
	priority float64
}

// Curate picks at most maxCount articles. Candidates are ranked by score,
// ties keeping their input order. While fewer than floor(0.8*maxCount) are
// picked every candidate is admitted; past that point a source is limited
// to its cap. If the caps leave the list short, the best skipped candidates
// fill it up to maxCount.
func Curate(articles []news.Article, sources []string, maxCount int, now time.Time) []news.Article {
	result := make([]news.Article, 0, maxCount)
	if maxCount <= 0 {
		return result
	}

	ranked := make([]candidate, len(articles))
	for i, a := range articles {
		p := SourcePriority(a.Source, sources)
		ranked[i] = candidate{
			article:  a,
			score:    score(a, p, now),
			priority: p,
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	quota := maxCount * 8 / 10
	perSource := make(map[string]int)
	var skipped []news.Article

	for _, c := range ranked {
		if len(result) >= maxCount {
			break
		}
		src := c.article.Source
		if perSource[src] < perSourceCap(c.priority) || len(result) < quota {
			result = append(result, c.article)
			perSource[src]++
			continue
		}
		skipped = append(skipped, c.article)
	}

	for _, a := range skipped {
		if len(result) >= maxCount {
			break
		}
		result = append(result, a)
	}
	return result
}
