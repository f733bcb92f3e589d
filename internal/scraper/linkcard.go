package scraper

import (
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newscurator/internal/news"
)

const newsLinkSelector = `a[href*="/news/"]`

var cardDateRe = regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2}, \d{4}|\d{4}-\d{2}-\d{2}`)

// ExtractLinkCards handles client-rendered news indexes where each article
// is a link wrapping an h3 headline. When no such card exists it falls back
// to the site's card selectors.
func ExtractLinkCards(doc *goquery.Document, base *url.URL, site SiteConfig) []news.RawArticle {
	if results := extractNewsLinks(doc, base, site); len(results) > 0 {
		return results
	}
	return extractCards(doc, base, site)
}

func extractNewsLinks(doc *goquery.Document, base *url.URL, site SiteConfig) []news.RawArticle {
	maxArticles := site.maxArticles()
	maxContainers := site.maxContainers()

	var results []news.RawArticle
	seen := make(map[string]bool)

	doc.Find(newsLinkSelector).EachWithBreak(func(i int, a *goquery.Selection) bool {
		if i >= maxContainers || len(results) >= maxArticles {
			return false
		}
		title, ok := textOf(a.Find("h3").First())
		if !ok {
			return true
		}
		href, _ := a.Attr("href")
		link := resolveLink(href, base, site.LinkBase)
		if link == "" || seen[link] {
			return true
		}
		seen[link] = true

		results = append(results, news.RawArticle{
			Title:          title,
			URL:            link,
			PublishedAtRaw: cardDate(a),
		})
		return true
	})
	return results
}

// cardDate returns the first leaf element text that looks like a date.
// Wrapper text is skipped since it glues sibling texts together.
func cardDate(card *goquery.Selection) string {
	var date string
	card.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if el.Children().Length() > 0 {
			return true
		}
		t := news.CleanText(el.Text())
		if t != "" && cardDateRe.MatchString(t) {
			date = cardDateRe.FindString(t)
			return false
		}
		return true
	})
	return date
}

func extractCards(doc *goquery.Document, base *url.URL, site SiteConfig) []news.RawArticle {
	maxArticles := site.maxArticles()
	maxContainers := site.maxContainers()

	for _, containerSel := range site.Selectors.Container {
		var results []news.RawArticle
		seenURL := make(map[string]bool)
		seenTitle := make(map[string]bool)

		doc.Find(containerSel).EachWithBreak(func(i int, card *goquery.Selection) bool {
			if i >= maxContainers || len(results) >= maxArticles {
				return false
			}
			titleEl, title, ok := firstText(card, site.Selectors.Title)
			if !ok {
				return true
			}
			href, ok := firstHref(card, titleEl, site.Selectors.Link)
			if !ok {
				return true
			}
			link := resolveLink(href, base, site.LinkBase)
			if link == "" || seenURL[link] || seenTitle[title] {
				return true
			}
			seenURL[link] = true
			seenTitle[title] = true

			_, summary, _ := firstText(card, site.Selectors.Summary)
			results = append(results, news.RawArticle{
				Title:          title,
				URL:            link,
				PublishedAtRaw: firstDate(card, site.Selectors.Date),
				SummaryRaw:     summary,
			})
			return true
		})

		if len(results) > 0 {
			return results
		}
	}
	return nil
}
