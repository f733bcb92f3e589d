package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/newscurator/internal/news"
)

// firstOf evaluates candidates in order and returns the first result pick
// accepts.
func firstOf[T, R any](candidates []T, pick func(T) (R, bool)) (R, bool) {
	for _, c := range candidates {
		if r, ok := pick(c); ok {
			return r, true
		}
	}
	var zero R
	return zero, false
}

func textOf(s *goquery.Selection) (string, bool) {
	t := news.CleanText(s.Text())
	return t, t != ""
}

// firstText finds the first selector under root with non-empty text.
func firstText(root *goquery.Selection, selectors []string) (*goquery.Selection, string, bool) {
	type hit struct {
		sel  *goquery.Selection
		text string
	}
	h, ok := firstOf(selectors, func(q string) (hit, bool) {
		el := root.Find(q).First()
		t, ok := textOf(el)
		return hit{el, t}, ok
	})
	return h.sel, h.text, ok
}

func firstHref(root, title *goquery.Selection, selectors []string) (string, bool) {
	href, ok := firstOf(selectors, func(q string) (string, bool) {
		v, ok := root.Find(q).First().Attr("href")
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	})
	if ok {
		return href, true
	}
	// the title or the container itself may sit inside the link
	for _, s := range []*goquery.Selection{title, root} {
		if s == nil || s.Length() == 0 {
			continue
		}
		if v, ok := s.Closest("a").Attr("href"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func firstDate(root *goquery.Selection, selectors []string) string {
	d, _ := firstOf(selectors, func(q string) (string, bool) {
		el := root.Find(q).First()
		if t, ok := textOf(el); ok {
			return t, true
		}
		v, ok := el.Attr("datetime")
		return v, ok && v != ""
	})
	return d
}

// resolveLink makes href absolute against linkBase, or base when linkBase is
// empty. Non-navigational hrefs resolve to "".
func resolveLink(href string, base *url.URL, linkBase string) string {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	if linkBase != "" {
		if lb, err := url.Parse(linkBase); err == nil {
			base = lb
		}
	}
	if base == nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// ExtractWithSelectors walks container selectors in priority order and stops
// at the first selector that yields any article.
func ExtractWithSelectors(doc *goquery.Document, base *url.URL, site SiteConfig) []news.RawArticle {
	maxArticles := site.maxArticles()
	maxContainers := site.maxContainers()

	for _, containerSel := range site.Selectors.Container {
		var results []news.RawArticle
		seen := make(map[string]bool)

		doc.Find(containerSel).EachWithBreak(func(i int, container *goquery.Selection) bool {
			if i >= maxContainers || len(results) >= maxArticles {
				return false
			}

			titleEl, title, ok := firstText(container, site.Selectors.Title)
			if !ok {
				return true
			}
			href, ok := firstHref(container, titleEl, site.Selectors.Link)
			if !ok {
				return true
			}
			link := resolveLink(href, base, site.LinkBase)
			if link == "" || seen[link] {
				return true
			}
			seen[link] = true

			_, summary, _ := firstText(container, site.Selectors.Summary)
			results = append(results, news.RawArticle{
				Title:          title,
				URL:            link,
				PublishedAtRaw: firstDate(container, site.Selectors.Date),
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
