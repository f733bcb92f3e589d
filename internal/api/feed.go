package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/feeds"

	"github.com/deusflow/newscurator/internal/logger"
	"github.com/deusflow/newscurator/internal/news"
)

var categoryTitles = map[news.Category]string{
	news.TechProduct:     "Tech & Product News",
	news.ResearchScience: "Research & Science",
	news.BusinessSociety: "Business & Society",
}

// BuildFeed turns a curated list into an RSS/Atom feed, keeping its order.
func BuildFeed(category news.Category, articles []news.Article, link string, now time.Time) *feeds.Feed {
	title, ok := categoryTitles[category]
	if !ok {
		title = string(category)
	}

	feed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: link},
		Description: "Curated " + title,
		Created:     now,
		Items:       make([]*feeds.Item, 0, len(articles)),
	}
	for _, a := range articles {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          a.ID,
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.URL},
			Description: a.Summary,
			Author:      &feeds.Author{Name: a.Source},
			Created:     a.PublishedAt,
		})
	}
	return feed
}

func (s *Server) categoryFeed(c *gin.Context) {
	category, items, ok := s.curatedCategory(c)
	if !ok {
		return
	}

	rss, err := BuildFeed(category, items, c.Request.URL.String(), s.now()).ToRss()
	if err != nil {
		logger.Error("failed to render feed", "category", category, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render feed"})
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(rss))
}
