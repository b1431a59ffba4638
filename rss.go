package jerseyfolio

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/jerseyfolio/catalog"
	"github.com/eringen/jerseyfolio/markdown"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// feedItems bounds the feed to the newest jerseys.
const feedItems = 50

func (a *App) renderRSS(c echo.Context, items []catalog.Jersey) error {
	base := a.Config.URL
	settings := a.Settings()
	recent := catalog.Recent(items, feedItems)
	out := make([]rssItem, 0, len(recent))
	for _, j := range recent {
		pubDate := ""
		if t := catalog.Timestamp(j); t.Unix() > 0 {
			pubDate = t.Format(time.RFC1123Z)
		}
		link := BuildURL(base, "jersey", j.ID)
		desc := markdown.PlainText(j.Description)
		if cover := j.Cover(); cover != "" {
			desc = strings.TrimSpace(desc + " " + absoluteURL(base, settings.ImageURL(cover)))
		}
		out = append(out, rssItem{
			Title:       j.DisplayTitle(),
			Link:        link,
			Description: desc,
			PubDate:     pubDate,
			GUID:        link,
		})
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Items:       out,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
