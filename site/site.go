package site

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quill/apperr"
	"quill/cache"
	"quill/query"
)

const rssItems = 50

type SiteModule struct {
	db   *gorm.DB
	base string
}

// NewSiteModule serves the feeds. base is the public site URL without a
// trailing slash.
func NewSiteModule(db *gorm.DB, base string) *SiteModule {
	return &SiteModule{db: db, base: strings.TrimSuffix(base, "/")}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	feeds := router.Group("/")
	feeds.Use(cache.ETagMiddleware())
	{
		feeds.GET("/rss.xml", s.rss)
		feeds.GET("/sitemap.xml", s.sitemap)
	}
}

type feedPost struct {
	Slug        string
	Title       string
	Excerpt     *string
	PublishedAt *time.Time
	UpdatedAt   time.Time
}

func (s *SiteModule) postURL(slug string) string {
	return s.base + "/posts/" + slug
}

func (s *SiteModule) rss(c *gin.Context) {
	size := rssItems
	q := query.Public(query.Params{PageSize: &size})

	var posts []feedPost
	err := q.Apply(s.db.WithContext(c.Request.Context())).
		Select("slug", "title", "excerpt", "published_at", "updated_at").
		Find(&posts).Error
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var feed strings.Builder
	feed.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	feed.WriteString("\n")
	feed.WriteString(`<rss version="2.0">`)
	feed.WriteString("\n<channel>\n")
	feed.WriteString("  <title>Blog</title>\n")
	feed.WriteString("  <link>" + escape(s.base) + "</link>\n")
	feed.WriteString("  <description>Latest posts</description>\n")

	for _, post := range posts {
		link := escape(s.postURL(post.Slug))
		feed.WriteString("  <item>\n")
		feed.WriteString("    <title>" + cdata(post.Title) + "</title>\n")
		feed.WriteString("    <link>" + link + "</link>\n")
		feed.WriteString("    <guid>" + link + "</guid>\n")
		if post.PublishedAt != nil {
			feed.WriteString("    <pubDate>" + post.PublishedAt.UTC().Format(time.RFC1123Z) + "</pubDate>\n")
		}
		if post.Excerpt != nil {
			feed.WriteString("    <description>" + cdata(*post.Excerpt) + "</description>\n")
		}
		feed.WriteString("  </item>\n")
	}

	feed.WriteString("</channel>\n</rss>\n")

	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(feed.String()))
}

func (s *SiteModule) sitemap(c *gin.Context) {
	var posts []feedPost
	err := query.Public(query.Params{}).
		Scope(s.db.WithContext(c.Request.Context())).
		Select("slug", "updated_at").
		Find(&posts).Error
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	sitemap.WriteString("  <url>\n")
	sitemap.WriteString("    <loc>" + escape(s.base) + "/</loc>\n")
	sitemap.WriteString("    <changefreq>daily</changefreq>\n")
	sitemap.WriteString("  </url>\n")

	for _, post := range posts {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + escape(s.postURL(post.Slug)) + "</loc>\n")
		sitemap.WriteString("    <lastmod>" + post.UpdatedAt.UTC().Format(time.RFC3339) + "</lastmod>\n")
		sitemap.WriteString("    <changefreq>weekly</changefreq>\n")
		sitemap.WriteString("  </url>\n")
	}

	sitemap.WriteString("</urlset>\n")

	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(sitemap.String()))
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// cdata wraps s in a CDATA section. A "]]>" inside s is split across two
// sections.
func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}
