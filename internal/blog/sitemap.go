package blog

import (
	"encoding/xml"
	"time"
)

const (
	sitemapChangeFreq = "weekly"
	sitemapPriority   = "0.9"
	sitemapXMLNS      = "http://www.sitemaps.org/schemas/sitemap/0.9"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// Sitemap lists the given posts, last modified at their update time.
func Sitemap(siteURL string, posts []*Post) ([]byte, error) {
	set := sitemapURLSet{
		XMLNS: sitemapXMLNS,
		URLs:  make([]sitemapURL, 0, len(posts)),
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        siteURL + p.Path(),
			LastMod:    p.Updated.UTC().Format(time.DateOnly),
			ChangeFreq: sitemapChangeFreq,
			Priority:   sitemapPriority,
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
