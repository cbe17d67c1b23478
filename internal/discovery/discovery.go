// Package discovery turns a district listing page into the ordered list of
// precinct page URLs.
package discovery

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/elections-scraper/internal/election"
)

// Default header-reference patterns for the precinct link column.
const (
	DefaultDomesticPattern = `^t\d+sa1 t\d+sb1$`
	DefaultAbroadPattern   = `^s\d+$`
)

// Config holds the base URL and per-mode header patterns.
type Config struct {
	BaseURL         string
	DomesticPattern string
	AbroadPattern   string
}

// Discoverer finds precinct links on a district listing.
type Discoverer struct {
	base     *url.URL
	patterns map[election.DiscoveryMode]*regexp.Regexp
}

// New compiles the configured patterns.
func New(cfg Config) (*Discoverer, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}
	domestic := cfg.DomesticPattern
	if domestic == "" {
		domestic = DefaultDomesticPattern
	}
	abroad := cfg.AbroadPattern
	if abroad == "" {
		abroad = DefaultAbroadPattern
	}
	d := &Discoverer{base: base, patterns: make(map[election.DiscoveryMode]*regexp.Regexp, 2)}
	for mode, raw := range map[election.DiscoveryMode]string{
		election.DiscoveryDomestic: domestic,
		election.DiscoveryAbroad:   abroad,
	} {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("compile %s pattern: %w", mode, err)
		}
		d.patterns[mode] = re
	}
	return d, nil
}

// Discover returns absolute precinct URLs in document order. It returns
// election.ErrNoPrecincts when no link cell matches.
func (d *Discoverer) Discover(doc *goquery.Document, mode election.DiscoveryMode) ([]string, error) {
	re, ok := d.patterns[mode]
	if !ok {
		return nil, fmt.Errorf("unknown discovery mode %q", mode)
	}

	var (
		urls     []string
		seen     = make(map[string]struct{})
		firstErr error
	)
	doc.Find("td[headers]").Each(func(_ int, cell *goquery.Selection) {
		if firstErr != nil {
			return
		}
		headers, _ := cell.Attr("headers")
		if !re.MatchString(strings.TrimSpace(headers)) {
			return
		}
		href, ok := cell.Find("a[href]").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := election.ResolveReference(d.base, href)
		if err != nil {
			firstErr = err
			return
		}
		key, err := election.NormalizeURL(abs)
		if err != nil {
			firstErr = err
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		urls = append(urls, abs)
	})
	if firstErr != nil {
		return nil, fmt.Errorf("discover precinct links: %w", firstErr)
	}
	if len(urls) == 0 {
		return nil, election.ErrNoPrecincts
	}
	return urls, nil
}
