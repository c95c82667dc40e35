package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"krisha-pipeline/models"
)

// Card selectors on krisha.kz search result pages.
const (
	linkSelector     = "a[href]"
	priceSelector    = ".a-card__price"
	titleSelector    = ".a-card__title"
	locationSelector = ".a-card__subtitle"
	infoSelector     = ".a-card__info-text"
)

// areaUnits mark an area tag; Cyrillic and Latin "m" both occur.
var areaUnits = []string{"м²", "м2", "m²", "m2"}

// ParseCard extracts a RawListing from the outer HTML of a single listing card.
// Fields are extracted independently: a missing element only leaves its field
// empty. Relative links are resolved against baseURL.
func ParseCard(html, baseURL string) (*models.RawListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse card: %w", err)
	}

	raw := &models.RawListing{
		URL:          cardLink(doc, baseURL),
		PriceText:    firstText(doc, priceSelector),
		Title:        firstText(doc, titleSelector),
		LocationText: firstText(doc, locationSelector),
	}

	doc.Find(infoSelector).Each(func(_ int, s *goquery.Selection) {
		if txt := collapse(s.Text()); txt != "" {
			raw.InfoTags = append(raw.InfoTags, txt)
		}
	})
	raw.RoomsText, raw.AreaText, raw.FloorText = ClassifyTags(raw.InfoTags)

	return raw, nil
}

// ClassifyTags sorts free-text info tags into rooms, area and floor by keyword.
// Matching is case-insensitive and the first tag of each class wins. Tags are
// returned trimmed but otherwise as extracted.
func ClassifyTags(tags []string) (rooms, area, floor string) {
	for _, tag := range tags {
		txt := strings.TrimSpace(tag)
		lower := strings.ToLower(txt)
		switch {
		case strings.Contains(lower, "комн"):
			if rooms == "" {
				rooms = txt
			}
		case containsAny(lower, areaUnits):
			if area == "" {
				area = txt
			}
		case strings.Contains(lower, "этаж"):
			if floor == "" {
				floor = txt
			}
		}
	}
	return rooms, area, floor
}

func cardLink(doc *goquery.Document, baseURL string) string {
	href, ok := doc.Find(linkSelector).First().Attr("href")
	if !ok {
		return ""
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() || baseURL == "" {
		return ref.String()
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func firstText(doc *goquery.Document, selector string) string {
	return collapse(doc.Find(selector).First().Text())
}

// collapse trims and squeezes internal whitespace, including the non-breaking
// spaces krisha.kz uses as thousands separators.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
