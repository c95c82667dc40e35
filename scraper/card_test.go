package scraper

import (
	"testing"
)

const fullCard = `
<article class="a-card" data-id="1001">
  <a class="a-card__image" href="/a/show/1001"><img src="x.jpg"></a>
  <div class="a-card__header">
    <a class="a-card__title" href="/a/show/1001">2-комнатная квартира, 54.5 м², 3/9 этаж</a>
    <div class="a-card__price">150 000 〒</div>
  </div>
  <div class="a-card__subtitle">  Бостандыкский р-н, ул. Abay 10 </div>
  <div class="a-card__info">
    <span class="a-card__info-text">2 комн.</span>
    <span class="a-card__info-text">54.5 м²</span>
    <span class="a-card__info-text">3/9 Этаж</span>
  </div>
</article>`

func TestParseCardAllFields(t *testing.T) {
	raw, err := ParseCard(fullCard, "https://krisha.kz")
	if err != nil {
		t.Fatalf("ParseCard: %v", err)
	}

	checks := []struct {
		field, got, want string
	}{
		{"URL", raw.URL, "https://krisha.kz/a/show/1001"},
		{"Title", raw.Title, "2-комнатная квартира, 54.5 м², 3/9 этаж"},
		{"PriceText", raw.PriceText, "150 000 〒"},
		{"LocationText", raw.LocationText, "Бостандыкский р-н, ул. Abay 10"},
		{"RoomsText", raw.RoomsText, "2 комн."},
		{"AreaText", raw.AreaText, "54.5 м²"},
		{"FloorText", raw.FloorText, "3/9 этаж"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %q, want %q", c.field, c.got, c.want)
		}
	}
	if len(raw.InfoTags) != 3 {
		t.Errorf("InfoTags: got %d, want 3", len(raw.InfoTags))
	}
}

func TestParseCardMissingFieldsStayEmpty(t *testing.T) {
	html := `<div data-id="7"><div class="a-card__title">Студия</div></div>`

	raw, err := ParseCard(html, "https://krisha.kz")
	if err != nil {
		t.Fatalf("ParseCard: %v", err)
	}
	if raw.Title != "Студия" {
		t.Errorf("Title: got %q", raw.Title)
	}
	if raw.URL != "" || raw.PriceText != "" || raw.LocationText != "" {
		t.Errorf("expected empty url/price/location, got %+v", raw)
	}
	if raw.RoomsText != "" || raw.AreaText != "" || raw.FloorText != "" {
		t.Errorf("expected no classified tags, got %+v", raw)
	}
}

func TestParseCardAbsoluteLinkKept(t *testing.T) {
	html := `<article class="a-card"><a href="https://m.krisha.kz/a/show/5">x</a></article>`
	raw, err := ParseCard(html, "https://krisha.kz")
	if err != nil {
		t.Fatal(err)
	}
	if raw.URL != "https://m.krisha.kz/a/show/5" {
		t.Errorf("URL: got %q", raw.URL)
	}
}

func TestClassifyTags(t *testing.T) {
	tests := []struct {
		tags               []string
		rooms, area, floor string
	}{
		{[]string{"1 Комн.", "40 м2", "этаж 2 из 5"}, "1 Комн.", "40 м2", "этаж 2 из 5"},
		{[]string{"  2 КОМН. ", " 3/9 Этаж"}, "2 КОМН.", "", "3/9 Этаж"},
		{[]string{"евроремонт", "54 м²"}, "", "54 м²", ""},
		{[]string{"62 m²"}, "", "62 m²", ""},
		{[]string{"48 M2"}, "", "48 M2", ""},
		{[]string{"3 комн.", "4 комн."}, "3 комн.", "", ""},
		{nil, "", "", ""},
	}

	for _, tt := range tests {
		rooms, area, floor := ClassifyTags(tt.tags)
		if rooms != tt.rooms || area != tt.area || floor != tt.floor {
			t.Errorf("ClassifyTags(%q) = (%q, %q, %q); want (%q, %q, %q)",
				tt.tags, rooms, area, floor, tt.rooms, tt.area, tt.floor)
		}
	}
}
