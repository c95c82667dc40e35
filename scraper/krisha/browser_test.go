package krisha

import (
	"context"
	"errors"
	"testing"
)

func TestPageURL(t *testing.T) {
	tests := []struct {
		base, city string
		page       int
		want       string
	}{
		{"https://krisha.kz/arenda/kvartiry", "almaty", 1, "https://krisha.kz/arenda/kvartiry/almaty/?page=1"},
		{"https://krisha.kz/arenda/kvartiry", "astana", 12, "https://krisha.kz/arenda/kvartiry/astana/?page=12"},
	}

	for _, tt := range tests {
		if got := PageURL(tt.base, tt.city, tt.page); got != tt.want {
			t.Errorf("PageURL(%q, %q, %d) = %q; want %q", tt.base, tt.city, tt.page, got, tt.want)
		}
	}
}

func TestFindChromeBinaryHonoursEnv(t *testing.T) {
	t.Setenv("CHROME_BIN", "/opt/custom/chrome")
	if got := findChromeBinary(); got != "/opt/custom/chrome" {
		t.Errorf("findChromeBinary() = %q; want /opt/custom/chrome", got)
	}
}

func TestFetchPageNotStartedAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// No browser is attached: a fetch that got past the ctx check would panic.
	b := &Browser{}
	if _, err := b.FetchPage(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("FetchPage on cancelled ctx: got %v, want context.Canceled", err)
	}
}
