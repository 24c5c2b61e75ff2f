package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConvert(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "http://app.example/road/7/document.odt" {
			t.Errorf("unexpected url param %q", got)
		}
		if got := r.URL.Query().Get("to"); got != "application/pdf" {
			t.Errorf("unexpected to param %q", got)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "mapent ") {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer ts.Close()

	c := NewConverter(ts.URL)
	body, mediaType, err := c.Convert(context.Background(),
		"http://app.example/road/7/document.odt", "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if mediaType != "application/pdf" {
		t.Errorf("unexpected media type %q", mediaType)
	}
	if string(body) != "%PDF-1.4 fake" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestConvertServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewConverter(ts.URL)
	if _, _, err := c.Convert(context.Background(), "http://app.example/x.odt", "application/pdf"); err == nil {
		t.Error("expected error for server failure")
	}
}

func TestConvertUnconfigured(t *testing.T) {
	c := NewConverter("")
	if _, _, err := c.Convert(context.Background(), "http://app.example/x.odt", "application/pdf"); err != ErrConversionUnavailable {
		t.Errorf("expected ErrConversionUnavailable, got %v", err)
	}
}
