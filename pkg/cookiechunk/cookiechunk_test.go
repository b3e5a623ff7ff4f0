package cookiechunk

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

func liveCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			out = append(out, c)
		}
	}
	return out
}

func TestSmallValueStoredAsFirstSlice(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, httptest.NewRequest(http.MethodGet, "/", nil), http.Cookie{Path: "/"}, "session", "short value", DefaultChunkSize)

	cookies := liveCookies(w)
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	// Single-chunk values still use the numbered layout.
	if cookies[0].Name != "session.0" {
		t.Fatalf("expected session.0, got %q", cookies[0].Name)
	}

	got, ok := Read(requestWith(cookies), "session")
	if !ok {
		t.Fatal("expected value to be found")
	}
	if got != "short value" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestReadLegacyBareCookie(t *testing.T) {
	r := requestWith([]*http.Cookie{{Name: "session", Value: "legacy%20value"}})

	got, ok := Read(r, "session")
	if !ok {
		t.Fatal("expected value to be found")
	}
	if got != "legacy value" {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestChunkedRoundTrip(t *testing.T) {
	value := strings.Repeat("payload with spaces & symbols / ", 400)

	w := httptest.NewRecorder()
	Write(w, httptest.NewRequest(http.MethodGet, "/", nil), http.Cookie{Path: "/"}, "session", value, DefaultChunkSize)

	cookies := liveCookies(w)
	if len(cookies) < 2 {
		t.Fatalf("expected multiple slices, got %d cookies", len(cookies))
	}
	for _, c := range cookies {
		if len(c.Value) > DefaultChunkSize {
			t.Fatalf("slice %s exceeds budget: %d bytes", c.Name, len(c.Value))
		}
		if !strings.HasPrefix(c.Name, "session.") {
			t.Fatalf("unexpected cookie name %q", c.Name)
		}
	}

	got, ok := Read(requestWith(cookies), "session")
	if !ok {
		t.Fatal("expected value to be found")
	}
	if got != value {
		t.Fatal("round trip mismatch")
	}
}

func TestShrinkExpiresStaleSlices(t *testing.T) {
	big := strings.Repeat("x", DefaultChunkSize*3)
	w1 := httptest.NewRecorder()
	Write(w1, httptest.NewRequest(http.MethodGet, "/", nil), http.Cookie{Path: "/"}, "session", big, DefaultChunkSize)
	client := liveCookies(w1)
	if len(client) < 3 {
		t.Fatalf("expected at least 3 slices, got %d", len(client))
	}

	w2 := httptest.NewRecorder()
	Write(w2, requestWith(client), http.Cookie{Path: "/"}, "session", "now tiny", DefaultChunkSize)

	expired := map[string]bool{}
	for _, c := range w2.Result().Cookies() {
		if c.MaxAge < 0 {
			expired[c.Name] = true
		}
	}
	// session.0 is rewritten with the new value; everything past it
	// must be expired.
	for _, c := range client {
		if c.Name == "session.0" {
			continue
		}
		if !expired[c.Name] {
			t.Fatalf("stale slice %s was not expired", c.Name)
		}
	}

	var kept []*http.Cookie
	for _, c := range w2.Result().Cookies() {
		if c.MaxAge >= 0 {
			kept = append(kept, c)
		}
	}
	got, ok := Read(requestWith(kept), "session")
	if !ok || got != "now tiny" {
		t.Fatalf("expected shrunk value, got %q (found=%v)", got, ok)
	}
}

func TestRemoveClearsEverything(t *testing.T) {
	big := strings.Repeat("x", DefaultChunkSize*2)
	w1 := httptest.NewRecorder()
	Write(w1, httptest.NewRequest(http.MethodGet, "/", nil), http.Cookie{Path: "/"}, "session", big, DefaultChunkSize)
	client := liveCookies(w1)

	w2 := httptest.NewRecorder()
	Remove(w2, requestWith(client), http.Cookie{Path: "/"}, "session")

	for _, c := range w2.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("cookie %s was not expired", c.Name)
		}
	}
}

func TestReadStopsAtGap(t *testing.T) {
	r := requestWith([]*http.Cookie{
		{Name: "session.0", Value: "abc"},
		{Name: "session.2", Value: "def"},
	})
	got, ok := Read(r, "session")
	if !ok {
		t.Fatal("expected slice 0 to be found")
	}
	if got != "abc" {
		t.Fatalf("expected join to stop at gap, got %q", got)
	}
}

func TestReadMissing(t *testing.T) {
	if _, ok := Read(httptest.NewRequest(http.MethodGet, "/", nil), "session"); ok {
		t.Fatal("expected no value")
	}
}
