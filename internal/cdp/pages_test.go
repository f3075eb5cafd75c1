package cdp

import "testing"

func TestPageRegistryListMainFirst(t *testing.T) {
	r := NewPageRegistry()
	if _, err := r.Register("AAAA1111BBBB", "https://ads.example/pop", false); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := r.Register("0000MAIN", "https://site.example/film/some-movie", true); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	pages := r.List()
	if len(pages) != 2 || !pages[0].Main {
		t.Fatalf("List() = %+v", pages)
	}
	if pages[0].PathSegment != "film_some-movie" {
		t.Fatalf("PathSegment = %q", pages[0].PathSegment)
	}
	if pages[1].BrowserID != "AAAA1111" {
		t.Fatalf("BrowserID = %q", pages[1].BrowserID)
	}

	r.Remove("AAAA1111BBBB")
	if r.Count() != 1 {
		t.Fatalf("Count() = %d", r.Count())
	}
	if _, ok := r.GetByStringID("0000MAIN"); !ok {
		t.Fatal("main page missing")
	}
}
