package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgnsrekt/soapstream/internal/catalog"
	"github.com/dgnsrekt/soapstream/internal/history"
	"github.com/dgnsrekt/soapstream/internal/resolver"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, NewServer(newStub()), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.Status != "ok" {
		t.Fatalf("body = %s (%v)", w.Body.String(), err)
	}
}

func TestResolveEndpoint(t *testing.T) {
	svc := newStub()
	svc.stream = resolver.ResolvedStream{StreamURL: "https://cdn.example.com/master.m3u8", SourceLink: "https://site.example/tv/show"}
	h := NewServer(svc)

	w := do(t, h, http.MethodPost, "/api/v1/resolve", `{"url":"https://site.example/tv/show","episode_id":"ep-2","server_index":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var out resolver.ResolvedStream
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.StreamURL != svc.stream.StreamURL {
		t.Fatalf("stream = %+v", out)
	}
	if svc.resolveReq.EpisodeID != "ep-2" || svc.resolveReq.ServerIndex != 1 {
		t.Fatalf("request = %+v", svc.resolveReq)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		code string
		want int
	}{
		{resolver.CodeValidation, http.StatusBadRequest},
		{resolver.CodeNoStream, http.StatusNotFound},
		{resolver.CodeNotFound, http.StatusNotFound},
		{resolver.CodeNavigation, http.StatusBadGateway},
		{resolver.CodeSessionFault, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		svc := newStub()
		svc.err = resolver.NewError(tc.code, "boom", nil)
		w := do(t, NewServer(svc), http.MethodPost, "/api/v1/resolve", `{"url":"https://site.example/film/x"}`)
		if w.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.code, w.Code, tc.want)
		}
	}
}

func TestSearchAndEpisodes(t *testing.T) {
	svc := newStub()
	svc.titles = []catalog.Title{{Name: "The Matrix", Slug: "the-matrix", Link: "https://site.example/film/the-matrix"}}
	svc.episodes = []string{"ep-1", "ep-2"}
	h := NewServer(svc)

	w := do(t, h, http.MethodPost, "/api/v1/search", `{"query":"matrix"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var search struct {
		Titles []catalog.Title `json:"titles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &search); err != nil || len(search.Titles) != 1 {
		t.Fatalf("search body = %s", w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/api/v1/episodes", `{"url":"https://site.example/tv/show"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("episodes status = %d", w.Code)
	}
	var eps struct {
		Episodes []string `json:"episodes"`
		Series   bool     `json:"series"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &eps); err != nil || len(eps.Episodes) != 2 || !eps.Series {
		t.Fatalf("episodes body = %s", w.Body.String())
	}
}

func TestHistoryEndpoint(t *testing.T) {
	svc := newStub()
	svc.entries = []history.Entry{{Type: history.KindMovie, Title: "X", Metadata: map[string]string{"link": "https://cdn/x.m3u8"}}}
	w := do(t, NewServer(svc), http.MethodGet, "/api/v1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"https://cdn/x.m3u8"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestOpenAPIListsRoutes(t *testing.T) {
	w := do(t, NewServer(newStub()), http.MethodGet, "/openapi.json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	for _, path := range []string{"/api/v1/resolve", "/api/v1/search", "/api/v1/episodes", "/api/v1/history"} {
		if !strings.Contains(w.Body.String(), path) {
			t.Fatalf("openapi missing %s", path)
		}
	}
}
