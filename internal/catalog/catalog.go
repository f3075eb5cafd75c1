// Package catalog searches the site's title index.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/resolver"
)

// Title is one search result.
type Title struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
	Link  string `json:"link"`
}

// Session is the part of a browser session search needs.
type Session interface {
	Navigate(ctx context.Context, rawURL string) error
	ExpectResponse(ctx context.Context, rules resolver.Heuristics, timeout time.Duration, action resolver.Action) (resolver.Candidate, error)
	ResponseBody(ctx context.Context, requestID string) ([]byte, error)
}

type searchPayload struct {
	Data []struct {
		Title string `json:"t"`
		Slug  string `json:"s"`
	} `json:"data"`
}

// Searcher runs title searches through a browser session so the site's own
// search request, and its cookies, are used.
type Searcher struct {
	profile *config.Profile
	timeout time.Duration
}

func NewSearcher(profile *config.Profile, timeout time.Duration) *Searcher {
	return &Searcher{profile: profile, timeout: timeout}
}

// SearchURL returns the page that issues the search request for query.
func (s *Searcher) SearchURL(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	return strings.TrimRight(s.profile.BaseURL, "/") + "/search/?q=" + url.QueryEscape(q)
}

// Search loads the search page and decodes the first JSON search response.
func (s *Searcher) Search(ctx context.Context, sess Session, query string) ([]Title, error) {
	if strings.TrimSpace(query) == "" {
		return nil, resolver.NewError(resolver.CodeValidation, "query is required", nil)
	}
	pageURL := s.SearchURL(query)
	cand, err := sess.ExpectResponse(ctx, resolver.Heuristics(s.profile.SearchRules), s.timeout,
		func(ctx context.Context, _ <-chan struct{}) error {
			return sess.Navigate(ctx, pageURL)
		})
	if err != nil {
		if resolver.IsCode(err, resolver.CodeNoStream) {
			return nil, resolver.NewError(resolver.CodeNotFound, fmt.Sprintf("no search response for %q", query), err)
		}
		return nil, err
	}
	bodyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	body, err := sess.ResponseBody(bodyCtx, cand.RequestID)
	if err != nil {
		return nil, err
	}
	titles, err := s.Decode(body)
	if err != nil {
		return nil, err
	}
	if len(titles) == 0 {
		return nil, resolver.NewError(resolver.CodeNotFound, fmt.Sprintf("no results for %q", query), nil)
	}
	slog.Info("search complete", "query", query, "results", len(titles))
	return titles, nil
}

// Decode parses a search response body into titles.
func (s *Searcher) Decode(body []byte) ([]Title, error) {
	var payload searchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, resolver.NewError(resolver.CodeNavigation, "search response is not valid json", err)
	}
	base := strings.TrimRight(s.profile.BaseURL, "/")
	titles := make([]Title, 0, len(payload.Data))
	for _, item := range payload.Data {
		if item.Slug == "" {
			continue
		}
		titles = append(titles, Title{
			Name:  item.Title,
			Slug:  item.Slug,
			Image: s.profile.ImagePrefix + item.Slug + ".jpg",
			Link:  base + "/film/" + item.Slug,
		})
	}
	return titles, nil
}
