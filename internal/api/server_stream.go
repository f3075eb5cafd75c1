package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/soapstream/internal/catalog"
	"github.com/dgnsrekt/soapstream/internal/controller"
	"github.com/dgnsrekt/soapstream/internal/resolver"
)

func registerStreamHandlers(api huma.API, svc Service) {
	type resolveInput struct {
		Body struct {
			URL         string `json:"url" doc:"Title page URL"`
			Title       string `json:"title,omitempty"`
			EpisodeID   string `json:"episode_id,omitempty" doc:"Episode element id; omit for movies"`
			ServerIndex int    `json:"server_index,omitempty" minimum:"0" doc:"0-based mirror index"`
		}
	}
	type resolveOutput struct {
		Body resolver.ResolvedStream
	}
	huma.Register(api, huma.Operation{OperationID: "resolve", Method: http.MethodPost, Path: "/api/v1/resolve", Summary: "Resolve a title page to its stream manifest URL", Tags: []string{"Streams"}},
		func(ctx context.Context, input *resolveInput) (*resolveOutput, error) {
			stream, err := svc.Resolve(ctx, controller.ResolveRequest{
				URL:         input.Body.URL,
				Title:       input.Body.Title,
				EpisodeID:   input.Body.EpisodeID,
				ServerIndex: input.Body.ServerIndex,
			})
			if err != nil {
				return nil, mapErr(err)
			}
			return &resolveOutput{Body: stream}, nil
		})

	type searchInput struct {
		Body struct {
			Query string `json:"query"`
		}
	}
	type searchOutput struct {
		Body struct {
			Titles []catalog.Title `json:"titles"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "search", Method: http.MethodPost, Path: "/api/v1/search", Summary: "Search titles", Tags: []string{"Streams"}},
		func(ctx context.Context, input *searchInput) (*searchOutput, error) {
			titles, err := svc.Search(ctx, input.Body.Query)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &searchOutput{}
			out.Body.Titles = titles
			return out, nil
		})

	type episodesInput struct {
		Body struct {
			URL string `json:"url"`
		}
	}
	type episodesOutput struct {
		Body struct {
			Episodes []string `json:"episodes"`
			Series   bool     `json:"series"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "episodes", Method: http.MethodPost, Path: "/api/v1/episodes", Summary: "List episode ids of a title page", Tags: []string{"Streams"}},
		func(ctx context.Context, input *episodesInput) (*episodesOutput, error) {
			ids, err := svc.Episodes(ctx, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &episodesOutput{}
			out.Body.Episodes = ids
			if out.Body.Episodes == nil {
				out.Body.Episodes = []string{}
			}
			out.Body.Series = len(ids) > 1
			return out, nil
		})
}
