package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/soapstream/internal/history"
	"github.com/dgnsrekt/soapstream/internal/snapshot"
)

func registerMiscHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status        string `json:"status"`
			Subscribers   int    `json:"subscribers"`
			DroppedEvents int64  `json:"dropped_events"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Subscribers = svc.Broker().ClientCount()
			out.Body.DroppedEvents = svc.Broker().Dropped()
			return out, nil
		})

	type historyOutput struct {
		Body struct {
			Entries []history.Entry `json:"entries"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-history", Method: http.MethodGet, Path: "/api/v1/history", Summary: "List watched titles", Tags: []string{"History"}},
		func(ctx context.Context, input *struct{}) (*historyOutput, error) {
			entries, err := svc.History(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &historyOutput{}
			out.Body.Entries = entries
			return out, nil
		})

	type snapshotsOutput struct {
		Body struct {
			Snapshots []snapshot.SnapshotMeta `json:"snapshots"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-snapshots", Method: http.MethodGet, Path: "/api/v1/snapshots", Summary: "List failure snapshots", Tags: []string{"Diagnostics"}},
		func(ctx context.Context, input *struct{}) (*snapshotsOutput, error) {
			snaps, err := svc.ListSnapshots(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &snapshotsOutput{}
			out.Body.Snapshots = snaps
			return out, nil
		})
}
