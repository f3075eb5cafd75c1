// Package controller composes the resolver engine with search, history,
// playback and the optional diagnostics collaborators. The CLI and the HTTP
// API both drive it.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dgnsrekt/soapstream/internal/capture"
	"github.com/dgnsrekt/soapstream/internal/catalog"
	"github.com/dgnsrekt/soapstream/internal/config"
	"github.com/dgnsrekt/soapstream/internal/history"
	"github.com/dgnsrekt/soapstream/internal/notify"
	"github.com/dgnsrekt/soapstream/internal/player"
	"github.com/dgnsrekt/soapstream/internal/relay"
	"github.com/dgnsrekt/soapstream/internal/resolver"
	"github.com/dgnsrekt/soapstream/internal/snapshot"
)

// Engine is the resolver surface the service drives.
type Engine interface {
	Resolve(ctx context.Context, target resolver.Target) (resolver.ResolvedStream, error)
	Episodes(ctx context.Context, pageURL string) ([]string, error)
}

// Player plays a resolved stream.
type Player interface {
	Play(ctx context.Context, streamURL string) error
}

type searchFunc func(ctx context.Context, query string) ([]catalog.Title, error)

// ResolveRequest names one title (and optionally episode and server).
type ResolveRequest struct {
	URL         string
	Title       string
	EpisodeID   string
	ServerIndex int
}

// WatchRequest resolves, records and optionally plays a title.
type WatchRequest struct {
	ResolveRequest
	Query string
	Play  bool
}

// Service wraps the operations exposed by the CLI and API.
type Service struct {
	engine   Engine
	search   searchFunc
	history  *history.Store
	player   Player
	notifier *notify.Notifier
	broker   *relay.Broker
	snaps    *snapshot.Store
	recorder *capture.Recorder
}

// Options carries the collaborators built by New.
type Options struct {
	Config  *config.Config
	Profile *config.Profile
	Open    resolver.Opener
	Broker  *relay.Broker
	Relay   *relay.RelayConfig
	Client  *http.Client
}

// New builds the manager with relay, capture and snapshot hooks installed.
// Capture and snapshots are enabled by their directory settings.
func New(opts Options) (*Service, error) {
	cfg, profile := opts.Config, opts.Profile
	if cfg == nil {
		cfg = config.Default()
	}
	if profile == nil {
		profile = config.DefaultProfile()
	}
	relayCfg := opts.Relay
	if relayCfg == nil {
		relayCfg = relay.DefaultConfig()
	}
	broker := opts.Broker
	if broker == nil {
		broker = relay.NewBroker()
	}

	s := &Service{
		history:  history.NewStore(cfg.HistoryFile),
		player:   player.New(cfg.PlayerBinary, profile.Referrer),
		notifier: notify.New(opts.Client, cfg.NTFYURL),
		broker:   broker,
	}

	hooks := []resolver.Hooks{relay.NewRelay(relayCfg, broker).Hooks()}
	if cfg.CaptureDir != "" {
		s.recorder = capture.NewRecorder(cfg.CaptureDir, cfg.CaptureBufferSize, cfg.CaptureMaxFileSizeMB, profile)
		hooks = append(hooks, s.recorder.Hooks())
		slog.Info("response capture enabled", "dir", cfg.CaptureDir)
	}

	manager := resolver.NewManager(cfg, profile, opts.Open, resolver.MergeHooks(hooks...))
	if cfg.SnapshotDir != "" {
		snaps, err := snapshot.NewStore(cfg.SnapshotDir)
		if err != nil {
			return nil, err
		}
		s.snaps = snaps
		manager.SetFailureRecorder(snaps)
		slog.Info("failure snapshots enabled", "dir", cfg.SnapshotDir)
	}

	searcher := catalog.NewSearcher(profile, cfg.RequestTimeout())
	s.engine = manager
	s.search = func(ctx context.Context, query string) ([]catalog.Title, error) {
		var titles []catalog.Title
		err := manager.WithSession(ctx, func(sess *resolver.Session) error {
			got, err := searcher.Search(ctx, sess, query)
			titles = got
			return err
		})
		return titles, err
	}
	return s, nil
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return resolver.NewError(resolver.CodeValidation, fieldName+" is required", nil)
	}
	return nil
}

// Broker returns the progress event broker.
func (s *Service) Broker() *relay.Broker { return s.broker }

// Resolve runs one resolution.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) (resolver.ResolvedStream, error) {
	if err := s.requireNonEmpty(req.URL, "url"); err != nil {
		return resolver.ResolvedStream{}, err
	}
	target := resolver.NewTarget(strings.TrimSpace(req.URL), strings.TrimSpace(req.Title)).
		WithEpisode(strings.TrimSpace(req.EpisodeID)).
		WithServer(req.ServerIndex)
	return s.engine.Resolve(ctx, target)
}

// Search looks titles up on the site.
func (s *Service) Search(ctx context.Context, query string) ([]catalog.Title, error) {
	if err := s.requireNonEmpty(query, "query"); err != nil {
		return nil, err
	}
	return s.search(ctx, strings.TrimSpace(query))
}

// Episodes lists the episode ids of a series page. Movies yield at most one.
func (s *Service) Episodes(ctx context.Context, pageURL string) ([]string, error) {
	if err := s.requireNonEmpty(pageURL, "url"); err != nil {
		return nil, err
	}
	return s.engine.Episodes(ctx, strings.TrimSpace(pageURL))
}

// History returns the watched titles.
func (s *Service) History(ctx context.Context) ([]history.Entry, error) {
	return s.history.Load()
}

// Watch resolves req, records it in history, announces it and, when asked,
// hands it to the player. History and notification failures are logged and
// do not fail the watch.
func (s *Service) Watch(ctx context.Context, req WatchRequest) (resolver.ResolvedStream, error) {
	if err := s.requireNonEmpty(req.Title, "title"); err != nil {
		return resolver.ResolvedStream{}, err
	}
	stream, err := s.Resolve(ctx, req.ResolveRequest)
	if err != nil {
		return resolver.ResolvedStream{}, err
	}

	entry := history.MovieEntry(req.Query, stream.Title, stream.StreamURL, stream.SourceLink)
	if stream.EpisodeID != "" {
		entry = history.SeriesEntry(req.Query, stream.Title, stream.EpisodeID, stream.StreamURL, stream.SourceLink)
	}
	if _, err := s.history.Record(entry); err != nil {
		slog.Warn("history not updated", "title", stream.Title, "error", err)
	}
	if err := s.notifier.NowPlaying(ctx, stream.Title, stream.EpisodeID); err != nil {
		slog.Warn("now playing notification failed", "title", stream.Title, "error", err)
	}

	if !req.Play || s.player == nil {
		return stream, nil
	}
	if err := s.player.Play(ctx, stream.StreamURL); err != nil {
		if errors.Is(err, context.Canceled) {
			return stream, err
		}
		return stream, resolver.NewError(resolver.CodeSessionFault, "player failed", err)
	}
	return stream, nil
}

// ListSnapshots returns stored failure snapshots, newest first. It is empty
// when snapshots are disabled.
func (s *Service) ListSnapshots(ctx context.Context) ([]snapshot.SnapshotMeta, error) {
	if s.snaps == nil {
		return []snapshot.SnapshotMeta{}, nil
	}
	return s.snaps.List()
}

// Close flushes capture files.
func (s *Service) Close() error {
	if s.recorder != nil {
		return s.recorder.Close()
	}
	return nil
}
