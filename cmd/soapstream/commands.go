package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/soapstream/internal/controller"
	"github.com/dgnsrekt/soapstream/internal/prompt"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var noPlay bool
	cmd := &cobra.Command{
		Use:   "watch [query]",
		Short: "Search, pick a title (and episode) and play it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			p := prompt.New(cmd.InOrStdin(), cmd.OutOrStdout())
			err = runWatch(cmd, a.svc, p, strings.Join(args, " "), !noPlay)
			if errors.Is(err, prompt.ErrQuit) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&noPlay, "no-play", false, "print the stream URL instead of starting the player")
	return cmd
}

func runWatch(cmd *cobra.Command, svc *controller.Service, p *prompt.Prompter, query string, play bool) error {
	ctx := cmd.Context()
	if strings.TrimSpace(query) == "" {
		q, err := p.Ask("Search: ")
		if err != nil {
			return err
		}
		query = q
	}

	titles, err := svc.Search(ctx, query)
	if err != nil {
		return err
	}
	names := make([]string, len(titles))
	for i, t := range titles {
		names[i] = t.Name
	}
	p.Header(fmt.Sprintf("%d results for %q", len(titles), query))
	p.Grid(names)
	idx, err := p.Choose("title", len(titles))
	if err != nil {
		return err
	}
	title := titles[idx]

	req := controller.WatchRequest{
		ResolveRequest: controller.ResolveRequest{URL: title.Link, Title: title.Name},
		Query:          query,
		Play:           play,
	}
	episodes, err := svc.Episodes(ctx, title.Link)
	if err != nil {
		return err
	}
	if len(episodes) > 1 {
		p.Header(title.Name)
		p.Grid(episodes)
		ep, err := p.Choose("episode", len(episodes))
		if err != nil {
			return err
		}
		req.EpisodeID = episodes[ep]
	}

	p.Println("Resolving " + title.Name + "...")
	stream, err := svc.Watch(ctx, req)
	if err != nil {
		return err
	}
	if !play {
		p.Println(stream.StreamURL)
	}
	return nil
}

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var req controller.ResolveRequest
	cmd := &cobra.Command{
		Use:   "resolve <url>",
		Short: "Resolve a title page to its stream URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			req.URL = args[0]
			stream, err := a.svc.Resolve(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stream)
		},
	}
	cmd.Flags().StringVar(&req.EpisodeID, "episode", "", "episode element id")
	cmd.Flags().StringVar(&req.Title, "title", "", "title recorded with the result")
	cmd.Flags().IntVar(&req.ServerIndex, "server", 0, "0-based mirror index")
	return cmd
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			titles, err := a.svc.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), titles)
		},
	}
}

func newEpisodesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "episodes <url>",
		Short: "List the episode ids of a title page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			ids, err := a.svc.Episodes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), ids)
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show watched titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, appOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.svc.History(cmd.Context())
			if err != nil {
				return err
			}
			p := prompt.New(os.Stdin, cmd.OutOrStdout())
			if len(entries) == 0 {
				p.Println("No history yet.")
				return nil
			}
			for _, e := range entries {
				p.Header(fmt.Sprintf("%s (%s, %s)", e.Title, e.Type, e.WatchedAt))
				for _, k := range slices.Sorted(maps.Keys(e.Metadata)) {
					p.Println("  " + k + ": " + e.Metadata[k])
				}
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
