// Package notify posts "now playing" messages to an ntfy topic.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const nowPlayingTitle = "soapstream"

// Notifier sends to one ntfy endpoint. A Notifier with no endpoint is
// disabled and every call is a no-op.
type Notifier struct {
	client   *http.Client
	endpoint string
}

// New returns a Notifier for endpoint, e.g. "https://ntfy.sh/my-topic".
func New(client *http.Client, endpoint string) *Notifier {
	return &Notifier{client: client, endpoint: strings.TrimSpace(endpoint)}
}

// Enabled reports whether an endpoint is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.endpoint != "" }

// NowPlaying announces the title (and episode, for series) handed to the player.
func (n *Notifier) NowPlaying(ctx context.Context, title, episode string) error {
	if !n.Enabled() {
		return nil
	}
	msg := "Now playing " + title
	if episode != "" {
		msg += " (episode " + episode + ")"
	}
	return Send(ctx, n.client, n.endpoint, msg)
}

// Send sends a message to the requested endpoint using HTTP POST.
func Send(ctx context.Context, client *http.Client, endpoint, message string) error {
	if endpoint == "" {
		return errors.New("ntfy endpoint not configured")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(message))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", nowPlayingTitle)

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
