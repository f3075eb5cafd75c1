// Package player hands a resolved stream to an external media player.
package player

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

// Player launches an external player binary with a referrer header.
type Player struct {
	Binary   string
	Referrer string
	Stdout   io.Writer
	Stderr   io.Writer
}

func New(binary, referrer string) *Player {
	if binary == "" {
		binary = "mpv"
	}
	return &Player{Binary: binary, Referrer: referrer, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Args returns the player arguments for streamURL.
func (p *Player) Args(streamURL string) []string {
	var args []string
	if p.Referrer != "" {
		args = append(args, "--referrer="+p.Referrer)
	}
	return append(args, streamURL)
}

// Command builds the player process for streamURL.
func (p *Player) Command(ctx context.Context, streamURL string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.Binary, p.Args(streamURL)...)
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	return cmd
}

// Play runs the player and blocks until it exits.
func (p *Player) Play(ctx context.Context, streamURL string) error {
	if streamURL == "" {
		return fmt.Errorf("player: stream url is required")
	}
	if _, err := exec.LookPath(p.Binary); err != nil {
		return fmt.Errorf("player: %s not found: %w", p.Binary, err)
	}
	slog.Info("starting player", "binary", p.Binary, "referrer", p.Referrer)
	if err := p.Command(ctx, streamURL).Run(); err != nil {
		return fmt.Errorf("player: %s exited: %w", p.Binary, err)
	}
	return nil
}
