package player

import (
	"context"
	"strings"
	"testing"
)

func TestCommandArgs(t *testing.T) {
	p := New("", "https://ployan.live")
	cmd := p.Command(context.Background(), "https://cdn.example.com/master.m3u8")
	got := strings.Join(cmd.Args, " ")
	want := "mpv --referrer=https://ployan.live https://cdn.example.com/master.m3u8"
	if got != want {
		t.Fatalf("Args = %q, want %q", got, want)
	}
}

func TestArgsWithoutReferrer(t *testing.T) {
	p := New("vlc", "")
	if got := p.Args("u"); len(got) != 1 || got[0] != "u" {
		t.Fatalf("Args() = %v", got)
	}
}

func TestPlayMissingBinary(t *testing.T) {
	p := New("soapstream-no-such-player", "")
	if err := p.Play(context.Background(), "https://cdn.example.com/master.m3u8"); err == nil {
		t.Fatal("Play() error = nil for a missing binary")
	}
	if err := p.Play(context.Background(), ""); err == nil {
		t.Fatal("Play() error = nil for an empty url")
	}
}
