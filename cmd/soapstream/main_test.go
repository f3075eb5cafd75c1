package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	want := []string{"watch", "resolve", "search", "episodes", "history", "serve"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q missing: %v", name, err)
		}
	}
	for _, flag := range []string{"log-level", "profile", "headful"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("persistent flag %q missing", flag)
		}
	}
	resolve, _, _ := root.Find([]string{"resolve"})
	for _, flag := range []string{"episode", "title", "server"} {
		if resolve.Flags().Lookup(flag) == nil {
			t.Fatalf("resolve flag %q missing", flag)
		}
	}
}

func TestResolveRequiresURL(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"resolve"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Fatal("resolve without url succeeded")
	}
}

func TestSetupLoggerWritesFile(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "soapstream.log")
	if err := setupLogger(&buf, "warn", path); err != nil {
		t.Fatalf("setupLogger() error = %v", err)
	}
	slog.Info("hidden")
	slog.Warn("shown", "k", "v")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("console output = %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "k=v") {
		t.Fatalf("log file = %q", data)
	}
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, map[string]string{"stream_url": "https://cdn/x.m3u8"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"stream_url\": \"https://cdn/x.m3u8\"\n}\n" {
		t.Fatalf("writeJSON() = %q", buf.String())
	}
}
