// Package netutil binds the API listener.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
)

// ErrNoBindAddr is returned when no candidate address could be bound.
var ErrNoBindAddr = errors.New("no available api bind addresses")

// Listen binds preferred, or with fallback the first candidate that binds.
// The listener is handed back open so the address cannot be taken between
// the check and the server starting. Duplicate candidates are tried once.
func Listen(preferred string, candidates []string, fallback bool) (net.Listener, error) {
	tried := make(map[string]bool, len(candidates)+1)
	if preferred != "" {
		tried[preferred] = true
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !fallback {
			return nil, fmt.Errorf("bind %s: %w", preferred, err)
		}
		slog.Warn("preferred api address unavailable, trying candidates", "addr", preferred, "error", err)
	}
	for _, addr := range candidates {
		if addr == "" || tried[addr] {
			continue
		}
		tried[addr] = true
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		slog.Debug("api candidate unavailable", "addr", addr, "error", err)
	}
	return nil, ErrNoBindAddr
}
