package relay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	FeedState  = "state"
	FeedPopup  = "popup"
	FeedStream = "stream"
)

// FeedConfig enables one progress feed. States limits the state feed to the
// listed trigger states; empty means all.
type FeedConfig struct {
	Name   string   `yaml:"name"`
	States []string `yaml:"states,omitempty"`
}

// RelayConfig is the top-level YAML configuration.
type RelayConfig struct {
	Feeds []FeedConfig `yaml:"feeds"`
}

// DefaultConfig enables every feed.
func DefaultConfig() *RelayConfig {
	return &RelayConfig{Feeds: []FeedConfig{{Name: FeedState}, {Name: FeedPopup}, {Name: FeedStream}}}
}

// LoadConfig reads and validates a relay YAML config file. An empty path
// yields DefaultConfig.
func LoadConfig(path string) (*RelayConfig, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("relay config: %w", err)
	}
	var cfg RelayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("relay config: %w", err)
	}
	for i, f := range cfg.Feeds {
		switch f.Name {
		case FeedState, FeedPopup, FeedStream:
		case "":
			return nil, fmt.Errorf("relay config: feed[%d] missing name", i)
		default:
			return nil, fmt.Errorf("relay config: feed[%d] unknown feed %q", i, f.Name)
		}
	}
	return &cfg, nil
}
