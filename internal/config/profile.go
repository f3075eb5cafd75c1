package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent when SOAP_USER_AGENT is unset.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// Rule is one heuristic used to recognise a network response. All string
// comparisons are case-insensitive substring matches.
type Rule struct {
	Name         string   `yaml:"name" json:"name"`
	URLContains  []string `yaml:"url_contains" json:"url_contains,omitempty"`
	ContentTypes []string `yaml:"content_types" json:"content_types,omitempty"`
	URLKeywords  []string `yaml:"url_keywords" json:"url_keywords,omitempty"`
	SkipErrors   bool     `yaml:"skip_errors" json:"skip_errors,omitempty"`
}

// Tracking describes tracking-redirect URLs that wrap the real destination.
type Tracking struct {
	Markers []string `yaml:"markers"`
	Params  []string `yaml:"params"`
}

// Selectors locate the page controls the playback trigger interacts with.
type Selectors struct {
	PlayNow     string `yaml:"play_now"`
	Server      string `yaml:"server"`
	EpisodeList string `yaml:"episode_list"`
	PlayerFrame string `yaml:"player_frame"`
}

// Profile is the site-specific data the engine runs against. It drifts with
// the target site, so it is loaded from YAML rather than compiled in.
type Profile struct {
	BaseURL     string    `yaml:"base_url"`
	ImagePrefix string    `yaml:"image_prefix"`
	PlayAnchor  string    `yaml:"play_anchor"`
	Referrer    string    `yaml:"referrer"`
	Selectors   Selectors `yaml:"selectors"`
	StreamRules []Rule    `yaml:"stream_rules"`
	SearchRules []Rule    `yaml:"search_rules"`
	Tracking    Tracking  `yaml:"tracking"`
}

// DefaultProfile returns the built-in profile for the observed target site.
func DefaultProfile() *Profile {
	return &Profile{
		BaseURL:     "https://ww3.soap2dayhdz.com",
		ImagePrefix: "https://img.icdn.my.id/thumb/w_156/h_234/",
		PlayAnchor:  "#play-now",
		Referrer:    "https://ployan.live",
		Selectors: Selectors{
			PlayNow:     "#play-now",
			Server:      "[id^='srv-']",
			EpisodeList: "#eps-list button",
			PlayerFrame: "#playit",
		},
		StreamRules: []Rule{
			{
				Name:         "manifest-content-type",
				URLContains:  []string{".m3u8"},
				ContentTypes: []string{"mpegurl", "apple.mpegurl", "x-mpegurl"},
				SkipErrors:   true,
			},
			{
				Name:        "manifest-keyword",
				URLContains: []string{".m3u8"},
				URLKeywords: []string{"playlist", "master"},
				SkipErrors:  true,
			},
		},
		SearchRules: []Rule{
			{
				Name:         "search-json",
				URLContains:  []string{"/search"},
				ContentTypes: []string{"application/json"},
				SkipErrors:   true,
			},
		},
		Tracking: Tracking{
			Markers: []string{"ping.gif", "prd.jwpltx.com", "jwpltx", "jwplayer6"},
			Params:  []string{"mu"},
		},
	}
}

// LoadProfile returns the default profile overlaid with the YAML file at
// path. An empty path yields the defaults.
func LoadProfile(path string) (*Profile, error) {
	p := DefaultProfile()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects profiles the engine cannot run with.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.BaseURL) == "" {
		return fmt.Errorf("profile: missing base_url")
	}
	if p.Selectors.PlayNow == "" || p.Selectors.Server == "" {
		return fmt.Errorf("profile: selectors.play_now and selectors.server are required")
	}
	if len(p.StreamRules) == 0 {
		return fmt.Errorf("profile: at least one stream rule is required")
	}
	for i, r := range p.StreamRules {
		if r.Name == "" {
			return fmt.Errorf("profile: stream_rules[%d] missing name", i)
		}
	}
	for i, r := range p.SearchRules {
		if r.Name == "" {
			return fmt.Errorf("profile: search_rules[%d] missing name", i)
		}
	}
	return nil
}
