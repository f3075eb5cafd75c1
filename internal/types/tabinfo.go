package types

// TabInfo holds metadata about a browser page tracked during a session.
type TabInfo struct {
	TargetID    string `json:"target_id"`
	URL         string `json:"url"`
	PathSegment string `json:"path_segment"` // Transformed URL path, e.g., "film_superman"
	BrowserID   string `json:"browser_id"`   // Short ID from target ID, e.g., "B0D5A8E8"
	Main        bool   `json:"main,omitempty"`
}
