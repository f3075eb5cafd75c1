package types

import "time"

// ResponseEvent is an immutable record of one network response observed on a
// browser page. Handlers receive it by value.
type ResponseEvent struct {
	RequestID    string            `json:"request_id"`
	TargetID     string            `json:"target_id"`
	URL          string            `json:"url"`
	Status       int               `json:"status"`
	MimeType     string            `json:"mime_type,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	ResourceType string            `json:"resource_type,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// PageEvent reports a page (tab/popup) created during a session.
type PageEvent struct {
	TargetID  string    `json:"target_id"`
	OpenerID  string    `json:"opener_id,omitempty"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}
