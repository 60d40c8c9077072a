package dto

import "time"

// DocumentResponse is document metadata.
type DocumentResponse struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	UploadedByID   string    `json:"uploaded_by_id"`
	UploadedByType string    `json:"uploaded_by_type"`
	FileName       string    `json:"file_name"`
	MimeType       string    `json:"mime_type"`
	SizeBytes      int64     `json:"size_bytes"`
	Category       string    `json:"category"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"`
}

// NotificationResponse is an in-app notification.
type NotificationResponse struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	TitleAr    string     `json:"title_ar"`
	Message    string     `json:"message"`
	MessageAr  string     `json:"message_ar"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	ReadAt     *time.Time `json:"read_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditResponse is one audit trail entry.
type AuditResponse struct {
	ID         string         `json:"id"`
	ActorID    *string        `json:"actor_id"`
	ActorType  *string        `json:"actor_type"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PageMeta describes a paginated list.
type PageMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
