package models

import "time"

// SyncStatus tracks the training state of one content item.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// ContentItem is a piece of site content (post, page, ...) registered with
// chatlink for training. Items are pushed to the platform by public URL.
type ContentItem struct {
	ID         int64      `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Published  bool       `json:"published"`
	Excluded   bool       `json:"excluded"`
	SyncStatus SyncStatus `json:"sync_status"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
	SyncError  string     `json:"sync_error,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Eligible reports whether the item may be included in a sync pass.
// Excluded items are skipped by both bulk and individual sync.
func (c *ContentItem) Eligible() bool {
	return c.Published && !c.Excluded
}

// SyncEvent records one sync attempt outcome for later inspection.
type SyncEvent struct {
	ID        int64      `json:"id"`
	ItemID    int64      `json:"item_id"`
	Status    SyncStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
