package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ObjectState values for content objects
const (
	ObjectStatePublished = "published"
	ObjectStateDraft     = "draft"
	ObjectStateTrash     = "trash"
)

// ContentObject is an editable unit of content (page, post, taxonomy
// term) that can contain one or more original texts. An object is
// either simplifiable (a source-language original) or a simplified
// per-language copy linked to its original via OriginalID.
type ContentObject struct {
	ID                     int64     `json:"id" db:"id"`
	Type                   string    `json:"type" db:"type"`
	Title                  string    `json:"title" db:"title"`
	Body                   string    `json:"body" db:"body"`
	Language               string    `json:"language" db:"language"`
	OriginalID             *int64    `json:"original_id,omitempty" db:"original_id"`
	AutomaticModePrevented bool      `json:"automatic_mode_prevented" db:"automatic_mode_prevented"`
	Locked                 bool      `json:"locked" db:"locked"`
	State                  string    `json:"state" db:"state"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time `json:"updated_at" db:"updated_at"`
}

// IsSimplified reports whether the object is a derived per-language copy
func (o *ContentObject) IsSimplified() bool {
	return o.OriginalID != nil
}

// IsSimplifiable reports whether originals can be extracted from the object
func (o *ContentObject) IsSimplifiable() bool {
	return o.OriginalID == nil
}

// IsLocked reports whether an external edit lock is held on the object
func (o *ContentObject) IsLocked() bool {
	return o.Locked
}

// IsAutomaticModePrevented reports whether the object opted out of
// unattended batch runs.
func (o *ContentObject) IsAutomaticModePrevented() bool {
	return o.AutomaticModePrevented
}

// RunHash returns the run-marker key for the object. All run state for
// one object lives under this hash.
func (o *ContentObject) RunHash() string {
	return ObjectHash(o.ID, o.Type)
}

// ObjectHash computes the run-marker key for an (id, type) pair
func ObjectHash(id int64, objectType string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", objectType, id)))
	return hex.EncodeToString(sum[:])
}
