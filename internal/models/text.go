package models

import (
	"time"
)

// TextState represents the lifecycle state of an original text
type TextState string

const (
	TextStateToSimplify TextState = "to_simplify"
	TextStateProcessing TextState = "processing"
	TextStateInUse      TextState = "in_use"
	TextStateIgnore     TextState = "ignore"
)

// ValidTextStates defines the only legal text states
var ValidTextStates = map[TextState]bool{
	TextStateToSimplify: true,
	TextStateProcessing: true,
	TextStateInUse:      true,
	TextStateIgnore:     true,
}

// TextRecord represents an original text fragment, stored once and
// referenced by its content hash.
type TextRecord struct {
	ID             int64     `json:"id" db:"id"`
	Original       string    `json:"original" db:"original"`
	Field          string    `json:"field" db:"field"`
	IsHTML         bool      `json:"is_html" db:"html"`
	Hash           string    `json:"hash" db:"hash"`
	SourceLanguage string    `json:"source_language" db:"lang"`
	State          TextState `json:"state" db:"state"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Simplification represents the easy-language rendering of an original
// for one target language.
type Simplification struct {
	ID             int64     `json:"id" db:"id"`
	TextID         int64     `json:"text_id" db:"text_id"`
	SimplifiedText string    `json:"simplified_text" db:"simplified_text"`
	Hash           string    `json:"hash" db:"hash"`
	TargetLanguage string    `json:"target_language" db:"language"`
	UsedAPI        string    `json:"used_api" db:"used_api"`
	JobID          string    `json:"job_id,omitempty" db:"jobid"`
	UserID         int64     `json:"user_id,omitempty" db:"user_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TextUsage links an original text to a content object it belongs to
type TextUsage struct {
	ID          int64     `json:"id" db:"id"`
	TextID      int64     `json:"text_id" db:"text_id"`
	ObjectID    int64     `json:"object_id" db:"object_id"`
	ObjectType  string    `json:"object_type" db:"object_type"`
	TenantID    int       `json:"tenant_id" db:"tenant_id"`
	Position    int       `json:"position" db:"position"`
	PageBuilder string    `json:"page_builder" db:"page_builder"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// TextOrder controls the ordering of text queries
type TextOrder string

const (
	// TextOrderDefault puts title texts before all others (cheap work
	// first), then oldest first.
	TextOrderDefault     TextOrder = "default"
	TextOrderCreatedAsc  TextOrder = "created_asc"
	TextOrderCreatedDesc TextOrder = "created_desc"
)

// TextFilter describes a query over stored originals
type TextFilter struct {
	ID                int64
	Hash              string
	Original          string
	Field             string
	State             TextState
	SourceLanguage    string
	TargetLanguage    string
	ObjectID          int64
	ObjectType        string
	HasSimplification bool
	NotLocked         bool
	NotPrevented      bool
	ObjectState       string
	ObjectNotState    string
	Order             TextOrder
	Limit             int
}
