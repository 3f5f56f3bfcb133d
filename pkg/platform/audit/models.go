package audit

import (
	"time"

	"github.com/google/uuid"
)

// Operation classifies a field change by what happened to the owning row.
type Operation string

const (
	OperationCreated Operation = "Created"
	OperationUpdated Operation = "Updated"
	OperationDeleted Operation = "Deleted"
)

// UnknownEntityKey is recorded when a row's key cannot be rendered.
const UnknownEntityKey = "UNKNOWN"

// Header is one row per audited HTTP request. It is written in two steps:
// Begin persists the request half before dispatch, Complete fills the
// outcome afterwards. Both run outside the business transaction so a
// header survives a rolled-back request.
type Header struct {
	ID            int64
	CorrelationID uuid.UUID
	Timestamp     time.Time

	Method      string
	Endpoint    string
	Path        string
	QueryString string
	IPAddress   string
	UserAgent   string
	UserID      string
	UserName    string
	RequestBody *string

	// Outcome half, zero until Complete.
	StatusCode       int
	IsSuccess        bool
	ResponseBody     *string
	ResponseTimeMs   int64
	ErrorMessage     *string
	ExceptionDetails *string
}

// Outcome is the response half of a header.
type Outcome struct {
	StatusCode       int
	Elapsed          time.Duration
	ResponseBody     *string
	ErrorMessage     *string
	ExceptionDetails *string
}

// IsSuccess reports whether the status code counts as a successful request.
func IsSuccess(status int) bool {
	return status >= 200 && status < 400
}

// Apply copies the outcome onto the header.
func (o Outcome) Apply(h *Header) {
	h.StatusCode = o.StatusCode
	h.IsSuccess = IsSuccess(o.StatusCode)
	h.ResponseBody = o.ResponseBody
	h.ResponseTimeMs = o.Elapsed.Milliseconds()
	h.ErrorMessage = o.ErrorMessage
	h.ExceptionDetails = o.ExceptionDetails
}

// FieldChange records one property of one row changing inside a request.
// OldValue is nil for Created rows and NewValue is nil for Deleted rows.
type FieldChange struct {
	ID         int64     `json:"-"`
	HeaderID   int64     `json:"headerId"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Operation  Operation `json:"operation"`
	FieldName  string    `json:"fieldName"`
	OldValue   *string   `json:"oldValue"`
	NewValue   *string   `json:"newValue"`
}

// ChangeSet is the unit handed to asynchronous fan-out once field changes
// have been persisted.
type ChangeSet struct {
	HeaderID   int64         `json:"headerId"`
	RequestID  string        `json:"requestId,omitempty"`
	UserName   string        `json:"userName"`
	RecordedAt time.Time     `json:"recordedAt"`
	Changes    []FieldChange `json:"changes"`
}
