package gormstore

import (
	"time"

	audit "ledger/pkg/platform/audit"
)

// headerRow maps audit.Header to the api_audit_log table.
type headerRow struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CorrelationID      string    `gorm:"column:correlation_id;size:36;not null;uniqueIndex"`
	Timestamp          time.Time `gorm:"column:timestamp;not null;index"`
	HTTPMethod         string    `gorm:"column:http_method;size:10;not null"`
	Endpoint           string    `gorm:"column:endpoint;size:500;not null"`
	RequestPath        string    `gorm:"column:request_path;size:500;not null"`
	QueryString        *string   `gorm:"column:query_string;size:2000"`
	IPAddress          *string   `gorm:"column:ip_address;size:45"`
	UserAgent          *string   `gorm:"column:user_agent;size:500"`
	UserID             *string   `gorm:"column:user_id;size:100;index"`
	Username           string    `gorm:"column:username;size:100;not null"`
	RequestBody        *string   `gorm:"column:request_body"`
	ResponseStatusCode *int      `gorm:"column:response_status_code"`
	ResponseBody       *string   `gorm:"column:response_body"`
	IsSuccess          bool      `gorm:"column:is_success;not null;default:false"`
	ResponseTimeMs     *int64    `gorm:"column:response_time_ms"`
	ErrorMessage       *string   `gorm:"column:error_message;size:2000"`
	ExceptionDetails   *string   `gorm:"column:exception_details"`

	Changes []changeRow `gorm:"foreignKey:AuditLogID;constraint:OnDelete:CASCADE"`
}

func (headerRow) TableName() string { return "api_audit_log" }

// changeRow maps audit.FieldChange to the api_audit_log_entity_change table.
type changeRow struct {
	ID           int64   `gorm:"column:id;primaryKey;autoIncrement"`
	AuditLogID   int64   `gorm:"column:audit_log_id;not null;index"`
	EntityType   string  `gorm:"column:entity_type;size:100;not null;index:idx_change_entity"`
	EntityID     string  `gorm:"column:entity_id;size:100;not null;index:idx_change_entity"`
	Operation    string  `gorm:"column:operation;size:10;not null"`
	PropertyName string  `gorm:"column:property_name;size:100;not null"`
	OldValue     *string `gorm:"column:old_value"`
	NewValue     *string `gorm:"column:new_value"`
}

func (changeRow) TableName() string { return "api_audit_log_entity_change" }

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toHeaderRow(h *audit.Header) headerRow {
	return headerRow{
		CorrelationID: h.CorrelationID.String(),
		Timestamp:     h.Timestamp,
		HTTPMethod:    h.Method,
		Endpoint:      h.Endpoint,
		RequestPath:   h.Path,
		QueryString:   nullable(h.QueryString),
		IPAddress:     nullable(h.IPAddress),
		UserAgent:     nullable(h.UserAgent),
		UserID:        nullable(h.UserID),
		Username:      h.UserName,
		RequestBody:   h.RequestBody,
	}
}

func (r headerRow) toHeader() audit.Header {
	h := audit.Header{
		ID:               r.ID,
		Timestamp:        r.Timestamp,
		Method:           r.HTTPMethod,
		Endpoint:         r.Endpoint,
		Path:             r.RequestPath,
		QueryString:      deref(r.QueryString),
		IPAddress:        deref(r.IPAddress),
		UserAgent:        deref(r.UserAgent),
		UserID:           deref(r.UserID),
		UserName:         r.Username,
		RequestBody:      r.RequestBody,
		ResponseBody:     r.ResponseBody,
		IsSuccess:        r.IsSuccess,
		ErrorMessage:     r.ErrorMessage,
		ExceptionDetails: r.ExceptionDetails,
	}
	_ = h.CorrelationID.UnmarshalText([]byte(r.CorrelationID))
	if r.ResponseStatusCode != nil {
		h.StatusCode = *r.ResponseStatusCode
	}
	if r.ResponseTimeMs != nil {
		h.ResponseTimeMs = *r.ResponseTimeMs
	}
	return h
}

func toChangeRow(headerID int64, c audit.FieldChange) changeRow {
	return changeRow{
		AuditLogID:   headerID,
		EntityType:   c.EntityType,
		EntityID:     c.EntityID,
		Operation:    string(c.Operation),
		PropertyName: c.FieldName,
		OldValue:     c.OldValue,
		NewValue:     c.NewValue,
	}
}

func (r changeRow) toFieldChange() audit.FieldChange {
	return audit.FieldChange{
		ID:         r.ID,
		HeaderID:   r.AuditLogID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Operation:  audit.Operation(r.Operation),
		FieldName:  r.PropertyName,
		OldValue:   r.OldValue,
		NewValue:   r.NewValue,
	}
}
