// Package gormstore persists the audit log through GORM. Postgres is used in
// production; SQLite serves local runs and tests.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/sentinel"
)

// SQLitePrefix selects the SQLite dialect in Open.
const SQLitePrefix = "sqlite:"

const changeBatchSize = 200

// Store implements audit.Store on a GORM connection. Every call runs in its
// own transaction, independent of any business transaction in flight.
type Store struct {
	db *gorm.DB
}

// New wraps an open GORM connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn and migrates the audit tables. A dsn starting with
// "sqlite:" opens SQLite with foreign keys enforced; anything else is a
// Postgres connection string.
func Open(dsn string, debug bool) (*gorm.DB, error) {
	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, SQLitePrefix) {
		dialector = sqlite.Open(withForeignKeys(strings.TrimPrefix(dsn, SQLitePrefix)))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the audit tables.
func Migrate(db *gorm.DB) error {
	for _, m := range []any{&headerRow{}, &changeRow{}} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func (s *Store) CreateHeader(ctx context.Context, h *audit.Header) error {
	row := toHeaderRow(h)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit header: %w", err)
	}
	h.ID = row.ID
	return nil
}

func (s *Store) CompleteHeader(ctx context.Context, id int64, outcome audit.Outcome) error {
	h := audit.Header{}
	outcome.Apply(&h)
	res := s.db.WithContext(ctx).Model(&headerRow{}).Where("id = ?", id).Updates(map[string]any{
		"response_status_code": h.StatusCode,
		"is_success":           h.IsSuccess,
		"response_body":        h.ResponseBody,
		"response_time_ms":     h.ResponseTimeMs,
		"error_message":        h.ErrorMessage,
		"exception_details":    h.ExceptionDetails,
	})
	if res.Error != nil {
		return fmt.Errorf("complete audit header: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("audit header %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Store) AppendChanges(ctx context.Context, headerID int64, changes []audit.FieldChange) error {
	if len(changes) == 0 {
		return nil
	}
	rows := make([]changeRow, len(changes))
	for i, c := range changes {
		rows[i] = toChangeRow(headerID, c)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&headerRow{}).Where("id = ?", headerID).Count(&n).Error; err != nil {
			return fmt.Errorf("lookup audit header: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("audit header %d: %w", headerID, sentinel.ErrNotFound)
		}
		if err := tx.CreateInBatches(&rows, changeBatchSize).Error; err != nil {
			return fmt.Errorf("insert field changes: %w", err)
		}
		return nil
	})
}

// Header loads a header by id.
func (s *Store) Header(ctx context.Context, id int64) (audit.Header, error) {
	var row headerRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return audit.Header{}, fmt.Errorf("audit header %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return audit.Header{}, fmt.Errorf("load audit header: %w", err)
	}
	return row.toHeader(), nil
}

// ListChanges returns the field changes recorded under a header in insert order.
func (s *Store) ListChanges(ctx context.Context, headerID int64) ([]audit.FieldChange, error) {
	var rows []changeRow
	if err := s.db.WithContext(ctx).Where("audit_log_id = ?", headerID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list field changes: %w", err)
	}
	out := make([]audit.FieldChange, len(rows))
	for i, r := range rows {
		out[i] = r.toFieldChange()
	}
	return out, nil
}
