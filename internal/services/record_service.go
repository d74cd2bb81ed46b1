package services

import (
	"context"
	"encoding/json"
	"fmt"

	"dispatchboard/internal/database"
	"dispatchboard/internal/models"
)

// RecordService archives the raw bitable records alongside the expanded
// tasks, so a mapping or normalization bug can be replayed against the
// original payloads without re-fetching.
type RecordService struct {
	db *database.DB
}

// NewRecordService creates a new record service
func NewRecordService(db *database.DB) *RecordService {
	return &RecordService{db: db}
}

// ArchiveRaw replaces the raw-record archive with the given fetch.
func (s *RecordService) ArchiveRaw(ctx context.Context, records []models.RawRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM bitable_records"); err != nil {
		return fmt.Errorf("failed to clear record archive: %w", err)
	}

	var insert string
	if s.db.Driver() == "mysql" {
		insert = `INSERT INTO bitable_records (record_id, fields, created_time, last_modified_time)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE fields = VALUES(fields),
				created_time = VALUES(created_time),
				last_modified_time = VALUES(last_modified_time)`
	} else {
		insert = `INSERT OR REPLACE INTO bitable_records (record_id, fields, created_time, last_modified_time)
			VALUES (?, ?, ?, ?)`
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		fields, err := json.Marshal(record.Fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields of %s: %w", record.RecordID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			record.RecordID, string(fields), record.CreatedTime, record.LastModifiedTime,
		); err != nil {
			return fmt.Errorf("failed to archive record %s: %w", record.RecordID, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of archived raw records.
func (s *RecordService) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bitable_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count archived records: %w", err)
	}
	return count, nil
}
