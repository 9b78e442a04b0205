package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// caseUpdateColumns are overwritten when an upsert hits an existing case
// number. id, case_number and created_at are never touched.
var caseUpdateColumns = []string{
	"updated_at",
	"portal_process_id",
	"portal_connection_id",
	"filing_date",
	"last_activity_date",
	"court",
	"department",
	"process_type",
	"process_class",
	"plaintiff",
	"defendant",
	"parties_text",
	"folio_count",
	"is_private",
	"status",
	"portal_url",
	"sync_generation",
	"last_synced_at",
}

// Store is the gorm-backed repository for cases, audits and monitors.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping reports whether the underlying connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// UpsertCase inserts rec or overwrites the row with the same case number,
// then reloads rec from the store so ID and CreatedAt reflect the stored row.
func (s *Store) UpsertCase(ctx context.Context, rec *CaseRecord) error {
	now := time.Now()
	rec.ID = 0
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "case_number"}},
		DoUpdates: clause.AssignmentColumns(caseUpdateColumns),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert case %s: %w", rec.CaseNumber, err)
	}

	stored, err := s.FindCaseByNumber(ctx, rec.CaseNumber)
	if err != nil {
		return fmt.Errorf("reload case %s: %w", rec.CaseNumber, err)
	}
	*rec = *stored
	return nil
}

func (s *Store) FindCaseByNumber(ctx context.Context, caseNumber string) (*CaseRecord, error) {
	var rec CaseRecord
	err := s.db.WithContext(ctx).Where("case_number = ?", caseNumber).First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// FindCaseIDByNumber selects only the id column.
func (s *Store) FindCaseIDByNumber(ctx context.Context, caseNumber string) (uint, error) {
	var rec CaseRecord
	err := s.db.WithContext(ctx).Select("id").Where("case_number = ?", caseNumber).First(&rec).Error
	if err != nil {
		return 0, translate(err)
	}
	return rec.ID, nil
}

// LoadCase reads a case and its children. Activities come back newest first
// with undated activities last.
func (s *Store) LoadCase(ctx context.Context, caseID uint) (*CaseBundle, error) {
	db := s.db.WithContext(ctx)

	var bundle CaseBundle
	if err := db.First(&bundle.Case, caseID).Error; err != nil {
		return nil, translate(err)
	}

	var err error
	if bundle.Activities, err = s.ListActivities(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.Subjects, err = s.ListSubjects(ctx, caseID); err != nil {
		return nil, err
	}
	if bundle.Documents, err = s.ListDocuments(ctx, caseID); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (s *Store) ListActivities(ctx context.Context, caseID uint) ([]Activity, error) {
	activities := []Activity{}
	err := s.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("activity_date IS NULL, activity_date DESC, sequence DESC").
		Find(&activities).Error
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}

func (s *Store) ListSubjects(ctx context.Context, caseID uint) ([]Subject, error) {
	subjects := []Subject{}
	if err := s.db.WithContext(ctx).Where("case_id = ?", caseID).Order("id").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

func (s *Store) ListDocuments(ctx context.Context, caseID uint) ([]Document, error) {
	documents := []Document{}
	err := s.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("document_date IS NULL, document_date DESC, id").
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return documents, nil
}

// ReplaceActivities writes rows tagged with generation and then removes every
// activity of the case from any other generation, in one transaction. The
// returned slice carries the assigned row IDs.
func (s *Store) ReplaceActivities(ctx context.Context, caseID uint, generation string, rows []Activity) ([]Activity, error) {
	err := replaceChildren(ctx, s.db, caseID, generation, rows, func(a *Activity) {
		a.ID = 0
		a.CaseID = caseID
		a.Generation = generation
	})
	return rows, err
}

func (s *Store) ReplaceSubjects(ctx context.Context, caseID uint, generation string, rows []Subject) ([]Subject, error) {
	err := replaceChildren(ctx, s.db, caseID, generation, rows, func(sub *Subject) {
		sub.ID = 0
		sub.CaseID = caseID
		sub.Generation = generation
	})
	return rows, err
}

func (s *Store) ReplaceDocuments(ctx context.Context, caseID uint, generation string, rows []Document) ([]Document, error) {
	err := replaceChildren(ctx, s.db, caseID, generation, rows, func(d *Document) {
		d.ID = 0
		d.CaseID = caseID
		d.Generation = generation
	})
	return rows, err
}

func replaceChildren[T any](ctx context.Context, db *gorm.DB, caseID uint, generation string, rows []T, tag func(*T)) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			tag(&rows[i])
			if err := tx.Create(&rows[i]).Error; err != nil {
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}

		var model T
		err := tx.Where("case_id = ? AND (generation IS NULL OR generation <> ?)", caseID, generation).
			Delete(&model).Error
		if err != nil {
			return fmt.Errorf("delete stale rows: %w", err)
		}
		return nil
	})
}

// InsertAudit appends a consultation audit entry.
func (s *Store) InsertAudit(ctx context.Context, entry *ConsultationAudit) error {
	if entry.QueryTime.IsZero() {
		entry.QueryTime = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ListAudits returns the most recent entries for a case number, or for all
// cases when caseNumber is empty.
func (s *Store) ListAudits(ctx context.Context, caseNumber string, limit int) ([]ConsultationAudit, error) {
	q := s.db.WithContext(ctx).Order("query_time DESC, id DESC")
	if caseNumber != "" {
		q = q.Where("case_number = ?", caseNumber)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	audits := []ConsultationAudit{}
	if err := q.Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}
	return audits, nil
}

// SearchFilter narrows SearchCases. Empty fields are ignored.
type SearchFilter struct {
	Query       string
	Court       string
	Plaintiff   string
	Defendant   string
	ProcessType string
	Status      string
	Page        int
	Limit       int
}

// SearchCases returns one page of matching cases, most recently synced first,
// and the total number of matches.
func (s *Store) SearchCases(ctx context.Context, f SearchFilter) ([]CaseRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&CaseRecord{})

	if f.Court != "" {
		q = q.Where("court LIKE ?", like(f.Court))
	}
	if f.Plaintiff != "" {
		q = q.Where("plaintiff LIKE ?", like(f.Plaintiff))
	}
	if f.Defendant != "" {
		q = q.Where("defendant LIKE ?", like(f.Defendant))
	}
	if f.ProcessType != "" {
		q = q.Where("process_type LIKE ?", like(f.ProcessType))
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Query != "" {
		term := like(f.Query)
		q = q.Where(s.db.Where("case_number LIKE ?", term).
			Or("court LIKE ?", term).
			Or("plaintiff LIKE ?", term).
			Or("defendant LIKE ?", term))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count cases: %w", err)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	q = q.Order("last_synced_at DESC")
	if f.Limit > 0 {
		q = q.Offset((page - 1) * f.Limit).Limit(f.Limit)
	}
	cases := []CaseRecord{}
	err := q.Find(&cases).Error
	if err != nil {
		return nil, 0, fmt.Errorf("search cases: %w", err)
	}
	return cases, total, nil
}

// AddMonitor records that a requester follows a case.
func (s *Store) AddMonitor(ctx context.Context, m *MonitoredCase) error {
	if _, err := s.FindMonitor(ctx, m.RequesterID, m.CaseID); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) FindMonitor(ctx context.Context, requesterID string, caseID uint) (*MonitoredCase, error) {
	var m MonitoredCase
	err := s.db.WithContext(ctx).
		Where("requester_id = ? AND case_id = ?", requesterID, caseID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// RemoveMonitor hard-deletes the link so the pair can be monitored again.
func (s *Store) RemoveMonitor(ctx context.Context, requesterID string, caseID uint) error {
	res := s.db.WithContext(ctx).Unscoped().
		Where("requester_id = ? AND case_id = ?", requesterID, caseID).
		Delete(&MonitoredCase{})
	if res.Error != nil {
		return fmt.Errorf("remove monitor: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListMonitors(ctx context.Context, requesterID string) ([]MonitoredCase, error) {
	monitors := []MonitoredCase{}
	err := s.db.WithContext(ctx).
		Preload("Case").
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&monitors).Error
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	return monitors, nil
}

func like(v string) string {
	return "%" + v + "%"
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
