package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/internal/metrics"
	"github.com/JustJay7/judicial-case-sync/pkg/logger"
	"github.com/google/uuid"
)

const (
	CollectionActivities = "activities"
	CollectionSubjects   = "subjects"
	CollectionDocuments  = "documents"
)

// ErrPersistence matches every *PersistenceError via errors.Is.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError means the main case record could not be written. No child
// collection is touched when it is returned.
type PersistenceError struct {
	CaseNumber string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist case %s: %v", e.CaseNumber, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// Store is the subset of the database store a sync needs.
type Store interface {
	UpsertCase(ctx context.Context, rec *database.CaseRecord) error
	ReplaceActivities(ctx context.Context, caseID uint, generation string, rows []database.Activity) ([]database.Activity, error)
	ReplaceSubjects(ctx context.Context, caseID uint, generation string, rows []database.Subject) ([]database.Subject, error)
	ReplaceDocuments(ctx context.Context, caseID uint, generation string, rows []database.Document) ([]database.Document, error)
}

// CollectionFailure is a child collection that kept its previous rows.
type CollectionFailure struct {
	Collection string `json:"collection"`
	Error      string `json:"error"`
}

// Result describes one sync. Bundle is the stored view: the upserted record
// plus the rows written this generation, or the normalized rows for a
// collection that failed.
type Result struct {
	CaseID     uint
	Generation string
	Counts     map[string]int
	Failures   []CollectionFailure
	Bundle     *database.CaseBundle
}

// Partial reports whether any child collection failed.
func (r *Result) Partial() bool {
	return len(r.Failures) > 0
}

// Coordinator persists normalized cases. Syncs of the same case number run
// one at a time; different case numbers run in parallel.
type Coordinator struct {
	store   Store
	locks   *keyLock
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewCoordinator(store Store, log *logger.Logger, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		store:   store,
		locks:   newKeyLock(),
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// Sync upserts the case and replaces its activities, subjects and documents.
// Only a failure of the case upsert is returned as an error; child failures
// are reported in the Result and do not stop the remaining collections.
func (c *Coordinator) Sync(ctx context.Context, bundle *database.CaseBundle) (*Result, error) {
	caseNumber := strings.TrimSpace(bundle.Case.CaseNumber)
	if caseNumber == "" {
		return nil, &PersistenceError{Err: errors.New("case number is empty")}
	}

	unlock := c.locks.Lock(caseNumber)
	defer unlock()

	start := c.now()
	defer func() { c.metrics.ObserveSyncLatency(time.Since(start)) }()

	generation := uuid.NewString()
	rec := bundle.Case
	rec.CaseNumber = caseNumber
	rec.SyncGeneration = generation
	rec.LastSyncedAt = c.now()

	if err := c.store.UpsertCase(ctx, &rec); err != nil {
		c.logger.Error("Failed to upsert case", "case_number", caseNumber, "error", err)
		return nil, &PersistenceError{CaseNumber: caseNumber, Err: err}
	}
	if rec.ID == 0 {
		c.logger.Error("Upsert returned no record", "case_number", caseNumber)
		return nil, &PersistenceError{CaseNumber: caseNumber, Err: errors.New("store returned no record")}
	}

	result := &Result{
		CaseID:     rec.ID,
		Generation: generation,
		Counts:     map[string]int{},
		Bundle:     &database.CaseBundle{Case: rec},
	}

	activities, err := c.store.ReplaceActivities(ctx, rec.ID, generation, clone(bundle.Activities))
	if err != nil {
		c.fail(result, CollectionActivities, err)
		activities = withCase(bundle.Activities, rec.ID, func(a *database.Activity, id uint) { a.CaseID = id })
	} else {
		result.Counts[CollectionActivities] = len(activities)
	}
	result.Bundle.Activities = activities

	subjects, err := c.store.ReplaceSubjects(ctx, rec.ID, generation, clone(bundle.Subjects))
	if err != nil {
		c.fail(result, CollectionSubjects, err)
		subjects = withCase(bundle.Subjects, rec.ID, func(s *database.Subject, id uint) { s.CaseID = id })
	} else {
		result.Counts[CollectionSubjects] = len(subjects)
	}
	result.Bundle.Subjects = subjects

	// Documents point at activity rows of this generation. When activities
	// failed there are none, and documents are stored unlinked.
	linked := linkDocuments(bundle.Documents, activityRowIDs(activities))
	documents, err := c.store.ReplaceDocuments(ctx, rec.ID, generation, linked)
	if err != nil {
		c.fail(result, CollectionDocuments, err)
		documents = withCase(bundle.Documents, rec.ID, func(d *database.Document, id uint) { d.CaseID = id })
	} else {
		result.Counts[CollectionDocuments] = len(documents)
	}
	result.Bundle.Documents = documents

	c.logger.Info("Case synced",
		"case_number", caseNumber,
		"case_id", rec.ID,
		"generation", generation,
		"activities", len(activities),
		"subjects", len(subjects),
		"documents", len(documents),
		"partial", result.Partial(),
	)

	return result, nil
}

func (c *Coordinator) fail(result *Result, collection string, err error) {
	c.metrics.IncrementSyncFailure(collection)
	c.logger.Error("Failed to replace child collection",
		"collection", collection,
		"case_id", result.CaseID,
		"generation", result.Generation,
		"error", err,
	)
	result.Failures = append(result.Failures, CollectionFailure{Collection: collection, Error: err.Error()})
}

// activityRowIDs maps portal activity ids to their stored row ids. Rows
// without a stored id (failed replace) are skipped.
func activityRowIDs(activities []database.Activity) map[int64]uint {
	ids := make(map[int64]uint, len(activities))
	for _, a := range activities {
		if a.ID != 0 && a.PortalActivityID != 0 {
			ids[a.PortalActivityID] = a.ID
		}
	}
	return ids
}

func linkDocuments(documents []database.Document, activityIDs map[int64]uint) []database.Document {
	out := clone(documents)
	for i := range out {
		out[i].ActivityID = nil
		if id, ok := activityIDs[out[i].PortalActivityID]; ok {
			out[i].ActivityID = &id
		}
	}
	return out
}

func clone[T any](rows []T) []T {
	out := make([]T, len(rows))
	copy(out, rows)
	return out
}

func withCase[T any](rows []T, caseID uint, set func(*T, uint)) []T {
	out := clone(rows)
	for i := range out {
		set(&out[i], caseID)
	}
	return out
}
