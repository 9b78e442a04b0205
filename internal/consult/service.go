package consult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/cache"
	"github.com/JustJay7/judicial-case-sync/internal/config"
	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/internal/metrics"
	"github.com/JustJay7/judicial-case-sync/internal/normalize"
	"github.com/JustJay7/judicial-case-sync/internal/portal"
	"github.com/JustJay7/judicial-case-sync/internal/syncer"
	"github.com/JustJay7/judicial-case-sync/pkg/logger"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// Where a consultation's data came from.
const (
	SourceCache    = "cache"
	SourcePortal   = "portal"
	SourceDegraded = "degraded"
)

// Consultation kinds recorded in the audit trail.
const (
	KindConsult = "consult"
	KindRefresh = "refresh"
	KindMonitor = "monitor"
	KindBulk    = "bulk"
)

// Audit statuses.
const (
	StatusSuccess           = "success"
	StatusPartial           = "partial"
	StatusDegraded          = "degraded"
	StatusNotFound          = "not_found"
	StatusPortalUnavailable = "portal_unavailable"
	StatusInvalid           = "invalid"
	StatusError             = "error"
)

// Deadline of a shared scrape, in portal timeouts.
const (
	flightTimeoutFactor  = 4
	defaultFlightTimeout = 2 * time.Minute
)

// Portal is the remote read side. *portal.Client implements it.
type Portal interface {
	FetchBasicInfo(ctx context.Context, caseNumber string) portal.BasicInfoResult
	FetchActivities(ctx context.Context, caseNumber string) ([]portal.RawActivity, error)
	FetchSubjects(ctx context.Context, caseNumber string) ([]portal.RawSubject, error)
	FetchDocumentsForActivity(ctx context.Context, caseNumber string, activityID int64) ([]portal.RawDocument, error)
	CaseURL(caseNumber string) string
}

// Store is the local read side. *database.Store implements it.
type Store interface {
	FindCaseIDByNumber(ctx context.Context, caseNumber string) (uint, error)
	FindCaseByNumber(ctx context.Context, caseNumber string) (*database.CaseRecord, error)
	LoadCase(ctx context.Context, caseID uint) (*database.CaseBundle, error)
	ListActivities(ctx context.Context, caseID uint) ([]database.Activity, error)
	ListSubjects(ctx context.Context, caseID uint) ([]database.Subject, error)
	ListDocuments(ctx context.Context, caseID uint) ([]database.Document, error)
	SearchCases(ctx context.Context, f database.SearchFilter) ([]database.CaseRecord, int64, error)
	InsertAudit(ctx context.Context, entry *database.ConsultationAudit) error
	AddMonitor(ctx context.Context, m *database.MonitoredCase) error
	RemoveMonitor(ctx context.Context, requesterID string, caseID uint) error
	ListMonitors(ctx context.Context, requesterID string) ([]database.MonitoredCase, error)
}

// Request is one consultation.
type Request struct {
	CaseNumber   string
	ForceRefresh bool
	// RequesterID is empty for anonymous callers.
	RequesterID string
	ClientIP    string
	UserAgent   string
	Kind        string
}

// Result is the case view handed back to callers.
type Result struct {
	Case         *database.CaseBundle       `json:"case"`
	Source       string                     `json:"source"`
	Degraded     bool                       `json:"degraded"`
	Partial      bool                       `json:"partial"`
	Warnings     []string                   `json:"warnings,omitempty"`
	SyncFailures []syncer.CollectionFailure `json:"sync_failures,omitempty"`
}

type Deps struct {
	Store   Store
	Portal  Portal
	Syncer  *syncer.Coordinator
	Views   cache.Cache
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Service decides between the local copy and a fresh portal scrape and
// records every consultation.
type Service struct {
	store   Store
	portal  Portal
	syncer  *syncer.Coordinator
	views   cache.Cache
	cfg     *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	flights singleflight.Group
}

func New(d Deps) *Service {
	return &Service{
		store:   d.Store,
		portal:  d.Portal,
		syncer:  d.Syncer,
		views:   d.Views,
		cfg:     d.Config,
		logger:  d.Logger,
		metrics: d.Metrics,
	}
}

// Exists looks a case up by number. Lookup errors are logged and reported as
// absent so the caller falls through to a scrape.
func (s *Service) Exists(ctx context.Context, caseNumber string) (uint, bool) {
	id, err := s.store.FindCaseIDByNumber(ctx, caseNumber)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.logger.Warn("Existence lookup failed", "case_number", caseNumber, "error", err)
		}
		return 0, false
	}
	return id, true
}

// Consult returns the case view for req. Every call writes exactly one audit
// entry, whatever the outcome.
func (s *Service) Consult(ctx context.Context, req Request) (res *Result, err error) {
	caseNumber := strings.TrimSpace(req.CaseNumber)
	start := time.Now()

	entry := &database.ConsultationAudit{
		CaseNumber: caseNumber,
		Kind:       kindOf(req),
		IPAddress:  req.ClientIP,
		UserAgent:  req.UserAgent,
	}
	if req.RequesterID != "" {
		requester := req.RequesterID
		entry.RequesterID = &requester
	}
	defer func() { s.audit(ctx, entry, res, err, time.Since(start)) }()

	if caseNumber == "" {
		return nil, ErrInvalidCaseNumber
	}

	if !req.ForceRefresh {
		if id, ok := s.Exists(ctx, caseNumber); ok {
			bundle, loadErr := s.cached(ctx, caseNumber, id)
			if loadErr == nil {
				return &Result{Case: bundle, Source: SourceCache}, nil
			}
			s.logger.Warn("Failed to load stored case, scraping instead",
				"case_number", caseNumber,
				"error", loadErr,
			)
		}
	}

	// The shared scrape outlives any one caller. A caller that goes away
	// stops waiting while the others still get the result.
	flight := s.flights.DoChan(caseNumber, func() (interface{}, error) {
		fctx, cancel := s.flightContext(ctx)
		defer cancel()
		return s.scrape(fctx, caseNumber)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-flight:
		if r.Shared {
			s.metrics.IncrementSharedScrape()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

// flightContext detaches a scrape from its caller's cancellation and bounds
// it instead by the portal timeout.
func (s *Service) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.cfg == nil || s.cfg.PortalTimeout <= 0 {
		return context.WithTimeout(detached, defaultFlightTimeout)
	}
	return context.WithTimeout(detached, s.cfg.PortalTimeout*flightTimeoutFactor)
}

func kindOf(req Request) string {
	switch {
	case req.Kind != "":
		return req.Kind
	case req.ForceRefresh:
		return KindRefresh
	default:
		return KindConsult
	}
}

func (s *Service) cached(ctx context.Context, caseNumber string, id uint) (*database.CaseBundle, error) {
	if bundle, ok := s.views.Get(caseNumber); ok {
		return bundle, nil
	}
	// a sync finishing during the load invalidates the key, so an older
	// bundle is returned to this caller but never cached
	version := s.views.Version(caseNumber)
	bundle, err := s.store.LoadCase(ctx, id)
	if err != nil {
		return nil, err
	}
	s.views.SetIfUnchanged(caseNumber, bundle, version)
	return bundle, nil
}

// scrape fetches basic info, activities and subjects concurrently. Basic info
// identifies the case, so NotFound or Failed cancels the sibling fetches.
func (s *Service) scrape(ctx context.Context, caseNumber string) (*Result, error) {
	var (
		basic      portal.BasicInfoResult
		activities []portal.RawActivity
		subjects   []portal.RawSubject
		documents  []portal.RawDocument
		warnings   warningList
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		basic = s.portal.FetchBasicInfo(gctx, caseNumber)
		switch basic.Outcome {
		case portal.OutcomeNotFound:
			return ErrNotFound
		case portal.OutcomeFailed:
			return &FetchError{CaseNumber: caseNumber, Cause: basic.Cause}
		}
		return nil
	})

	g.Go(func() error {
		acts, err := s.portal.FetchActivities(gctx, caseNumber)
		if err != nil {
			warnings.add("activities: %v", err)
		}
		activities = acts
		documents = s.fetchDocuments(gctx, caseNumber, acts, &warnings)
		return nil
	})

	g.Go(func() error {
		subs, err := s.portal.FetchSubjects(gctx, caseNumber)
		if err != nil {
			warnings.add("subjects: %v", err)
		}
		subjects = subs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle := normalize.Case(caseNumber, s.portal.CaseURL(caseNumber), basic.Process, activities, subjects, documents)

	if basic.Outcome == portal.OutcomeDegraded {
		s.logger.Warn("Returning degraded placeholder", "case_number", caseNumber, "cause", basic.Cause)
		sortActivities(bundle.Activities)
		return &Result{
			Case:     bundle,
			Source:   SourceDegraded,
			Degraded: true,
			Partial:  true,
			Warnings: append(warnings.list(), fmt.Sprintf("basic info: %v", basic.Cause)),
		}, nil
	}

	synced, err := s.syncer.Sync(ctx, bundle)
	if err != nil {
		return nil, err
	}
	s.views.Invalidate(caseNumber)

	view := synced.Bundle
	sortActivities(view.Activities)

	msgs := warnings.list()
	return &Result{
		Case:         view,
		Source:       SourcePortal,
		Partial:      synced.Partial() || len(msgs) > 0,
		Warnings:     msgs,
		SyncFailures: synced.Failures,
	}, nil
}

// fetchDocuments reads the documents of every activity that has some, at most
// FetchConcurrency at a time. One activity failing does not stop the others.
func (s *Service) fetchDocuments(ctx context.Context, caseNumber string, activities []portal.RawActivity, warnings *warningList) []portal.RawDocument {
	perActivity := make([][]portal.RawDocument, len(activities))

	var g errgroup.Group
	g.SetLimit(s.fetchConcurrency())

	for i, a := range activities {
		if !a.HasDocuments {
			continue
		}
		g.Go(func() error {
			docs, err := s.portal.FetchDocumentsForActivity(ctx, caseNumber, a.ActivityID)
			if err != nil {
				warnings.add("documents of activity %d: %v", a.ActivityID, err)
			}
			perActivity[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	documents := []portal.RawDocument{}
	for _, docs := range perActivity {
		documents = append(documents, docs...)
	}
	return documents
}

func (s *Service) fetchConcurrency() int {
	if s.cfg == nil || s.cfg.FetchConcurrency < 1 {
		return 1
	}
	return s.cfg.FetchConcurrency
}

// audit writes the entry for one consultation. A failed write is logged and
// never changes the consultation outcome.
func (s *Service) audit(ctx context.Context, entry *database.ConsultationAudit, res *Result, err error, elapsed time.Duration) {
	details := map[string]interface{}{"duration_ms": elapsed.Milliseconds()}

	switch {
	case err == nil:
		entry.Source = res.Source
		entry.Status = StatusSuccess
		if res.Partial {
			entry.Status = StatusPartial
		}
		if res.Degraded {
			entry.Status = StatusDegraded
		}
		if res.Case != nil && res.Case.Case.ID != 0 {
			id := res.Case.Case.ID
			entry.CaseID = &id
		}
		if len(res.Warnings) > 0 {
			details["warnings"] = res.Warnings
		}
		if len(res.SyncFailures) > 0 {
			details["sync_failures"] = res.SyncFailures
		}
	default:
		entry.Status = statusOf(err)
		entry.ErrorMessage = err.Error()
	}

	if raw, mErr := json.Marshal(details); mErr == nil {
		entry.Details = datatypes.JSON(raw)
	}

	s.metrics.IncrementConsultation(entry.Source, entry.Status)

	if aErr := s.store.InsertAudit(context.WithoutCancel(ctx), entry); aErr != nil {
		s.logger.Error("Failed to write consultation audit",
			"case_number", entry.CaseNumber,
			"status", entry.Status,
			"error", aErr,
		)
	}
}

func statusOf(err error) string {
	var fe *FetchError
	switch {
	case errors.As(err, &fe):
		return StatusPortalUnavailable
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrInvalidCaseNumber):
		return StatusInvalid
	default:
		return StatusError
	}
}

// sortActivities orders newest first; undated activities go last.
func sortActivities(activities []database.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		a, b := activities[i].ActivityDate, activities[j].ActivityDate
		switch {
		case a == nil && b == nil:
			return activities[i].Sequence > activities[j].Sequence
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return activities[i].Sequence > activities[j].Sequence
		default:
			return a.After(*b)
		}
	})
}

type warningList struct {
	mu    sync.Mutex
	items []string
}

func (w *warningList) add(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, fmt.Sprintf(format, args...))
}

func (w *warningList) list() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.items...)
}
