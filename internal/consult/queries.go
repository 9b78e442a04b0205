package consult

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/internal/normalize"
)

const (
	defaultSearchLimit = 20
	defaultMonitorRole = "observer"
)

// SearchPage is one page of stored cases.
type SearchPage struct {
	Cases []database.CaseRecord `json:"cases"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// Search queries stored cases only; it never reaches the portal.
func (s *Service) Search(ctx context.Context, f database.SearchFilter) (*SearchPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	maxLimit := defaultSearchLimit
	if s.cfg != nil && s.cfg.SearchMaxLimit > 0 {
		maxLimit = s.cfg.SearchMaxLimit
	}
	switch {
	case f.Limit < 1:
		f.Limit = min(defaultSearchLimit, maxLimit)
	case f.Limit > maxLimit:
		f.Limit = maxLimit
	}
	if f.Status != "" {
		f.Status = normalize.Status(f.Status)
	}

	cases, total, err := s.store.SearchCases(ctx, f)
	if err != nil {
		return nil, err
	}
	return &SearchPage{Cases: cases, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func (s *Service) Activities(ctx context.Context, caseNumber string) ([]database.Activity, error) {
	id, err := s.caseID(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	return s.store.ListActivities(ctx, id)
}

func (s *Service) Subjects(ctx context.Context, caseNumber string) ([]database.Subject, error) {
	id, err := s.caseID(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	return s.store.ListSubjects(ctx, id)
}

func (s *Service) Documents(ctx context.Context, caseNumber string) ([]database.Document, error) {
	id, err := s.caseID(ctx, caseNumber)
	if err != nil {
		return nil, err
	}
	return s.store.ListDocuments(ctx, id)
}

func (s *Service) caseID(ctx context.Context, caseNumber string) (uint, error) {
	caseNumber = strings.TrimSpace(caseNumber)
	if caseNumber == "" {
		return 0, ErrInvalidCaseNumber
	}
	id, err := s.store.FindCaseIDByNumber(ctx, caseNumber)
	if errors.Is(err, database.ErrNotFound) {
		return 0, ErrNotFound
	}
	return id, err
}

// MonitorRequest asks for a case to be followed by a requester.
type MonitorRequest struct {
	RequesterID string
	CaseNumber  string
	Role        string
	Alias       string
	ClientIP    string
	UserAgent   string
}

// Monitor links a requester to a case. An unknown case is consulted first so
// it exists locally; that consultation is audited like any other.
func (s *Service) Monitor(ctx context.Context, req MonitorRequest) (*database.MonitoredCase, error) {
	if strings.TrimSpace(req.RequesterID) == "" {
		return nil, ErrMissingRequester
	}
	caseNumber := strings.TrimSpace(req.CaseNumber)
	if caseNumber == "" {
		return nil, ErrInvalidCaseNumber
	}

	rec, err := s.store.FindCaseByNumber(ctx, caseNumber)
	if errors.Is(err, database.ErrNotFound) {
		res, cErr := s.Consult(ctx, Request{
			CaseNumber:  caseNumber,
			RequesterID: req.RequesterID,
			ClientIP:    req.ClientIP,
			UserAgent:   req.UserAgent,
			Kind:        KindMonitor,
		})
		if cErr != nil {
			return nil, cErr
		}
		if res.Degraded {
			// a placeholder is never stored, so there is nothing to link to
			return nil, &FetchError{CaseNumber: caseNumber, Cause: errors.New("degraded result")}
		}
		rec = &res.Case.Case
	} else if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = defaultMonitorRole
	}
	m := &database.MonitoredCase{
		RequesterID: req.RequesterID,
		CaseID:      rec.ID,
		Role:        role,
		Alias:       strings.TrimSpace(req.Alias),
	}
	if err := s.store.AddMonitor(ctx, m); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyMonitored
		}
		return nil, err
	}
	m.Case = rec

	s.logger.Info("Case monitored", "requester_id", req.RequesterID, "case_number", caseNumber, "role", role)
	return m, nil
}

func (s *Service) Unmonitor(ctx context.Context, requesterID, caseNumber string) error {
	if strings.TrimSpace(requesterID) == "" {
		return ErrMissingRequester
	}
	id, err := s.caseID(ctx, caseNumber)
	if err != nil {
		return err
	}
	if err := s.store.RemoveMonitor(ctx, requesterID, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) Monitored(ctx context.Context, requesterID string) ([]database.MonitoredCase, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, ErrMissingRequester
	}
	return s.store.ListMonitors(ctx, requesterID)
}

// BulkItem is the outcome of one case in ConsultMany.
type BulkItem struct {
	CaseNumber string
	Result     *Result
	Err        error
}

// ConsultMany consults each request with at most BulkConcurrency running at
// once. Results keep the order of reqs.
func (s *Service) ConsultMany(ctx context.Context, reqs []Request) []BulkItem {
	items := make([]BulkItem, len(reqs))

	limit := 1
	if s.cfg != nil && s.cfg.BulkConcurrency > 0 {
		limit = s.cfg.BulkConcurrency
	}
	semaphore := make(chan struct{}, limit)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(index int, r Request) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if r.Kind == "" {
				r.Kind = KindBulk
			}
			res, err := s.Consult(ctx, r)
			items[index] = BulkItem{CaseNumber: strings.TrimSpace(r.CaseNumber), Result: res, Err: err}
		}(i, req)
	}

	wg.Wait()
	return items
}
