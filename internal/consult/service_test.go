package consult

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/cache"
	"github.com/JustJay7/judicial-case-sync/internal/config"
	"github.com/JustJay7/judicial-case-sync/internal/database"
	"github.com/JustJay7/judicial-case-sync/internal/metrics"
	"github.com/JustJay7/judicial-case-sync/internal/portal"
	"github.com/JustJay7/judicial-case-sync/internal/syncer"
	"github.com/JustJay7/judicial-case-sync/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testCase = "11001310300120230012300"

// fakePortal serves canned data and counts calls per operation.
type fakePortal struct {
	basic       func(caseNumber string) portal.BasicInfoResult
	activities  func(call int) []portal.RawActivity
	subjectsErr error
	basicGate   chan struct{}
	basicEnter  chan struct{}
	docDelay    time.Duration

	basicCalls    atomic.Int32
	activityCalls atomic.Int32
	subjectCalls  atomic.Int32
	docCalls      atomic.Int32

	mu          sync.Mutex
	docInFlight int
	docMax      int
}

func newFakePortal() *fakePortal {
	return &fakePortal{
		basic: func(n string) portal.BasicInfoResult {
			return portal.Fresh(&portal.RawProcess{
				ProcessID:   1,
				CaseNumber:  n,
				FilingDate:  "2023-03-14T00:00:00",
				Court:       "JUZGADO 001 CIVIL",
				Department:  "BOGOTÁ",
				PartiesText: "Demandante: ACME SAS | Demandado: Juan Perez",
			})
		},
		activities: func(int) []portal.RawActivity {
			return []portal.RawActivity{
				{ActivityID: 10, Sequence: 1, Date: "2023-03-20T00:00:00", Description: "Auto admite demanda", HasDocuments: true},
				{ActivityID: 11, Sequence: 2, Date: "2024-01-20T00:00:00", Description: "Audiencia inicial"},
				{ActivityID: 12, Sequence: 3, Date: "2023-06-01T00:00:00", Description: "Notificación por estado", HasDocuments: true},
			}
		},
	}
}

func (f *fakePortal) FetchBasicInfo(ctx context.Context, n string) portal.BasicInfoResult {
	f.basicCalls.Add(1)
	if f.basicEnter != nil {
		f.basicEnter <- struct{}{}
	}
	if f.basicGate != nil {
		<-f.basicGate
	}
	return f.basic(n)
}

func (f *fakePortal) FetchActivities(ctx context.Context, n string) ([]portal.RawActivity, error) {
	call := int(f.activityCalls.Add(1))
	return f.activities(call), nil
}

func (f *fakePortal) FetchSubjects(ctx context.Context, n string) ([]portal.RawSubject, error) {
	f.subjectCalls.Add(1)
	if f.subjectsErr != nil {
		return []portal.RawSubject{}, f.subjectsErr
	}
	return []portal.RawSubject{
		{SubjectID: 1, Name: "ACME SAS", Type: "Demandante"},
		{SubjectID: 2, Name: "Juan Perez", Type: "Demandado"},
	}, nil
}

func (f *fakePortal) FetchDocumentsForActivity(ctx context.Context, n string, activityID int64) ([]portal.RawDocument, error) {
	f.docCalls.Add(1)

	f.mu.Lock()
	f.docInFlight++
	if f.docInFlight > f.docMax {
		f.docMax = f.docInFlight
	}
	f.mu.Unlock()

	time.Sleep(f.docDelay)

	f.mu.Lock()
	f.docInFlight--
	f.mu.Unlock()

	return []portal.RawDocument{
		{DocumentID: activityID * 100, ActivityID: activityID, Filename: fmt.Sprintf("doc-%d.pdf", activityID)},
	}, nil
}

func (f *fakePortal) CaseURL(n string) string {
	return "https://portal.test/" + n
}

func (f *fakePortal) portalCalls() int32 {
	return f.basicCalls.Load() + f.activityCalls.Load() + f.subjectCalls.Load() + f.docCalls.Load()
}

// brokenAuditStore refuses every audit write.
type brokenAuditStore struct {
	*database.Store
}

func (brokenAuditStore) InsertAudit(context.Context, *database.ConsultationAudit) error {
	return errors.New("audit table locked")
}

// gatedLoadStore parks the next LoadCase after it has read the store, until
// release is closed.
type gatedLoadStore struct {
	*database.Store
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedLoadStore) LoadCase(ctx context.Context, caseID uint) (*database.CaseBundle, error) {
	bundle, err := g.Store.LoadCase(ctx, caseID)
	if g.armed.CompareAndSwap(true, false) {
		g.loaded <- struct{}{}
		<-g.release
	}
	return bundle, err
}

type fixture struct {
	svc     *Service
	store   *database.Store
	portal  *fakePortal
	logs    *observer.ObservedLogs
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, fp *fakePortal, wrap func(*database.Store) Store) *fixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenInMemory(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	store := database.NewStore(db)

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core))
	m := metrics.New(prometheus.NewRegistry())

	var svcStore Store = store
	if wrap != nil {
		svcStore = wrap(store)
	}

	svc := New(Deps{
		Store:   svcStore,
		Portal:  fp,
		Syncer:  syncer.NewCoordinator(store, log, m),
		Views:   cache.NewViewCache(10, time.Minute),
		Config:  &config.Config{FetchConcurrency: 2, BulkConcurrency: 2, SearchMaxLimit: 50},
		Logger:  log,
		Metrics: m,
	})
	return &fixture{svc: svc, store: store, portal: fp, logs: logs, metrics: m}
}

func (f *fixture) audits(t *testing.T, caseNumber string) []database.ConsultationAudit {
	t.Helper()
	audits, err := f.store.ListAudits(context.Background(), caseNumber, 0)
	require.NoError(t, err)
	return audits
}

func TestConsultScrapesUnknownCase(t *testing.T) {
	f := newFixture(t, newFakePortal(), nil)

	res, err := f.svc.Consult(context.Background(), Request{
		CaseNumber:  " " + testCase + " ",
		RequesterID: "user-1",
		ClientIP:    "10.0.0.1",
		UserAgent:   "test-agent",
	})
	require.NoError(t, err)

	assert.Equal(t, SourcePortal, res.Source)
	assert.False(t, res.Partial)
	assert.False(t, res.Degraded)
	assert.Equal(t, "ACME SAS", res.Case.Case.Plaintiff)
	assert.NotZero(t, res.Case.Case.ID)

	var order []string
	for _, a := range res.Case.Activities {
		order = append(order, a.Description)
	}
	assert.Equal(t, []string{"Audiencia inicial", "Notificación por estado", "Auto admite demanda"}, order)
	assert.Len(t, res.Case.Subjects, 2)
	assert.Len(t, res.Case.Documents, 2)
	assert.EqualValues(t, 2, f.portal.docCalls.Load(), "documents only for activities that have them")

	id, ok := f.svc.Exists(context.Background(), testCase)
	assert.True(t, ok)
	assert.Equal(t, res.Case.Case.ID, id)

	audits := f.audits(t, testCase)
	require.Len(t, audits, 1)
	a := audits[0]
	assert.Equal(t, StatusSuccess, a.Status)
	assert.Equal(t, SourcePortal, a.Source)
	assert.Equal(t, KindConsult, a.Kind)
	assert.Equal(t, "10.0.0.1", a.IPAddress)
	assert.Equal(t, "test-agent", a.UserAgent)
	require.NotNil(t, a.RequesterID)
	assert.Equal(t, "user-1", *a.RequesterID)
	require.NotNil(t, a.CaseID)
	assert.Equal(t, id, *a.CaseID)
}

func TestConsultCacheHitIssuesNoPortalCall(t *testing.T) {
	f := newFixture(t, newFakePortal(), nil)
	ctx := context.Background()

	_, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)
	before := f.portal.portalCalls()

	for i := 0; i < 2; i++ {
		res, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
		require.NoError(t, err)
		assert.Equal(t, SourceCache, res.Source)
		assert.Len(t, res.Case.Activities, 3)
		assert.Equal(t, "Audiencia inicial", res.Case.Activities[0].Description)
	}

	assert.Equal(t, before, f.portal.portalCalls())
	assert.Len(t, f.audits(t, testCase), 3)
}

func TestConsultForcedRefreshAlwaysScrapes(t *testing.T) {
	fp := newFakePortal()
	fp.activities = func(call int) []portal.RawActivity {
		if call == 1 {
			return []portal.RawActivity{
				{ActivityID: 1, Date: "2023-01-01", Description: "uno"},
				{ActivityID: 2, Date: "2023-01-02", Description: "dos"},
			}
		}
		return []portal.RawActivity{{ActivityID: 3, Date: "2023-01-03", Description: "tres"}}
	}
	f := newFixture(t, fp, nil)
	ctx := context.Background()

	_, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)
	// warm the view cache
	_, err = f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)

	res, err := f.svc.Consult(ctx, Request{CaseNumber: testCase, ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, SourcePortal, res.Source)
	assert.EqualValues(t, 2, fp.basicCalls.Load())

	// the stale cached view was invalidated
	res, err = f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	require.Len(t, res.Case.Activities, 1)
	assert.Equal(t, "tres", res.Case.Activities[0].Description)

	audits := f.audits(t, testCase)
	require.Len(t, audits, 4)
	assert.Equal(t, KindRefresh, audits[1].Kind)
}

func TestConsultLoadRacingRefreshDoesNotCacheOldView(t *testing.T) {
	fp := newFakePortal()
	fp.activities = func(call int) []portal.RawActivity {
		if call == 1 {
			return []portal.RawActivity{
				{ActivityID: 1, Date: "2023-01-01", Description: "uno"},
				{ActivityID: 2, Date: "2023-01-02", Description: "dos"},
			}
		}
		return []portal.RawActivity{{ActivityID: 3, Date: "2023-01-03", Description: "tres"}}
	}
	gated := &gatedLoadStore{loaded: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, fp, func(s *database.Store) Store {
		gated.Store = s
		return gated
	})
	ctx := context.Background()

	_, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)

	gated.armed.Store(true)
	done := make(chan *Result, 1)
	go func() {
		res, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
		assert.NoError(t, err)
		done <- res
	}()
	<-gated.loaded

	refreshed, err := f.svc.Consult(ctx, Request{CaseNumber: testCase, ForceRefresh: true})
	require.NoError(t, err)
	require.Len(t, refreshed.Case.Activities, 1)

	close(gated.release)
	slow := <-done
	require.NotNil(t, slow)
	assert.Len(t, slow.Case.Activities, 2, "read before the refresh committed")

	res, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	require.Len(t, res.Case.Activities, 1)
	assert.Equal(t, "tres", res.Case.Activities[0].Description)
}

func TestConsultNotFound(t *testing.T) {
	fp := newFakePortal()
	fp.basic = func(string) portal.BasicInfoResult { return portal.NotFound() }
	f := newFixture(t, fp, nil)

	res, err := f.svc.Consult(context.Background(), Request{CaseNumber: "404"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNotFound)

	var fe *FetchError
	assert.False(t, errors.As(err, &fe))

	_, ok := f.svc.Exists(context.Background(), "404")
	assert.False(t, ok)

	audits := f.audits(t, "404")
	require.Len(t, audits, 1)
	assert.Equal(t, StatusNotFound, audits[0].Status)
	assert.Nil(t, audits[0].CaseID)
	assert.NotEmpty(t, audits[0].ErrorMessage)
}

func TestConsultFailedSurfacesAsNotFound(t *testing.T) {
	fp := newFakePortal()
	fp.basic = func(string) portal.BasicInfoResult { return portal.Failed(errors.New("connection reset")) }
	f := newFixture(t, fp, nil)

	_, err := f.svc.Consult(context.Background(), Request{CaseNumber: testCase})
	assert.ErrorIs(t, err, ErrNotFound)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, testCase, fe.CaseNumber)

	_, ok := f.svc.Exists(context.Background(), testCase)
	assert.False(t, ok)

	audits := f.audits(t, testCase)
	require.Len(t, audits, 1)
	assert.Equal(t, StatusPortalUnavailable, audits[0].Status)
	assert.Contains(t, audits[0].ErrorMessage, "connection reset")
}

func TestConsultDegradedIsNeverPersisted(t *testing.T) {
	fp := newFakePortal()
	fp.basic = func(n string) portal.BasicInfoResult {
		return portal.Degraded(&portal.RawProcess{CaseNumber: n}, errors.New("bad gateway"))
	}
	f := newFixture(t, fp, nil)

	res, err := f.svc.Consult(context.Background(), Request{CaseNumber: testCase})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, SourceDegraded, res.Source)
	assert.Zero(t, res.Case.Case.ID)
	assert.Contains(t, res.Warnings, "basic info: bad gateway")

	_, ok := f.svc.Exists(context.Background(), testCase)
	assert.False(t, ok)

	audits := f.audits(t, testCase)
	require.Len(t, audits, 1)
	assert.Equal(t, StatusDegraded, audits[0].Status)
	assert.Equal(t, SourceDegraded, audits[0].Source)
}

func TestConsultPartialWhenSecondaryFetchFails(t *testing.T) {
	fp := newFakePortal()
	fp.subjectsErr = errors.New("subjects timed out")
	f := newFixture(t, fp, nil)

	res, err := f.svc.Consult(context.Background(), Request{CaseNumber: testCase})
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.Empty(t, res.Case.Subjects)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "subjects")
	assert.Equal(t, "Juan Perez", res.Case.Case.Defendant, "parsed from the parties text")

	audits := f.audits(t, testCase)
	require.Len(t, audits, 1)
	assert.Equal(t, StatusPartial, audits[0].Status)
	assert.Contains(t, string(audits[0].Details), "subjects timed out")
}

func TestConsultInvalidCaseNumberIsAudited(t *testing.T) {
	f := newFixture(t, newFakePortal(), nil)

	_, err := f.svc.Consult(context.Background(), Request{CaseNumber: "   "})
	assert.ErrorIs(t, err, ErrInvalidCaseNumber)
	assert.Zero(t, f.portal.portalCalls())

	audits := f.audits(t, "")
	require.Len(t, audits, 1)
	assert.Equal(t, StatusInvalid, audits[0].Status)
}

func TestConsultAuditFailureDoesNotFailConsultation(t *testing.T) {
	f := newFixture(t, newFakePortal(), func(s *database.Store) Store { return brokenAuditStore{s} })

	res, err := f.svc.Consult(context.Background(), Request{CaseNumber: testCase})
	require.NoError(t, err)
	assert.Equal(t, SourcePortal, res.Source)

	assert.Equal(t, 1, f.logs.FilterMessage("Failed to write consultation audit").Len())
	assert.Empty(t, f.audits(t, testCase))
}

func TestConsultRecordsMetrics(t *testing.T) {
	f := newFixture(t, newFakePortal(), nil)
	ctx := context.Background()

	_, _ = f.svc.Consult(ctx, Request{CaseNumber: testCase})
	_, _ = f.svc.Consult(ctx, Request{CaseNumber: testCase})

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Consultations.WithLabelValues(SourcePortal, StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Consultations.WithLabelValues(SourceCache, StatusSuccess)))
}

func TestConsultBoundsDocumentFanOut(t *testing.T) {
	fp := newFakePortal()
	fp.docDelay = 20 * time.Millisecond
	fp.activities = func(int) []portal.RawActivity {
		out := make([]portal.RawActivity, 8)
		for i := range out {
			out[i] = portal.RawActivity{ActivityID: int64(i + 1), Sequence: int64(i + 1), HasDocuments: true}
		}
		return out
	}
	f := newFixture(t, fp, nil)

	res, err := f.svc.Consult(context.Background(), Request{CaseNumber: testCase})
	require.NoError(t, err)

	assert.EqualValues(t, 8, fp.docCalls.Load())
	assert.LessOrEqual(t, fp.docMax, 2)
	require.Len(t, res.Case.Documents, 8)
	for _, d := range res.Case.Documents {
		assert.NotNil(t, d.ActivityID, "document %s linked", d.Filename)
	}
}

func TestConcurrentForcedConsultsCollapse(t *testing.T) {
	fp := newFakePortal()
	fp.basicGate = make(chan struct{})
	fp.basicEnter = make(chan struct{}, 4)
	f := newFixture(t, fp, nil)

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Consult(context.Background(), Request{CaseNumber: testCase, ForceRefresh: true})
			assert.NoError(t, err)
			results[i] = res
		}(i)
		if i == 0 {
			<-fp.basicEnter
		}
	}

	time.Sleep(100 * time.Millisecond)
	close(fp.basicGate)
	wg.Wait()

	assert.EqualValues(t, 1, fp.basicCalls.Load())
	assert.Len(t, f.audits(t, testCase), 2, "one audit per call even when the scrape is shared")
}

func TestSharedScrapeSurvivesFirstCallerCancel(t *testing.T) {
	fp := newFakePortal()
	fp.basicGate = make(chan struct{})
	fp.basicEnter = make(chan struct{}, 4)
	f := newFixture(t, fp, nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.svc.Consult(firstCtx, Request{CaseNumber: testCase, ForceRefresh: true})
		firstErr <- err
	}()
	<-fp.basicEnter

	second := make(chan *Result, 1)
	go func() {
		res, err := f.svc.Consult(context.Background(), Request{CaseNumber: testCase, ForceRefresh: true})
		assert.NoError(t, err)
		second <- res
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(fp.basicGate)
	res := <-second
	require.NotNil(t, res)
	assert.Equal(t, SourcePortal, res.Source)
	assert.Len(t, res.Case.Activities, 3)
	assert.EqualValues(t, 1, fp.basicCalls.Load())

	_, ok := f.svc.Exists(context.Background(), testCase)
	assert.True(t, ok)
	assert.Len(t, f.audits(t, testCase), 2)
}

func TestConcurrentForcedConsultsStayConsistent(t *testing.T) {
	fp := newFakePortal()
	fp.activities = func(call int) []portal.RawActivity {
		n := call%3 + 1
		out := make([]portal.RawActivity, n)
		for i := range out {
			out[i] = portal.RawActivity{
				ActivityID:  int64(call*10 + i),
				Sequence:    int64(i),
				Description: fmt.Sprintf("scrape %d", call),
			}
		}
		return out
	}
	f := newFixture(t, fp, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Consult(ctx, Request{CaseNumber: testCase, ForceRefresh: true})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	id, ok := f.svc.Exists(ctx, testCase)
	require.True(t, ok)
	activities, err := f.store.ListActivities(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, activities)

	// every surviving row comes from the same scrape
	desc := activities[0].Description
	for _, a := range activities {
		assert.Equal(t, desc, a.Description)
		assert.Equal(t, activities[0].Generation, a.Generation)
	}
	var call int
	_, err = fmt.Sscanf(desc, "scrape %d", &call)
	require.NoError(t, err)
	assert.Len(t, activities, call%3+1)

	subjects, err := f.store.ListSubjects(ctx, id)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
	assert.Len(t, f.audits(t, testCase), 6)
}

func TestMonitor(t *testing.T) {
	f := newFixture(t, newFakePortal(), nil)
	ctx := context.Background()

	_, err := f.svc.Monitor(ctx, MonitorRequest{CaseNumber: testCase})
	assert.ErrorIs(t, err, ErrMissingRequester)

	m, err := f.svc.Monitor(ctx, MonitorRequest{RequesterID: "user-1", CaseNumber: testCase, Alias: "acme"})
	require.NoError(t, err)
	assert.Equal(t, defaultMonitorRole, m.Role)
	require.NotNil(t, m.Case)
	assert.Equal(t, testCase, m.Case.CaseNumber)

	audits := f.audits(t, testCase)
	require.Len(t, audits, 1)
	assert.Equal(t, KindMonitor, audits[0].Kind)

	_, err = f.svc.Monitor(ctx, MonitorRequest{RequesterID: "user-1", CaseNumber: testCase})
	assert.ErrorIs(t, err, ErrAlreadyMonitored)
	assert.EqualValues(t, 1, f.portal.basicCalls.Load(), "known case is not scraped again")

	list, err := f.svc.Monitored(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "acme", list[0].Alias)

	require.NoError(t, f.svc.Unmonitor(ctx, "user-1", testCase))
	assert.ErrorIs(t, f.svc.Unmonitor(ctx, "user-1", testCase), ErrNotFound)
	assert.ErrorIs(t, f.svc.Unmonitor(ctx, "user-1", "unknown"), ErrNotFound)
}

func TestMonitorUnknownPortalCase(t *testing.T) {
	fp := newFakePortal()
	fp.basic = func(string) portal.BasicInfoResult { return portal.NotFound() }
	f := newFixture(t, fp, nil)

	_, err := f.svc.Monitor(context.Background(), MonitorRequest{RequesterID: "user-1", CaseNumber: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchCapsLimit(t *testing.T) {
	f := newFixture(t, newFakePortal(), nil)
	ctx := context.Background()
	_, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)

	page, err := f.svc.Search(ctx, database.SearchFilter{Query: "acme", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, page.Limit)
	assert.Equal(t, 1, page.Page)
	assert.EqualValues(t, 1, page.Total)

	page, err = f.svc.Search(ctx, database.SearchFilter{Status: "Activo"})
	require.NoError(t, err)
	assert.Equal(t, defaultSearchLimit, page.Limit)
	assert.EqualValues(t, 1, page.Total)
}

func TestChildListings(t *testing.T) {
	f := newFixture(t, newFakePortal(), nil)
	ctx := context.Background()
	_, err := f.svc.Consult(ctx, Request{CaseNumber: testCase})
	require.NoError(t, err)

	activities, err := f.svc.Activities(ctx, testCase)
	require.NoError(t, err)
	assert.Len(t, activities, 3)

	subjects, err := f.svc.Subjects(ctx, testCase)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)

	documents, err := f.svc.Documents(ctx, testCase)
	require.NoError(t, err)
	assert.Len(t, documents, 2)

	_, err = f.svc.Activities(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsultMany(t *testing.T) {
	fp := newFakePortal()
	fp.basic = func(n string) portal.BasicInfoResult {
		if n == "missing" {
			return portal.NotFound()
		}
		return portal.Fresh(&portal.RawProcess{CaseNumber: n, Court: "JUZGADO"})
	}
	f := newFixture(t, fp, nil)

	items := f.svc.ConsultMany(context.Background(), []Request{
		{CaseNumber: "A-1"},
		{CaseNumber: "missing"},
		{CaseNumber: "A-2"},
	})

	require.Len(t, items, 3)
	assert.Equal(t, "A-1", items[0].CaseNumber)
	assert.NoError(t, items[0].Err)
	assert.ErrorIs(t, items[1].Err, ErrNotFound)
	require.NotNil(t, items[2].Result)
	assert.Equal(t, "A-2", items[2].Result.Case.Case.CaseNumber)

	audits := f.audits(t, "A-1")
	require.Len(t, audits, 1)
	assert.Equal(t, KindBulk, audits[0].Kind)
}
