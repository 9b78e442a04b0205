package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/judicial-case-sync/internal/config"
	"github.com/JustJay7/judicial-case-sync/internal/metrics"
	"github.com/JustJay7/judicial-case-sync/pkg/logger"
	"github.com/go-resty/resty/v2"
)

const (
	OpBasicInfo  = "basic_info"
	OpActivities = "activities"
	OpSubjects   = "subjects"
	OpDocuments  = "documents"
)

const (
	basicInfoPath  = "/api/v2/Procesos/Consulta/NumeroRadicacion"
	activitiesPath = "/api/v2/Proceso/Actuaciones"
	subjectsPath   = "/api/v1/Process/GetSujetosProcesales"
	documentsPath  = "/api/Process/GetDocumentos"
)

// Client talks to the Rama Judicial consultation API. Every call has its own
// deadline and none are retried.
type Client struct {
	http     *resty.Client
	baseURL  string
	apiURL   string
	degraded bool
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// New builds a client from cfg. m may be nil.
func New(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.PortalBaseURL, "/")

	c := resty.New().
		SetTimeout(cfg.PortalTimeout).
		SetRetryCount(0).
		SetHeaders(map[string]string{
			"User-Agent":       cfg.UserAgent,
			"Accept":           "application/json, text/plain, */*",
			"Accept-Language":  "es-ES,es;q=0.9,en;q=0.8",
			"Origin":           base,
			"Sec-Fetch-Dest":   "empty",
			"Sec-Fetch-Mode":   "cors",
			"Sec-Fetch-Site":   "same-site",
			"X-Requested-With": "XMLHttpRequest",
		})

	return &Client{
		http:     c,
		baseURL:  base,
		apiURL:   strings.TrimRight(cfg.PortalAPIURL, "/"),
		degraded: cfg.DegradedFallback,
		logger:   log,
		metrics:  m,
	}
}

// CaseURL is the public portal page for a case number.
func (c *Client) CaseURL(caseNumber string) string {
	return c.baseURL + "/Procesos/NumeroRadicacion?numeroRadicacion=" + url.QueryEscape(caseNumber)
}

// FetchBasicInfo never returns an error; the outcome is carried in the result.
func (c *Client) FetchBasicInfo(ctx context.Context, caseNumber string) BasicInfoResult {
	caseNumber = strings.TrimSpace(caseNumber)

	resp, err := c.get(ctx, OpBasicInfo, caseNumber, c.apiURL+basicInfoPath, map[string]string{
		"numero":      caseNumber,
		"SoloActivos": "false",
		"pagina":      "1",
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound {
			return NotFound()
		}
		return c.failed(caseNumber, err)
	}

	procesos, err := decodeList[processWire](resp.Body(), "procesos")
	if err != nil {
		return c.failed(caseNumber, c.decodeError(OpBasicInfo, caseNumber, err))
	}
	if len(procesos) == 0 {
		c.logger.Info("Case not found on portal", "case_number", caseNumber)
		return NotFound()
	}

	// The portal may return several connections for one number; prefer the
	// exact match.
	chosen := procesos[0]
	for _, p := range procesos {
		if string(p.LlaveProceso) == caseNumber {
			chosen = p
			break
		}
	}

	raw := chosen.raw()
	if raw.CaseNumber == "" {
		raw.CaseNumber = caseNumber
	}
	return Fresh(&raw)
}

func (c *Client) failed(caseNumber string, cause error) BasicInfoResult {
	if c.degraded {
		c.logger.Warn("Basic info fetch failed, returning degraded placeholder",
			"case_number", caseNumber,
			"error", cause,
		)
		return Degraded(&RawProcess{CaseNumber: caseNumber}, cause)
	}
	c.logger.Error("Basic info fetch failed", "case_number", caseNumber, "error", cause)
	return Failed(cause)
}

// FetchActivities returns the case activities. On failure it returns an empty
// slice together with a *FetchError.
func (c *Client) FetchActivities(ctx context.Context, caseNumber string) ([]RawActivity, error) {
	caseNumber = strings.TrimSpace(caseNumber)

	resp, err := c.get(ctx, OpActivities, caseNumber, c.apiURL+activitiesPath, map[string]string{
		"numero": caseNumber,
		"pagina": "1",
	})
	if err != nil {
		return []RawActivity{}, err
	}

	wires, err := decodeList[activityWire](resp.Body(), "actuaciones")
	if err != nil {
		return []RawActivity{}, c.decodeError(OpActivities, caseNumber, err)
	}

	activities := make([]RawActivity, 0, len(wires))
	for _, w := range wires {
		activities = append(activities, w.raw())
	}
	return activities, nil
}

// FetchSubjects returns the parties registered for the case. A response with
// isSuccess=false is an empty list, not an error.
func (c *Client) FetchSubjects(ctx context.Context, caseNumber string) ([]RawSubject, error) {
	caseNumber = strings.TrimSpace(caseNumber)

	body := map[string]interface{}{"lsNroRadicacion": caseNumber}
	resp, err := c.post(ctx, OpSubjects, caseNumber, c.baseURL+subjectsPath, body)
	if err != nil {
		return []RawSubject{}, err
	}

	var envelope successEnvelope[subjectWire]
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return []RawSubject{}, c.decodeError(OpSubjects, caseNumber, err)
	}
	if !envelope.IsSuccess {
		return []RawSubject{}, nil
	}

	subjects := make([]RawSubject, 0, len(envelope.LsData))
	for _, w := range envelope.LsData {
		subjects = append(subjects, w.raw())
	}
	return subjects, nil
}

// FetchDocumentsForActivity returns the documents attached to one activity.
func (c *Client) FetchDocumentsForActivity(ctx context.Context, caseNumber string, activityID int64) ([]RawDocument, error) {
	caseNumber = strings.TrimSpace(caseNumber)

	body := map[string]interface{}{
		"lsNroRadicacion": caseNumber,
		"lnIdActuacion":   activityID,
	}
	resp, err := c.post(ctx, OpDocuments, caseNumber, c.baseURL+documentsPath, body)
	if err != nil {
		return []RawDocument{}, err
	}

	var envelope successEnvelope[documentWire]
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return []RawDocument{}, c.decodeError(OpDocuments, caseNumber, err)
	}
	if !envelope.IsSuccess {
		return []RawDocument{}, nil
	}

	documents := make([]RawDocument, 0, len(envelope.LsData))
	for _, w := range envelope.LsData {
		documents = append(documents, w.raw(activityID))
	}
	return documents, nil
}

func (c *Client) get(ctx context.Context, op, caseNumber, endpoint string, query map[string]string) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", c.CaseURL(caseNumber)).
		SetQueryParams(query)
	return c.execute(req, http.MethodGet, op, caseNumber, endpoint)
}

func (c *Client) post(ctx context.Context, op, caseNumber, endpoint string, body interface{}) (*resty.Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", c.CaseURL(caseNumber)).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	return c.execute(req, http.MethodPost, op, caseNumber, endpoint)
}

func (c *Client) execute(req *resty.Request, method, op, caseNumber, endpoint string) (*resty.Response, error) {
	start := time.Now()
	resp, err := req.Execute(method, endpoint)
	c.metrics.ObservePortalLatency(op, time.Since(start))

	if err != nil {
		fe := &FetchError{Operation: op, CaseNumber: caseNumber, Err: err}
		c.record(fe)
		return nil, fe
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		fe := &FetchError{
			Operation:  op,
			CaseNumber: caseNumber,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
		c.record(fe)
		return nil, fe
	}
	return resp, nil
}

func (c *Client) decodeError(op, caseNumber string, err error) error {
	fe := &FetchError{Operation: op, CaseNumber: caseNumber, Err: fmt.Errorf("decode response: %w", err), decode: true}
	c.record(fe)
	return fe
}

func (c *Client) record(fe *FetchError) {
	c.metrics.IncrementPortalFailure(fe.Operation, fe.Reason())
	if fe.StatusCode == http.StatusNotFound {
		return
	}
	c.logger.Warn("Portal request failed",
		"operation", fe.Operation,
		"case_number", fe.CaseNumber,
		"reason", fe.Reason(),
		"error", fe.Err,
	)
}

// FetchError describes a failed portal call.
type FetchError struct {
	Operation  string
	CaseNumber string
	StatusCode int
	Err        error
	decode     bool
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("portal %s for %s: status %d", e.Operation, e.CaseNumber, e.StatusCode)
	}
	return fmt.Sprintf("portal %s for %s: %v", e.Operation, e.CaseNumber, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Reason is a short label for metrics: timeout, canceled, status_NNN, decode
// or transport.
func (e *FetchError) Reason() string {
	switch {
	case e.decode:
		return "decode"
	case e.StatusCode != 0:
		return "status_" + strconv.Itoa(e.StatusCode)
	case e.Timeout():
		return "timeout"
	case errors.Is(e.Err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}
