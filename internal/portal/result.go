package portal

// Outcome tags a basic-info fetch.
type Outcome int

const (
	// OutcomeFresh means real data was read from the portal.
	OutcomeFresh Outcome = iota
	// OutcomeNotFound means the portal has no case with that number.
	OutcomeNotFound
	// OutcomeFailed means the portal could not be read.
	OutcomeFailed
	// OutcomeDegraded means the portal could not be read and a placeholder
	// was substituted. Only produced when the fallback is enabled.
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFresh:
		return "fresh"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// BasicInfoResult keeps "found", "fabricated" and "failed" distinguishable.
type BasicInfoResult struct {
	Outcome Outcome
	// Process is set for Fresh and Degraded. For Degraded it only carries the
	// requested case number.
	Process *RawProcess
	// Cause is set for Failed and Degraded.
	Cause error
}

func Fresh(p *RawProcess) BasicInfoResult {
	return BasicInfoResult{Outcome: OutcomeFresh, Process: p}
}

func NotFound() BasicInfoResult {
	return BasicInfoResult{Outcome: OutcomeNotFound}
}

func Failed(cause error) BasicInfoResult {
	return BasicInfoResult{Outcome: OutcomeFailed, Cause: cause}
}

func Degraded(placeholder *RawProcess, cause error) BasicInfoResult {
	return BasicInfoResult{Outcome: OutcomeDegraded, Process: placeholder, Cause: cause}
}
