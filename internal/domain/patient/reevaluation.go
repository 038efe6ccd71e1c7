package patient

import (
	"strings"
	"time"
)

// RequestReevaluation records a new reassessment request.
//
//	none → requested (unseen) → requested (seen) → requested (unseen) ...
//
// A request still unseen by staff blocks a new one. Once seen, a new request
// replaces the previous record entirely.
func (p *Patient) RequestReevaluation(reason string, at time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReevaluationReasonRequired
	}
	if p.Reevaluation.Pending() {
		return ErrReevaluationPending
	}

	p.Reevaluation = &ReevaluationRequest{
		Requested: true,
		Reason:    reason,
		Timestamp: at,
		Seen:      false,
	}
	return nil
}

// MarkReevaluationSeen acknowledges the request. It reports false, and
// changes nothing, when there is no request or it was already seen.
func (p *Patient) MarkReevaluationSeen() bool {
	if p.Reevaluation == nil || p.Reevaluation.Seen {
		return false
	}
	p.Reevaluation.Seen = true
	return true
}
