package snapshot

import (
	"strings"

	"github.com/marcin-skalski/workflow-monitor/internal/github"
)

const maxTopFailing = 3

// CheckContext is the canonical shape both GitHub check variants map into.
type CheckContext struct {
	Name   string
	URL    string
	Result string
}

func fromCheckRun(r github.CheckRun) CheckContext {
	result := r.Conclusion
	if result == "" {
		// Not concluded yet: QUEUED, IN_PROGRESS, WAITING...
		result = r.Status
	}
	return CheckContext{Name: r.Name, URL: r.DetailsURL, Result: result}
}

func fromStatusContext(s github.StatusContext) CheckContext {
	return CheckContext{Name: s.Context, URL: s.TargetURL, Result: s.State}
}

func fromUnknown(u github.UnknownContext) CheckContext {
	return CheckContext{
		Name:   firstNonEmpty(u.Name, u.Context),
		URL:    firstNonEmpty(u.DetailsURL, u.TargetURL),
		Result: firstNonEmpty(u.Conclusion, u.State),
	}
}

// Canonicalize maps every GitHub context variant to a CheckContext.
func Canonicalize(nodes []github.CheckContext) []CheckContext {
	out := make([]CheckContext, 0, len(nodes))
	for _, n := range nodes {
		switch v := n.(type) {
		case github.CheckRun:
			out = append(out, fromCheckRun(v))
		case github.StatusContext:
			out = append(out, fromStatusContext(v))
		case github.UnknownContext:
			out = append(out, fromUnknown(v))
		default:
			out = append(out, CheckContext{})
		}
	}
	return out
}

type checkOutcome int

const (
	outcomeRunning checkOutcome = iota
	outcomePassed
	outcomeFailed
)

// outcome buckets a check result. Matching ignores case because check run
// conclusions and status context states arrive upper-case while hand-built
// contexts may not. Results outside both sets (SKIPPED, STALE, QUEUED...)
// count as running.
func outcome(result string) checkOutcome {
	switch strings.ToUpper(result) {
	case "SUCCESS", "EXPECTED", "NEUTRAL":
		return outcomePassed
	case "FAILURE", "ERROR", "CANCELLED", "TIMED_OUT", "ACTION_REQUIRED":
		return outcomeFailed
	default:
		return outcomeRunning
	}
}

// CalculateRollup counts every context exactly once. TopFailing holds the
// first three failures only; Failed keeps counting past that.
func CalculateRollup(contexts []CheckContext, prURL string) ChecksRollup {
	r := ChecksRollup{TopFailing: []FailingCheck{}, PRURL: prURL}
	for _, c := range contexts {
		switch outcome(c.Result) {
		case outcomePassed:
			r.Passed++
		case outcomeFailed:
			r.Failed++
			if len(r.TopFailing) < maxTopFailing {
				r.TopFailing = append(r.TopFailing, FailingCheck{Name: c.Name, URL: c.URL})
			}
		default:
			r.Running++
		}
	}
	return r
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
