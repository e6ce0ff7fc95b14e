package snapshot

type Bucket string

const (
	BucketCIFailing        Bucket = "ci_failing"
	BucketChangesRequested Bucket = "changes_req"
	BucketMergeable        Bucket = "mergeable"
	BucketInReview         Bucket = "in_review"
	BucketOpen             Bucket = "open"
)

// Buckets lists every board bucket in display order.
var Buckets = []Bucket{BucketOpen, BucketInReview, BucketChangesRequested, BucketCIFailing, BucketMergeable}

// Review decisions as GitHub reports them. Matching is case-sensitive.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewRequired         = "REVIEW_REQUIRED"
	ReviewNone             = "NONE"
)

// Classify places a PR in exactly one bucket. Rules are evaluated in order
// and the first match wins, so a failing CI run outranks any review state.
func Classify(ci CIState, mergeable bool, reviewDecision string) Bucket {
	if ci == CIFailure {
		return BucketCIFailing
	}
	if reviewDecision == ReviewChangesRequested {
		return BucketChangesRequested
	}
	if mergeable && ci == CISuccess && reviewDecision == ReviewApproved {
		return BucketMergeable
	}
	if reviewDecision == ReviewRequired || reviewDecision == ReviewApproved {
		return BucketInReview
	}
	return BucketOpen
}

// MapCIState converts a statusCheckRollup state into a CI state.
func MapCIState(state string) CIState {
	switch state {
	case "SUCCESS":
		return CISuccess
	case "FAILURE", "ERROR":
		return CIFailure
	case "PENDING":
		return CIRunning
	default:
		return CIUnknown
	}
}
