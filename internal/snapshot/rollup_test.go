package snapshot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/workflow-monitor/internal/github"
)

func TestCanonicalize(t *testing.T) {
	nodes := []github.CheckContext{
		github.CheckRun{Name: "build", Status: "COMPLETED", Conclusion: "SUCCESS", DetailsURL: "https://ci/build"},
		github.CheckRun{Name: "lint", Status: "IN_PROGRESS", DetailsURL: "https://ci/lint"},
		github.StatusContext{Context: "ci/jenkins", State: "FAILURE", TargetURL: "https://jenkins/1"},
		github.UnknownContext{Typename: "Future", Context: "x", State: "ERROR", TargetURL: "https://x"},
	}

	got := Canonicalize(nodes)

	require.Len(t, got, 4)
	assert.Equal(t, CheckContext{Name: "build", URL: "https://ci/build", Result: "SUCCESS"}, got[0])
	assert.Equal(t, CheckContext{Name: "lint", URL: "https://ci/lint", Result: "IN_PROGRESS"}, got[1])
	assert.Equal(t, CheckContext{Name: "ci/jenkins", URL: "https://jenkins/1", Result: "FAILURE"}, got[2])
	assert.Equal(t, CheckContext{Name: "x", URL: "https://x", Result: "ERROR"}, got[3])
}

func TestCanonicalize_UnknownPrefersCheckRunFields(t *testing.T) {
	got := Canonicalize([]github.CheckContext{github.UnknownContext{
		Name: "n", Context: "c",
		Conclusion: "SUCCESS", State: "FAILURE",
		DetailsURL: "d", TargetURL: "t",
	}})

	assert.Equal(t, CheckContext{Name: "n", URL: "d", Result: "SUCCESS"}, got[0])
}

func TestCalculateRollup(t *testing.T) {
	contexts := []CheckContext{
		{Name: "a", Result: "SUCCESS"},
		{Name: "b", Result: "EXPECTED"},
		{Name: "c", Result: "NEUTRAL"},
		{Name: "d", Result: "FAILURE", URL: "u-d"},
		{Name: "e", Result: "ERROR", URL: "u-e"},
		{Name: "f", Result: "PENDING"},
		{Name: "g", Result: "QUEUED"},
		{Name: "h", Result: ""},
	}

	r := CalculateRollup(contexts, "https://github.com/o/r/pull/1")

	assert.Equal(t, 3, r.Passed)
	assert.Equal(t, 2, r.Failed)
	assert.Equal(t, 3, r.Running)
	assert.Equal(t, []FailingCheck{{Name: "d", URL: "u-d"}, {Name: "e", URL: "u-e"}}, r.TopFailing)
	assert.Equal(t, "https://github.com/o/r/pull/1", r.PRURL)
}

func TestCalculateRollup_FailureConclusions(t *testing.T) {
	for _, c := range []string{"FAILURE", "ERROR", "CANCELLED", "TIMED_OUT", "ACTION_REQUIRED", "failure"} {
		r := CalculateRollup([]CheckContext{{Name: c, Result: c}}, "")
		assert.Equal(t, 1, r.Failed, c)
	}
}

func TestCalculateRollup_UnlistedResultsAreRunning(t *testing.T) {
	for _, c := range []string{"SKIPPED", "STARTUP_FAILURE", "STALE", "IN_PROGRESS", "skipped"} {
		r := CalculateRollup([]CheckContext{{Name: c, Result: c}}, "")
		assert.Equal(t, ChecksRollup{Running: 1, TopFailing: []FailingCheck{}}, r, c)
	}
}

func TestCalculateRollup_SkippedBesideLowercaseSuccess(t *testing.T) {
	r := CalculateRollup([]CheckContext{{Name: "a", Result: "SKIPPED"}, {Name: "b", Result: "success"}}, "")

	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 0, r.Failed)
	assert.Equal(t, 1, r.Running)
}

func TestCalculateRollup_TopFailingCap(t *testing.T) {
	var contexts []CheckContext
	for i := 1; i <= 5; i++ {
		contexts = append(contexts, CheckContext{Name: fmt.Sprintf("fail-%d", i), Result: "FAILURE"})
	}

	r := CalculateRollup(contexts, "")

	assert.Equal(t, 5, r.Failed)
	require.Len(t, r.TopFailing, 3)
	assert.Equal(t, "fail-1", r.TopFailing[0].Name)
	assert.Equal(t, "fail-3", r.TopFailing[2].Name)
	for _, f := range r.TopFailing {
		assert.NotEqual(t, "fail-5", f.Name)
	}
}

func TestCalculateRollup_CountsEveryContext(t *testing.T) {
	results := []string{"SUCCESS", "FAILURE", "PENDING", "weird", "", "SKIPPED", "CANCELLED", "IN_PROGRESS"}
	for n := 0; n <= 40; n++ {
		contexts := make([]CheckContext, n)
		for i := range contexts {
			contexts[i] = CheckContext{Name: fmt.Sprint(i), Result: results[(i*7+n)%len(results)]}
		}

		r := CalculateRollup(contexts, "")

		assert.Equal(t, n, r.Passed+r.Failed+r.Running)
		assert.Equal(t, min(3, r.Failed), len(r.TopFailing))
	}
}

func TestCalculateRollup_EmptyNotNil(t *testing.T) {
	r := CalculateRollup(nil, "")
	assert.NotNil(t, r.TopFailing)
	assert.Empty(t, r.TopFailing)
}
