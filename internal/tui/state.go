package tui

import (
	"strconv"
	"time"

	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

type Snapshot struct {
	Timestamp time.Time
	Targets   []TargetState
}

// TargetState is one watched repo (and optional focused PR) as last polled.
type TargetState struct {
	Repo string
	PR   int
	// Snapshot is the last successful result; it survives later failures.
	Snapshot   *snapshot.Snapshot
	LastError  string
	ErrorCode  string
	LastPolled time.Time
	NextPoll   time.Time
	Failures   int
}

func (t TargetState) Label() string {
	if t.PR > 0 {
		return t.Repo + "#" + strconv.Itoa(t.PR)
	}
	return t.Repo
}
