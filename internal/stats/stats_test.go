package stats

import (
	"testing"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/model"
)

// TestCounters tests counter accumulation and snapshots.
func TestCounters(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.Start()

	a.RecordAttempt()
	a.RecordSuccess(1000)
	a.RecordAttempt()
	a.RecordSuccess(500)
	a.RecordAttempt()
	a.RecordFailure(fetch.KindTimeout)
	a.RecordAttempt()
	a.RecordSkipped()

	a.Finish()
	snap := a.Snapshot()

	if snap.URLsAttempted != 4 {
		t.Errorf("attempted = %d, want 4", snap.URLsAttempted)
	}
	if snap.URLsSucceeded != 2 {
		t.Errorf("succeeded = %d, want 2", snap.URLsSucceeded)
	}
	if snap.URLsFailed != 1 {
		t.Errorf("failed = %d, want 1", snap.URLsFailed)
	}
	if snap.URLsSkipped != 1 {
		t.Errorf("skipped = %d, want 1", snap.URLsSkipped)
	}
	if snap.BytesDownloaded != 1500 {
		t.Errorf("bytes = %d, want 1500", snap.BytesDownloaded)
	}
	if snap.ErrorCounts["timeout"] != 1 {
		t.Errorf("timeout count = %d, want 1", snap.ErrorCounts["timeout"])
	}
	if snap.Start == 0 || snap.End == 0 {
		t.Error("snapshot should carry the crawl bounds")
	}
}

// TestSnapshotIsolation verifies snapshots do not alias internal state.
func TestSnapshotIsolation(t *testing.T) {
	t.Parallel()

	a := NewAggregator()
	a.RecordFailure(fetch.KindTimeout)

	snap := a.Snapshot()
	snap.ErrorCounts["timeout"] = 99

	if got := a.Snapshot().ErrorCounts["timeout"]; got != 1 {
		t.Errorf("aggregator count = %d after snapshot mutation, want 1", got)
	}
}

// TestExitStatus tests default exit status computation.
func TestExitStatus(t *testing.T) {
	t.Parallel()

	t.Run("all done is zero", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator()
		a.RecordAttempt()
		a.RecordSuccess(10)
		if got := a.ExitStatus(); got != model.ExitOK {
			t.Errorf("exit = %d, want 0", got)
		}
	})

	t.Run("network failure", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator()
		a.RecordFailure(fetch.KindConnectionRefused)
		if got := a.ExitStatus(); got != model.ExitNetworkFailure {
			t.Errorf("exit = %d, want %d", got, model.ExitNetworkFailure)
		}
	})

	t.Run("protocol error", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator()
		a.RecordFailure(fetch.KindProtocolViolation)
		if got := a.ExitStatus(); got != model.ExitProtocolError {
			t.Errorf("exit = %d, want %d", got, model.ExitProtocolError)
		}
	})

	t.Run("server error alone", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator()
		a.RecordServerFailure()
		if got := a.ExitStatus(); got != model.ExitServerError {
			t.Errorf("exit = %d, want %d", got, model.ExitServerError)
		}
		if got := a.Snapshot().URLsFailed; got != 1 {
			t.Errorf("failed = %d, want 1", got)
		}
	})

	t.Run("most serious class wins", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator()
		a.RecordServerFailure()
		a.RecordFailure(fetch.KindTimeout)
		a.RecordParseError()
		if got := a.ExitStatus(); got != model.ExitParseError {
			t.Errorf("exit = %d, want lowest observed class %d", got, model.ExitParseError)
		}
	})

	t.Run("stopped crawl is at least generic", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator()
		a.RecordAttempt()
		a.RecordSuccess(10)
		a.RecordStopped()
		if got := a.ExitStatus(); got != model.ExitGenericError {
			t.Errorf("exit = %d, want %d", got, model.ExitGenericError)
		}
	})

	t.Run("file io error", func(t *testing.T) {
		t.Parallel()

		a := NewAggregator()
		a.RecordFileIOError()
		if got := a.ExitStatus(); got != model.ExitFileIOError {
			t.Errorf("exit = %d, want %d", got, model.ExitFileIOError)
		}
	})
}
