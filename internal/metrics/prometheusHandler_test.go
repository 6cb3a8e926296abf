package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHttpStatusRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewHttpStatusRecorder(rr)

	if rec.Status != http.StatusOK {
		t.Fatalf("default status = %d, want 200", rec.Status)
	}

	rec.WriteHeader(http.StatusTeapot)
	rec.Flush()

	if rec.Status != http.StatusTeapot || rr.Code != http.StatusTeapot {
		t.Errorf("recorded %d, wrote %d, want 418", rec.Status, rr.Code)
	}
	if !rr.Flushed {
		t.Error("expected Flush to reach the underlying writer")
	}
}

func TestCaptureIngestionMetrics(t *testing.T) {
	before := testutil.ToFloat64(documentsIngested.WithLabelValues("indexed"))

	CaptureIngestionMetrics("indexed", 20*time.Millisecond)

	if got := testutil.ToFloat64(documentsIngested.WithLabelValues("indexed")); got != before+1 {
		t.Errorf("documents_ingested_total = %v, want %v", got, before+1)
	}
}

func TestQueueGauge(t *testing.T) {
	before := testutil.ToFloat64(countJobsInQueue)
	IncrementJobsInQueue()
	IncrementJobsInQueue()
	DecrementJobsInQueue()

	if got := testutil.ToFloat64(countJobsInQueue); got != before+1 {
		t.Errorf("count_jobs_in_queue = %v, want %v", got, before+1)
	}
}
