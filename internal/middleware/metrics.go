package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal       uint64
	RequestsInProgress  uint64
	RequestsSuccess     uint64
	RequestsFailed      uint64
	SubmissionsTotal    uint64
	SubmissionsAccepted uint64
	SubmissionsFailed   uint64
	PollsSucceeded      uint64
	PollsExhausted      uint64
	PollsFailed         uint64
	StartTime           time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests()   { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }
func IncrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }
func DecrementInProgress() { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }
func IncrementSuccess()    { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }
func IncrementFailed()     { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }

// RecordSubmission counts a webhook submission and whether the workflow accepted it.
func RecordSubmission(accepted bool) {
	atomic.AddUint64(&globalMetrics.SubmissionsTotal, 1)
	if accepted {
		atomic.AddUint64(&globalMetrics.SubmissionsAccepted, 1)
	} else {
		atomic.AddUint64(&globalMetrics.SubmissionsFailed, 1)
	}
}

// RecordPoll counts a finished poll by its terminal state.
func RecordPoll(state string) {
	switch state {
	case "succeeded":
		atomic.AddUint64(&globalMetrics.PollsSucceeded, 1)
	case "exhausted":
		atomic.AddUint64(&globalMetrics.PollsExhausted, 1)
	default:
		atomic.AddUint64(&globalMetrics.PollsFailed, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"submissions_total":    atomic.LoadUint64(&globalMetrics.SubmissionsTotal),
		"submissions_accepted": atomic.LoadUint64(&globalMetrics.SubmissionsAccepted),
		"submissions_failed":   atomic.LoadUint64(&globalMetrics.SubmissionsFailed),
		"polls_succeeded":      atomic.LoadUint64(&globalMetrics.PollsSucceeded),
		"polls_exhausted":      atomic.LoadUint64(&globalMetrics.PollsExhausted),
		"polls_failed":         atomic.LoadUint64(&globalMetrics.PollsFailed),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
