package metrics

import "sync/atomic"

// Metrics captures shared operational stats for navigation, sessions, and the import queue.
type Metrics struct {
	queueLength   int64
	queueCapacity int64
	workerCount   int64

	processedJobs int64
	failedJobs    int64

	transitions int64
	lookupMiss  int64
	overridden  int64

	signInOK       int64
	signInFailed   int64
	activeSessions int64
	expiredSession int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	QueueLength     int   `json:"queue_length"`
	QueueCapacity   int   `json:"queue_capacity"`
	WorkerCount     int   `json:"worker_count"`
	ProcessedJobs   int64 `json:"processed_jobs"`
	FailedJobs      int64 `json:"failed_jobs"`
	Transitions     int64 `json:"navigation_transitions"`
	LookupMisses    int64 `json:"lookup_misses"`
	Overridden      int64 `json:"overridden_selections"`
	SignInsOK       int64 `json:"sign_ins_ok"`
	SignInsFailed   int64 `json:"sign_ins_failed"`
	ActiveSessions  int64 `json:"active_sessions"`
	ExpiredSessions int64 `json:"expired_sessions"`
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
	atomic.StoreInt64(&m.workerCount, int64(workers))
}

// RecordJobCompletion increments processed/failed counters based on outcome.
func (m *Metrics) RecordJobCompletion(err error) {
	atomic.AddInt64(&m.processedJobs, 1)
	if err != nil {
		atomic.AddInt64(&m.failedJobs, 1)
	}
}

func (m *Metrics) RecordTransition() { atomic.AddInt64(&m.transitions, 1) }
func (m *Metrics) RecordLookupMiss() { atomic.AddInt64(&m.lookupMiss, 1) }
func (m *Metrics) RecordOverride() { atomic.AddInt64(&m.overridden, 1) }

// RecordSessionExpired adds n swept sessions.
func (m *Metrics) RecordSessionExpired(n int) { atomic.AddInt64(&m.expiredSession, int64(n)) }

// RecordSignIn counts a sign-in attempt by outcome.
func (m *Metrics) RecordSignIn(ok bool) {
	if ok {
		atomic.AddInt64(&m.signInOK, 1)
		return
	}
	atomic.AddInt64(&m.signInFailed, 1)
}

// SetActiveSessions records the live session count.
func (m *Metrics) SetActiveSessions(n int) {
	atomic.StoreInt64(&m.activeSessions, int64(n))
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		QueueLength:     int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity:   int(atomic.LoadInt64(&m.queueCapacity)),
		WorkerCount:     int(atomic.LoadInt64(&m.workerCount)),
		ProcessedJobs:   atomic.LoadInt64(&m.processedJobs),
		FailedJobs:      atomic.LoadInt64(&m.failedJobs),
		Transitions:     atomic.LoadInt64(&m.transitions),
		LookupMisses:    atomic.LoadInt64(&m.lookupMiss),
		Overridden:      atomic.LoadInt64(&m.overridden),
		SignInsOK:       atomic.LoadInt64(&m.signInOK),
		SignInsFailed:   atomic.LoadInt64(&m.signInFailed),
		ActiveSessions:  atomic.LoadInt64(&m.activeSessions),
		ExpiredSessions: atomic.LoadInt64(&m.expiredSession),
	}
}
