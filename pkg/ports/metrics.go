package ports

import "time"

// MetricsCollector records turn-level metrics
type MetricsCollector interface {
	RecordTurn(status string, duration time.Duration)
	RecordValidation(valid bool)
	RecordStateLoad(result string)
	RecordStateSave(ok bool)
	SetActiveTurns(count int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
