package model

import "time"

// CrawlStatus is the queue entry state machine:
// pending -> processing -> {completed, failed}; failed -> pending via retry.
type CrawlStatus string

// Queue entry states.
const (
	CrawlPending    CrawlStatus = "pending"
	CrawlProcessing CrawlStatus = "processing"
	CrawlCompleted  CrawlStatus = "completed"
	CrawlFailed     CrawlStatus = "failed"
)

// CrawlQueueEntry is a durable unit of crawl work keyed by school. At most one
// entry per school may be pending or processing at any time.
type CrawlQueueEntry struct {
	ID          int64       `json:"id" db:"id"`
	SchoolID    string      `json:"school_id" db:"school_id"`
	Domain      string      `json:"domain" db:"domain"`
	Status      CrawlStatus `json:"status" db:"status"`
	Attempts    int         `json:"attempts" db:"attempts"`
	ScheduledAt time.Time   `json:"scheduled_at" db:"scheduled_at"`
	LastError   string      `json:"last_error,omitempty" db:"last_error"`
}
