package analysis

import "context"

// Gateway is the read-only port onto the analysis table.
type Gateway interface {
	FetchAll(ctx context.Context) ([]*Record, error)
	// FetchLatestFor returns nil, nil when the student has no record yet.
	FetchLatestFor(ctx context.Context, studentID string) (*Record, error)
}

// Submitter triggers the external analysis workflow.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (*Ack, error)
}

// ReportArchive stores finished analysis reports.
type ReportArchive interface {
	PutReport(ctx context.Context, r *Record) (string, error)
}
