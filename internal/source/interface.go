package source

import "context"

// ReportRequest identifies one single-day report download.
type ReportRequest struct {
	TaskID int64
	AppID  string // network app id the report is scoped to
	APIKey string
	Day    string // YYYY-MM-DD, used as both start and end
}

// RequestRecorder stores the URL a task is about to request so slow or
// failed downloads stay diagnosable.
type RequestRecorder interface {
	UpdateRequestURL(ctx context.Context, taskID int64, url string) error
}

// ReportSource defines the interface for network reporting APIs.
type ReportSource interface {
	// GetSourceID returns the unique identifier for this source.
	GetSourceID() string

	// FetchReport downloads the raw report payload for req.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - req: report window and credentials.
	// Returns:
	//   - []byte: raw response body, never empty on success.
	//   - error: a *domain.TaskError describing the failure.
	FetchReport(ctx context.Context, req ReportRequest) ([]byte, error)
}
