package port

import "context"

// FailureNotice describes a job that will not be retried again.
type FailureNotice struct {
	UserEmail string
	JobID     string
	VideoKey  string
	Reason    string
	Attempts  int
}

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, notice FailureNotice) error
}
