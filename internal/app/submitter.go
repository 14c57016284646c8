package app

import (
	"context"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"

	"github.com/example/reproc/internal/logkeys"
)

// Submitter drains the submission queue in the background. Requests land
// on the queue when they advance from approved; the actual submission
// happens here, one request at a time, so a slow workflow manager never
// blocks the API.
type Submitter struct {
	requests *RequestService
	queue    chan string
	logger   log.Logger
}

// NewSubmitter creates a submitter with the given queue capacity and
// wires itself into the request service.
func NewSubmitter(requests *RequestService, capacity int, logger log.Logger) *Submitter {
	if capacity < 1 {
		capacity = 1
	}
	s := &Submitter{
		requests: requests,
		queue:    make(chan string, capacity),
		logger:   logger,
	}
	requests.SetSubmitter(s)
	return s
}

// Enqueue implements Enqueuer.
func (s *Submitter) Enqueue(prepid string) bool {
	select {
	case s.queue <- prepid:
		return true
	default:
		return false
	}
}

// Run processes queued submissions until the context is canceled.
func (s *Submitter) Run(ctx context.Context) error {
	logger := ctxlog.Logger(ctx, s.logger)
	logger.Info(logkeys.Message, "submitter started")
	for {
		select {
		case <-ctx.Done():
			logger.Info(logkeys.Message, "submitter stopped")
			return ctx.Err()
		case prepid := <-s.queue:
			if err := s.requests.submitQueued(ctx, prepid); err != nil {
				logger.Info(
					logkeys.Message, "submission failed",
					logkeys.PrepID, prepid,
					logkeys.Error, err,
				)
			}
		}
	}
}
