package email

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/atlastravel/backoffice-backend/pkg/config"
	pkgerrors "github.com/atlastravel/backoffice-backend/pkg/errors"
	"github.com/atlastravel/backoffice-backend/pkg/logger"
	"github.com/atlastravel/backoffice-backend/pkg/metrics"
)

const (
	// KindSend labels the first dispatch of a quote email.
	KindSend = "send"
	// KindRetry labels an explicit re-dispatch after a failure.
	KindRetry = "retry"
)

// Outcome reports what a dispatch accomplished.
type Outcome struct {
	MessageID string
	Attempts  int
}

// Dispatcher sends quote emails through a Transport with bounded, backed-off
// retries. A dispatch either delivers or returns EMAIL_SEND_FAILED; it never
// blocks past attempts*timeout.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind string, msg Message) (Outcome, error)
}

type dispatcher struct {
	transport   Transport
	maxAttempts int
	sendTimeout time.Duration
	metrics     *metrics.QuoteMetrics
	logg        *logger.Logger
}

// NewDispatcher builds the retry coordinator.
func NewDispatcher(transport Transport, cfg config.EmailConfig, qm *metrics.QuoteMetrics, logg *logger.Logger) (Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("email transport is required")
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &dispatcher{
		transport:   transport,
		maxAttempts: attempts,
		sendTimeout: timeout,
		metrics:     qm,
		logg:        logg,
	}, nil
}

func (d *dispatcher) Dispatch(ctx context.Context, kind string, msg Message) (Outcome, error) {
	var out Outcome

	backoff := retry.WithMaxRetries(uint64(d.maxAttempts-1), retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out.Attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()

		start := time.Now()
		messageID, err := d.transport.Send(attemptCtx, msg)
		elapsed := time.Since(start)
		if err != nil {
			d.metrics.ObserveEmailAttempt(kind, "failure", elapsed)
			if d.logg != nil {
				d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
					"attempt": out.Attempts,
					"error":   err.Error(),
				}), "quote email attempt failed")
			}
			if isRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		d.metrics.ObserveEmailAttempt(kind, "success", elapsed)
		out.MessageID = messageID
		return nil
	})
	if err != nil {
		return out, pkgerrors.Wrap(pkgerrors.CodeEmailSendFailed, err,
			fmt.Sprintf("delivery failed after %d attempt(s)", out.Attempts))
	}
	return out, nil
}

// isRetryable consults the domain error taxonomy; unclassified transport
// failures are assumed transient.
func isRetryable(err error) bool {
	if typed := pkgerrors.As(err); typed != nil {
		return pkgerrors.MetadataFor(typed.Code()).Retryable
	}
	return true
}
