// Package verifier opens a connection from a descriptor, runs one probe and
// classifies the outcome. Every step is bounded by the caller's timeout.
package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/flowbaker/vault/pkg/domain"
	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 15 * time.Second

// Connection is an open session against the remote system.
type Connection interface {
	Probe(ctx context.Context) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, descriptor domain.ConnectionDescriptor) (Connection, error)
}

// Classifier maps a provider error to a result. It is the only place that
// knows the provider's error surface.
type Classifier func(err error) domain.VerifyResult

type VerifierDependencies struct {
	Dialer   Dialer
	Classify Classifier
}

type Verifier struct {
	dialer   Dialer
	classify Classifier
}

func New(deps VerifierDependencies) *Verifier {
	classify := deps.Classify
	if classify == nil {
		classify = func(err error) domain.VerifyResult {
			return domain.ResultNetworkError(err.Error())
		}
	}

	return &Verifier{
		dialer:   deps.Dialer,
		classify: classify,
	}
}

type dialResult struct {
	conn Connection
	err  error
}

func (v *Verifier) Verify(ctx context.Context, descriptor domain.ConnectionDescriptor, timeout time.Duration) domain.VerifyResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialed := make(chan dialResult, 1)
	go func() {
		conn, err := v.dialer.Dial(ctx, descriptor)
		dialed <- dialResult{conn: conn, err: err}
	}()

	var conn Connection
	select {
	case <-ctx.Done():
		go discardLate(dialed)
		return v.abandoned(ctx, descriptor, "open")
	case res := <-dialed:
		if res.err != nil {
			return v.failure(ctx, descriptor, "open", res.err)
		}
		conn = res.conn
	}

	probed := make(chan error, 1)
	go func() {
		probed <- conn.Probe(ctx)
	}()

	select {
	case <-ctx.Done():
		go func() {
			<-probed
			closeQuietly(conn)
		}()
		return v.abandoned(ctx, descriptor, "probe")
	case err := <-probed:
		closeQuietly(conn)
		if err != nil {
			return v.failure(ctx, descriptor, "probe", err)
		}
	}

	return domain.ResultOk()
}

func (v *Verifier) failure(ctx context.Context, descriptor domain.ConnectionDescriptor, stage string, err error) domain.VerifyResult {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return v.abandoned(ctx, descriptor, stage)
	}

	result := v.classify(err)

	log.Debug().
		Err(err).
		Str("host", descriptor.Target().Host).
		Str("auth_method", string(descriptor.Method())).
		Str("stage", stage).
		Str("result", string(result.Kind)).
		Msg("Connection verification failed")

	return result
}

func (v *Verifier) abandoned(ctx context.Context, descriptor domain.ConnectionDescriptor, stage string) domain.VerifyResult {
	log.Debug().
		Str("host", descriptor.Target().Host).
		Str("auth_method", string(descriptor.Method())).
		Str("stage", stage).
		Msg("Connection verification abandoned")

	if errors.Is(ctx.Err(), context.Canceled) {
		return domain.ResultNetworkError("verification cancelled")
	}

	return domain.ResultTimeout()
}

// discardLate waits for an abandoned dial and closes whatever it produced.
func discardLate(dialed <-chan dialResult) {
	res := <-dialed
	if res.conn != nil {
		closeQuietly(res.conn)
	}
}

func closeQuietly(conn Connection) {
	if err := conn.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close verification connection")
	}
}
