package domain

import (
	"context"
	"time"
)

type VerifyKind string

const (
	VerifyKindOk           VerifyKind = "ok"
	VerifyKindAuthExpired  VerifyKind = "auth_expired"
	VerifyKindAuthInvalid  VerifyKind = "auth_invalid"
	VerifyKindNetworkError VerifyKind = "network_error"
	VerifyKindTimeout      VerifyKind = "timeout"
)

// VerifyResult is the classified outcome of one connection attempt. Detail is
// internal diagnostic text and is only set for NetworkError.
type VerifyResult struct {
	Kind   VerifyKind
	Detail string
}

func (r VerifyResult) Ok() bool {
	return r.Kind == VerifyKindOk
}

// IsAuthFailure reports whether a token refresh could repair the failure.
func (r VerifyResult) IsAuthFailure() bool {
	return r.Kind == VerifyKindAuthExpired || r.Kind == VerifyKindAuthInvalid
}

func ResultOk() VerifyResult          { return VerifyResult{Kind: VerifyKindOk} }
func ResultAuthExpired() VerifyResult { return VerifyResult{Kind: VerifyKindAuthExpired} }
func ResultAuthInvalid() VerifyResult { return VerifyResult{Kind: VerifyKindAuthInvalid} }
func ResultTimeout() VerifyResult     { return VerifyResult{Kind: VerifyKindTimeout} }

func ResultNetworkError(detail string) VerifyResult {
	return VerifyResult{Kind: VerifyKindNetworkError, Detail: detail}
}

// UserMessage is the coarse text shown to end users for a result.
func (r VerifyResult) UserMessage() string {
	switch r.Kind {
	case VerifyKindOk:
		return "Connection successful"
	case VerifyKindAuthExpired:
		return "Credentials have expired"
	case VerifyKindAuthInvalid:
		return "Credentials were rejected"
	case VerifyKindTimeout:
		return "Connection timed out"
	default:
		return "Could not reach the warehouse"
	}
}

type ConnectionVerifier interface {
	Verify(ctx context.Context, descriptor ConnectionDescriptor, timeout time.Duration) VerifyResult
}
