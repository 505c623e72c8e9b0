package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// classify maps a transport error to an outcome class and kind.
//
// Design decision: Classification is centralized rather than duplicated in
// each fetcher because:
//  1. HTTP and FTP surface the same dial and socket errors
//  2. The retry policy depends only on class and kind, never on protocol
//  3. One table of cases is easier to audit than two
func classify(err error) (Class, ErrorKind) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Transient, KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return Transient, KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return Transient, KindConnectionReset
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		// A name that does not exist will not start existing on retry.
		if dnsErr.IsNotFound {
			return Permanent, KindDNSFailure
		}
		return Transient, KindDNSFailure
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient, KindTimeout
	}

	// Unrecognized transport errors are treated as retryable. A flaky
	// network should not permanently fail an entry on the first attempt.
	return Transient, KindConnectionReset
}

// classifiedOutcome wraps err in an Outcome using the shared classification.
func classifiedOutcome(err error) *Outcome {
	class, kind := classify(err)
	if class == Permanent {
		return permanentOutcome(kind, err)
	}
	return transientOutcome(kind, err)
}
