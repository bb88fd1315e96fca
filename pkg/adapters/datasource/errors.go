package datasource

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
)

// ClassifyQueryError maps a raw driver error to the agent error taxonomy.
// Timeouts and connectivity failures are distinguished from plain execution
// errors because only execution errors are eligible for retry.
func ClassifyQueryError(err error) *apperrors.AgentError {
	if err == nil {
		return nil
	}

	var agentErr *apperrors.AgentError
	if errors.As(err, &agentErr) {
		return agentErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.New(apperrors.KindExecutionTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return apperrors.New(apperrors.KindExecutionTimeout, err)
		}
		return apperrors.New(apperrors.KindConnectivityError, err)
	}

	if isConnectivityMessage(err.Error()) {
		return apperrors.New(apperrors.KindConnectivityError, err)
	}

	return apperrors.New(apperrors.KindExecutionError, err)
}

func isConnectivityMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"failed to connect",
		"broken pipe",
		"unexpected eof",
		"server closed the connection",
		"network unreachable",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
