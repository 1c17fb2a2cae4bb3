package letsencrypt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certificate"

	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// obtain requests the certificate, retrying transient failures with
// exponential backoff.
func (g *Generator) obtain(ctx context.Context, client acmeClient, req certificate.ObtainRequest) (*certificate.Resource, error) {
	backoff := g.cfg.retryBackoff

	var lastErr error
	for attempt := 1; attempt <= g.cfg.maxAttempts; attempt++ {
		res, err := client.Obtain(req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == g.cfg.maxAttempts || !isRetryableError(err) {
			break
		}
		g.cfg.logger.Warn("certificate request failed, retrying",
			logger.Error(err),
			logger.Count("attempt", attempt),
			logger.Duration(backoff))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("obtain certificate: %w", ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("obtain certificate for %s: %w", req.Domains[0], lastErr)
}

// isRetryableError reports network failures and CA overload, which are
// worth another attempt. Validation failures are not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"network is unreachable",
		"no such host",
		"timeout",
		"rate limit",
		"429",
		"503",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
