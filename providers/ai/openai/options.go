package openai

import (
	"net/http"

	"github.com/ce-data-e/opencodex/internal/utils"
)

// defaultMaxArgumentBytes bounds per-call accumulated tool-call argument
// bytes when no explicit cap is configured.
const defaultMaxArgumentBytes = 1 * 1024 * 1024

// Options carries per-request transport settings resolved by the caller:
// the HTTP client to use, the already-validated credential, the turn
// correlation ID, and the cap on accumulated tool-call argument bytes per
// call.
type Options struct {
	HTTPClient       *http.Client
	APIKey           string
	RequestID        string
	MaxArgumentBytes int
}

func (opts Options) argumentLimit() int {
	if opts.MaxArgumentBytes > 0 {
		return opts.MaxArgumentBytes
	}
	return defaultMaxArgumentBytes
}

func (opts Options) headers() []utils.HeaderOption {
	if opts.RequestID == "" {
		return nil
	}
	return []utils.HeaderOption{{Key: "X-Request-Id", Value: opts.RequestID}}
}
