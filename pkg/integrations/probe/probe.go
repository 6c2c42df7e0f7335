// Package probe holds the authenticated-GET check shared by API-key sources.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxLoggedBody = 512

type Request struct {
	Source string
	URL    string
	Token  string
	Header map[string]string
}

// BearerGET reports whether the source answered 2xx to an authenticated GET.
// Any other status is a rejection; only transport failures are errors. The
// response body is logged, never returned.
func BearerGET(ctx context.Context, client *http.Client, r Request) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+r.Token)
	req.Header.Set("Accept", "application/json")
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach %s: %w", r.Source, err)
	}
	defer resp.Body.Close()

	return Accepted(r.Source, resp), nil
}

// Accepted reads the status of a probe response, logging the body of a
// rejection.
func Accepted(source string, resp *http.Response) bool {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))

	log.Warn().
		Str("source", source).
		Int("status_code", resp.StatusCode).
		Str("body", string(body)).
		Msg("Source rejected credentials")

	return false
}
