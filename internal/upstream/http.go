package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 8 << 20

// Get performs a GET under the retry policy and returns the raw body of a
// 2xx response.  Non-2xx responses become *StatusError; the body of an
// error response is discarded and never surfaced.
func (c *Caller) Get(ctx context.Context, client *http.Client, op, rawURL string, header http.Header) ([]byte, error) {
	var body []byte
	err := c.Do(ctx, op, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return &StatusError{Service: c.service, StatusCode: resp.StatusCode}
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
