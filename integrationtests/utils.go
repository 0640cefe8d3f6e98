package integrationtests

import (
	"context"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 10 * time.Second

var httpClient = &http.Client{Timeout: requestTimeout}

// fetchBody issues a request against the running service and returns the
// status code and the full response body.
func fetchBody(ctx context.Context, methodType, url string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, methodType, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	response, err := httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer response.Body.Close()

	b, err := io.ReadAll(response.Body)
	if err != nil {
		return response.StatusCode, nil, err
	}
	return response.StatusCode, b, nil
}
