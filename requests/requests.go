package requests

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

var client = &fasthttp.Client{
	ReadTimeout:  20 * time.Second,
	WriteTimeout: 20 * time.Second,
}

// Get fetches a URL with the given headers and returns the response body and
// status code. The body is copied out of fasthttp's pooled buffers.
func Get(ctx *context.Context, url string, headers map[string]string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	deadline := time.Now().Add(20 * time.Second)
	if d, ok := (*ctx).Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := client.DoDeadline(req, resp, deadline); err != nil {
		return nil, 0, err
	}

	code := resp.StatusCode()
	if code >= 400 {
		return nil, code, fmt.Errorf("requests: GET %v returned status %v", url, code)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, code, nil
}
