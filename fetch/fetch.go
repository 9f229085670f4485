// Package fetch is the Go-shaped boundary of the repository trust
// engine's HTTP transport layer. It is referenced only — nothing in
// package trust imports or calls it — matching spec.md §6's description
// of the fetch subsystem as an out-of-scope collaborator whose fetched
// bytes a caller hands to the engine, not a component the engine owns.
//
// Handle's fields mirror libmamba/src/core/curl.cpp's
// configure_curl_handle: URL, proxy, TLS verification mode, connect
// timeout, and a low-speed abort threshold. Pool is the Go analogue of
// curl's multi interface, built from goroutines and channels rather
// than a cgo binding to libcurl, since no pack example wraps libcurl's
// multi API in Go.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sync"
	"time"
)

// ErrDownloadHTTP is returned when a transfer completes with a non-200
// status code, matching the teacher's fetcher.ErrDownloadHTTP shape.
type ErrDownloadHTTP struct {
	StatusCode int
	URL        string
}

func (e ErrDownloadHTTP) Error() string {
	return fmt.Sprintf("fetch: %s: http status %d", e.URL, e.StatusCode)
}

// ErrDownloadLengthMismatch is returned when a transfer's body exceeds
// the caller's declared maximum length.
type ErrDownloadLengthMismatch struct {
	Msg string
}

func (e ErrDownloadLengthMismatch) Error() string { return fmt.Sprintf("fetch: %s", e.Msg) }

// Handle configures a single transfer.
type Handle struct {
	URL string

	// Proxy, if set, is used for this transfer only.
	Proxy string

	// SSLVerifyPeer is carried as configuration only: Perform does not
	// read it, and every transfer uses net/http's default certificate
	// verification whatever its value (its zero value is false).
	SSLVerifyPeer bool

	ConnectTimeout time.Duration

	// LowSpeedLimit and LowSpeedTime bound how slow a transfer may run
	// before it is aborted, mirroring curl's CURLOPT_LOW_SPEED_LIMIT/TIME.
	// Neither is enforced by the net/http-backed Perform below — no pack
	// example implements throughput-based abort over net/http — so they
	// are carried as configuration only, for a future transport swap.
	LowSpeedLimit int64
	LowSpeedTime  time.Duration

	// MaxLength bounds the response body size; zero means unbounded.
	MaxLength int64

	UserAgent string
}

// Result is the outcome of one Handle's transfer.
type Result struct {
	Handle     *Handle
	StatusCode int
	Body       []byte
	Err        error
}

// Strerror renders a Result's error the way curl_easy_strerror would,
// for a one-line transfer summary regardless of outcome.
func (r Result) Strerror() string {
	if r.Err == nil {
		return "no error"
	}
	return r.Err.Error()
}

// Perform runs a single Handle's transfer synchronously.
func Perform(ctx context.Context, h *Handle) Result {
	client := &http.Client{Timeout: h.ConnectTimeout}
	if h.Proxy != "" {
		proxyURL, err := neturl.Parse(h.Proxy)
		if err != nil {
			return Result{Handle: h, Err: err}
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return Result{Handle: h, Err: err}
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	res, err := client.Do(req)
	if err != nil {
		return Result{Handle: h, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Result{Handle: h, StatusCode: res.StatusCode, Err: ErrDownloadHTTP{StatusCode: res.StatusCode, URL: h.URL}}
	}

	var body []byte
	if h.MaxLength > 0 {
		body, err = io.ReadAll(io.LimitReader(res.Body, h.MaxLength+1))
	} else {
		body, err = io.ReadAll(res.Body)
	}
	if err != nil {
		return Result{Handle: h, StatusCode: res.StatusCode, Err: err}
	}
	if h.MaxLength > 0 && int64(len(body)) > h.MaxLength {
		return Result{Handle: h, StatusCode: res.StatusCode, Err: ErrDownloadLengthMismatch{
			Msg: fmt.Sprintf("%s: body length %d exceeds max %d", h.URL, len(body), h.MaxLength),
		}}
	}
	return Result{Handle: h, StatusCode: res.StatusCode, Body: body}
}

// Pool runs a bounded number of transfers concurrently, the Go
// analogue of curl's multi handle.
type Pool struct {
	Concurrency int
}

// NewPool returns a Pool that runs up to concurrency transfers at once.
func NewPool(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{Concurrency: concurrency}
}

// PerformAll runs every handle's transfer, respecting p.Concurrency,
// returning one Result per handle in the same order handles were given.
func (p *Pool) PerformAll(ctx context.Context, handles []*Handle) []Result {
	results := make([]Result, len(handles))
	sem := make(chan struct{}, p.Concurrency)
	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, h *Handle) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = Perform(ctx, h)
		}(i, h)
	}
	wg.Wait()
	return results
}
