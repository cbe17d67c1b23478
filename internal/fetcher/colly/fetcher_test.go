package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/elections-scraper/internal/election"
)

func TestFetcherReturnsPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f, err := New(Config{UserAgent: "test-agent", Timeout: time.Second})
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), srv.URL+"/ps311?xobec=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, "<html><body>ok</body></html>", string(page.Body))
	require.Equal(t, srv.URL+"/ps311?xobec=1", page.URL)
	require.Equal(t, "text/html; charset=utf-8", page.Headers.Get("Content-Type"))

	// Same URL again must not be rejected as already visited.
	_, err = f.Fetch(context.Background(), srv.URL+"/ps311?xobec=1")
	require.NoError(t, err)
}

func TestFetcherConcurrentFetches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Query().Get("xobec")))
	}))
	defer srv.Close()

	f, err := New(Config{UserAgent: "test-agent", Timeout: time.Second, Parallelism: 16})
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := f.Fetch(context.Background(), fmt.Sprintf("%s/ps311?xobec=%d", srv.URL, i))
			if err != nil {
				errs <- err
				return
			}
			if string(page.Body) != strconv.Itoa(i) {
				errs <- fmt.Errorf("fetch %d: got body %q", i, page.Body)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestFetcherClassifiesStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	f, err := New(Config{Timeout: time.Second})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	var fetchErr *election.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, election.KindProtocolStatus, fetchErr.Kind)
	require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	require.False(t, fetchErr.Retryable())
}

func TestFetcherClassifiesTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f, err := New(Config{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), srv.URL)
	var fetchErr *election.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, election.KindTimeout, fetchErr.Kind)
	require.True(t, fetchErr.Retryable())
}

func TestFetcherClassifiesConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	f, err := New(Config{Timeout: time.Second})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), target)
	var fetchErr *election.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, election.KindConnection, fetchErr.Kind)
}

func TestFetcherHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f, err := New(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	start := time.Unix(0, 0)
	var result election.Page
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, "https://example.com", start, &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request: &colly.Request{
			URL: mustParseURL(t, "https://example.com/final"),
		},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "ok", result.Headers.Get("X-Resp"))
	require.Equal(t, "https://example.com/final", result.FinalURL)

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	var classified *election.FetchError
	require.ErrorAs(t, fetchErr, &classified)
	require.Equal(t, election.KindProtocolStatus, classified.Kind)
	require.Equal(t, http.StatusBadGateway, classified.StatusCode)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	require.Equal(t, election.KindTimeout, classify("u", 0, context.DeadlineExceeded).Kind)
	require.Equal(t, election.KindUnknown, classify("u", 0, context.Canceled).Kind)
	require.Equal(t, election.KindUnknown, classify("u", 0, errors.New("odd")).Kind)
	require.Equal(t, election.KindConnection,
		classify("u", 0, &url.Error{Op: "Get", URL: "u", Err: errors.New("reset")}).Kind)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse url %q: %v", raw, err)
	}
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
