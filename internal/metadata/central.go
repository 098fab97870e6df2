package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alvmarrod/artifact-weaver/internal/coordinate"
	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// DefaultRepositoryURL is Maven Central
const DefaultRepositoryURL = "https://repo1.maven.org/maven2"

const userAgent = "artifact-weaver (+https://github.com/alvmarrod/artifact-weaver)"

// ErrFetch wraps every failure to obtain artifact metadata
var ErrFetch = errors.New("metadata fetch failed")

// Source resolves the Last-Modified time of a published artifact
type Source interface {
	LastModified(ctx context.Context, a coordinate.Artifact) (time.Time, error)
}

// Options tune a CentralSource
type Options struct {
	RepositoryURL  string
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

// CentralSource reads Last-Modified headers from a Maven2 layout repository
type CentralSource struct {
	baseURL   string
	collector *colly.Collector
	attempts  int
	delay     time.Duration
}

// NewCentralSource creates a source backed by a colly collector
func NewCentralSource(opts Options) *CentralSource {
	base := strings.TrimRight(opts.RepositoryURL, "/")
	if base == "" {
		base = DefaultRepositoryURL
	}
	attempts := opts.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(userAgent),
	)
	if opts.RequestTimeout > 0 {
		c.SetRequestTimeout(opts.RequestTimeout)
	}

	c.OnResponse(func(r *colly.Response) {
		r.Ctx.Put("lastModified", r.Headers.Get("Last-Modified"))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			r.Ctx.Put("status", r.StatusCode)
		}
	})

	return &CentralSource{
		baseURL:   base,
		collector: c,
		attempts:  attempts,
		delay:     opts.RetryDelay,
	}
}

// URL returns the repository URL of the artifact file
func (s *CentralSource) URL(a coordinate.Artifact) string {
	return s.baseURL + "/" + a.RepositoryPath()
}

// LastModified issues a HEAD request for the artifact and parses its
// Last-Modified header. Server errors and transport failures are retried.
func (s *CentralSource) LastModified(ctx context.Context, a coordinate.Artifact) (time.Time, error) {
	url := s.URL(a)

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
		}

		modified, retry, err := s.head(url)
		if err == nil {
			return modified, nil
		}
		lastErr = err
		if !retry || attempt == s.attempts {
			break
		}

		logrus.Debugf("Retrying %s after attempt %d: %v", url, attempt, err)
		select {
		case <-ctx.Done():
			return time.Time{}, fmt.Errorf("%w: %s: %v", ErrFetch, url, ctx.Err())
		case <-time.After(s.delay):
		}
	}

	return time.Time{}, lastErr
}

// head performs one request; retry reports whether the failure may be transient
func (s *CentralSource) head(url string) (time.Time, bool, error) {
	reqCtx := colly.NewContext()
	if err := s.collector.Request(http.MethodHead, url, nil, reqCtx, nil); err != nil {
		status, _ := reqCtx.GetAny("status").(int)
		retry := status == 0 || status >= http.StatusInternalServerError
		return time.Time{}, retry, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
	}

	header := reqCtx.Get("lastModified")
	if header == "" {
		return time.Time{}, false, fmt.Errorf("%w: %s: no Last-Modified header", ErrFetch, url)
	}

	modified, err := http.ParseTime(header)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %s: bad Last-Modified %q: %v", ErrFetch, url, header, err)
	}
	return modified.UTC(), false, nil
}
