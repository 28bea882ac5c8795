package fetcher

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/migrate-cli/internal/resilience"
)

// Options configures remote downloads and spreadsheet reads.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
	// Limiter paces remote requests; nil means unlimited.
	Limiter *rate.Limiter
	Client  *http.Client
	Sheet   XLSXOptions
}

// Open returns a reader over src: a local path, an http(s) URL or an ftp://
// URL. HTTP reads retry on 5xx and 429 responses; FTP reads retry on
// transient network errors.
func Open(ctx context.Context, src string, opts Options) (io.ReadCloser, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	retry := opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("download " + src)
	}

	switch {
	case isHTTP(src):
		return openHTTP(ctx, src, opts, timeout, retry)
	case strings.HasPrefix(src, "ftp://"):
		var rc io.ReadCloser
		err := resilience.Do(ctx, retry, func(ctx context.Context) error {
			r, err := openFTP(ctx, src, timeout)
			if err != nil {
				return err
			}
			rc = r
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: download %s", src)
		}
		return rc, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", src)
	}
	return f, nil
}

func openHTTP(ctx context.Context, src string, opts Options, timeout time.Duration, retry resilience.RetryConfig) (io.ReadCloser, error) {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "migrate-cli/1.0"
	}

	var body io.ReadCloser
	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "rate limiter wait")
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return eris.Wrap(err, "build request")
		}
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return eris.Wrap(err, "http get")
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			statusErr := eris.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return resilience.NewTransientError(statusErr)
			}
			return statusErr
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: download %s", src)
	}
	zap.L().Debug("downloaded input", zap.String("url", src))
	return body, nil
}

func isHTTP(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}
