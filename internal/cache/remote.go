package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"git.home.luguber.info/inful/nextgen/internal/logfields"
	"git.home.luguber.info/inful/nextgen/internal/retry"
)

// RemoteConfig configures the HTTP tier.
type RemoteConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
	Policy  retry.Policy
	Client  *http.Client
}

// StatusError is returned for an unexpected remote HTTP status.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.Code)
}

// RemoteTier talks to a remote cache server.
type RemoteTier struct {
	base   string
	token  string
	client *http.Client
	policy retry.Policy
	logger *slog.Logger
}

// NewRemoteTier returns nil when cfg.URL is empty.
func NewRemoteTier(cfg RemoteConfig, logger *slog.Logger) *RemoteTier {
	if cfg.URL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	policy := cfg.Policy
	if policy.Validate() != nil {
		policy = retry.DefaultPolicy()
	}
	return &RemoteTier{
		base:   strings.TrimRight(cfg.URL, "/"),
		token:  cfg.Token,
		client: client,
		policy: policy,
		logger: logger,
	}
}

// URL returns the remote base URL.
func (r *RemoteTier) URL() string { return r.base }

func (r *RemoteTier) manifestURL(key string) string {
	return r.base + "/manifest/" + url.PathEscape(key)
}

func (r *RemoteTier) fileURL(key, name string) string {
	return r.base + "/file/" + url.PathEscape(key) + "/" + url.PathEscape(name)
}

// retryable retries transport failures and server errors only.
func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// do sends one request through the retry policy. handle is invoked for the
// final 2xx or 404 response; other statuses become *StatusError.
func (r *RemoteTier) do(ctx context.Context, method, target string, body func() (io.Reader, error), handle func(*http.Response) error) error {
	return r.policy.Do(ctx, retryable, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			b, err := body()
			if err != nil {
				return err
			}
			reader = b
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return err
		}
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{Method: method, URL: target, Code: resp.StatusCode}
		}
		if handle == nil {
			return nil
		}
		return handle(resp)
	})
}

// Manifest fetches the manifest for key. A missing manifest yields ErrNotFound.
func (r *RemoteTier) Manifest(ctx context.Context, key string) (*Manifest, error) {
	var m Manifest
	err := r.do(ctx, http.MethodGet, r.manifestURL(key), nil, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
			return fmt.Errorf("decode remote manifest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.Key == "" {
		m.Key = key
	}
	return &m, nil
}

// FetchFile streams the artifact name of key into w.
func (r *RemoteTier) FetchFile(ctx context.Context, key, name string, w func(io.Reader) error) error {
	return r.do(ctx, http.MethodGet, r.fileURL(key, name), nil, func(resp *http.Response) error {
		return w(resp.Body)
	})
}

// UploadFile PUTs the local file at path under key.
func (r *RemoteTier) UploadFile(ctx context.Context, key, name, path string) error {
	var f *os.File
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()
	body := func() (io.Reader, error) {
		if f != nil {
			_ = f.Close()
		}
		var err error
		// #nosec G304 - path is a build output
		f, err = os.Open(path)
		return f, err
	}
	err := r.do(ctx, http.MethodPut, r.fileURL(key, name), body, nil)
	if err != nil {
		r.logger.Debug("Remote cache upload failed", logfields.CacheKey(key), logfields.Path(name), logfields.Error(err))
	}
	return err
}
