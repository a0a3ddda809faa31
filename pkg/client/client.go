package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultMaxRetries is how many times a request is re-sent after a
// transport failure.
const DefaultMaxRetries = 3

// Client is a struct for communicating with the pipetcal daemon
type Client struct {
	addr       string
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
	// newBackOff is replaced in tests.
	newBackOff func() backoff.BackOff
}

// NewClient returns a Client for addr, which is an http(s) URL, a host:port
// pair or "unix:" followed by a socket path.
func NewClient(addr string) *Client {
	c := &Client{
		addr:       addr,
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxElapsedTime = 5 * time.Second
			return bo
		},
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{}

	switch {
	case strings.HasPrefix(addr, "unix:"):
		socketPath := strings.TrimPrefix(addr, "unix:")
		c.baseURL = "http://unix"
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, "unix", socketPath)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
					return nil, pkgerrors.Wrap(ErrDaemonNotRunning, err.Error())
				}
				if errors.Is(err, fs.ErrPermission) {
					return nil, pkgerrors.Wrap(ErrPermissionDenied, err.Error())
				}
				return nil, err
			}
			return conn, nil
		}
	case strings.HasPrefix(addr, "http://"), strings.HasPrefix(addr, "https://"):
		c.baseURL = strings.TrimSuffix(addr, "/")
		transport.DialContext = dialer.DialContext
	default:
		c.baseURL = "http://" + strings.TrimSuffix(addr, "/")
		transport.DialContext = dialer.DialContext
	}

	c.httpClient = &http.Client{Transport: transport, Timeout: 30 * time.Second}
	return c
}

// Send sends one request to the daemon and returns the response body. Every
// endpoint is idempotent, so transport failures are retried with
// exponential backoff; HTTP error answers are not.
func (c *Client) Send(ctx context.Context, method string, path string, data []byte) ([]byte, error) {
	logrus.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"size":   len(data),
		"addr":   c.addr,
	}).Debug("sending request")

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(pkgerrors.Wrap(err, "failed to create request"))
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) || ctx.Err() != nil {
				return backoff.Permanent(pkgerrors.Wrap(err, "failed to send request"))
			}
			return pkgerrors.Wrap(err, "failed to send request")
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logrus.Errorf("failed to close response body: %v", err)
			}
		}()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return pkgerrors.Wrap(err, "failed to read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			if json.Unmarshal(b, &apiErr.Body) != nil {
				apiErr.Body.Detalle = strings.TrimSpace(string(b))
			}
			return backoff.Permanent(apiErr)
		}

		body = b
		return nil
	}

	notify := func(err error, next time.Duration) {
		logrus.WithError(err).Debugf("request failed, retrying in %s", next)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	return body, nil
}

// Get is a method for sending a GET request to the daemon
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.Send(ctx, http.MethodGet, path, nil)
}

// Put is a method for sending a PUT request with a JSON body to the daemon
func (c *Client) Put(ctx context.Context, path string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to encode request")
	}
	return c.Send(ctx, http.MethodPut, path, b)
}

// Post is a method for sending a POST request with a JSON body to the daemon
func (c *Client) Post(ctx context.Context, path string, v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to encode request")
	}
	return c.Send(ctx, http.MethodPost, path, b)
}
