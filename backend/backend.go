package backend

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Kind selects the destination backend family, which fixes both the wire
// codec and the write-request shape.
type Kind string

const (
	// Influx is a tag/field line-protocol store (InfluxDB 1.x write API).
	Influx Kind = "influx"
	// Warp10 is a class/label store (Warp 10 GTS ingress API).
	Warp10 Kind = "warp10"
)

// DefaultTimeout bounds a single write request end to end.
const DefaultTimeout = 30 * time.Second

// ErrConfiguration is returned for invalid or incomplete backend
// configuration. It is always raised at construction, never mid-batch.
var ErrConfiguration = errors.New("invalid backend configuration")

// Config describes one backend connection. It is copied at construction
// and never mutated afterwards.
type Config struct {
	Kind Kind
	// URL is the base URL of the backend, e.g. "http://localhost:8086"
	// or "http://localhost:8080/api/v0". The write path is appended.
	URL string
	// Database is required for the influx kind, ignored for warp10.
	Database string
	// Username and Password authenticate against the influx kind only.
	Username string
	Password string
	// Token is the write token for the warp10 kind only.
	Token string
	// Timeout for one write request, DefaultTimeout when zero.
	Timeout time.Duration
}

// Client sends pre-serialized payloads to one backend's write endpoint.
// It knows the HTTP method, path and auth convention of each kind, but
// nothing about how points are serialized.
type Client struct {
	cfg     Config
	httpCli *http.Client
}

// NewClient validates the configuration and builds a connector for it.
func NewClient(cfg Config) (*Client, error) {
	switch cfg.Kind {
	case Influx:
		if cfg.Database == "" {
			return nil, errors.WithMessage(ErrConfiguration, "influx database missing")
		}
		if cfg.Token != "" {
			return nil, errors.WithMessage(ErrConfiguration, "token auth not supported for influx backend")
		}
	case Warp10:
		if cfg.Username != "" || cfg.Password != "" {
			return nil, errors.WithMessage(ErrConfiguration, "username/password auth not supported for warp10 backend")
		}
	default:
		return nil, errors.WithMessagef(ErrConfiguration, "unsupported backend %q", cfg.Kind)
	}
	if cfg.URL == "" {
		return nil, errors.WithMessage(ErrConfiguration, "backend URL missing")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	logrus.WithField("kind", cfg.Kind).Debug("backend client instantiated")
	return &Client{
		cfg:     cfg,
		httpCli: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Kind returns the configured backend kind.
func (c *Client) Kind() Kind {
	return c.cfg.Kind
}

// SendResult reports the outcome of one write attempt. HTTP-level failures
// are captured here, not raised: Success is false and Err carries the
// detail, with StatusCode preserved when a response was received.
type SendResult struct {
	Success    bool
	StatusCode int
	Elapsed    time.Duration
	Err        error
}

// Send performs exactly one write request carrying the payload and reports
// the outcome. It never retries.
func (c *Client) Send(payload string) SendResult {
	req, err := c.newRequest(payload)
	if err != nil {
		return SendResult{Err: err}
	}

	start := time.Now()
	resp, err := c.httpCli.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("url", req.URL.String()).Debug("write request failed")
		return SendResult{
			Elapsed: elapsed,
			Err:     errors.WithMessage(err, "write request failed"),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(body),
		}).Debug("backend rejected write")
		return SendResult{
			StatusCode: resp.StatusCode,
			Elapsed:    elapsed,
			Err:        errors.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return SendResult{
		Success:    true,
		StatusCode: resp.StatusCode,
		Elapsed:    elapsed,
	}
}

func (c *Client) newRequest(payload string) (*http.Request, error) {
	switch c.cfg.Kind {
	case Warp10:
		// https://www.warp10.io/content/03_Documentation/03_Interacting_with_Warp_10/03_Ingesting_data/01_Ingress
		req, err := http.NewRequest(http.MethodPost, c.cfg.URL+"/update", strings.NewReader(payload))
		if err != nil {
			return nil, errors.WithMessage(err, "failed to build write request")
		}
		if c.cfg.Token != "" {
			req.Header.Set("X-Warp10-Token", c.cfg.Token)
		}
		return req, nil
	default:
		// https://docs.influxdata.com/influxdb/v1.7/tools/api/#write-http-endpoint
		req, err := http.NewRequest(http.MethodPost, c.cfg.URL+"/write", strings.NewReader(payload))
		if err != nil {
			return nil, errors.WithMessage(err, "failed to build write request")
		}
		query := url.Values{}
		query.Set("db", c.cfg.Database)
		if c.cfg.Username != "" || c.cfg.Password != "" {
			query.Set("u", c.cfg.Username)
			query.Set("p", c.cfg.Password)
		}
		req.URL.RawQuery = query.Encode()
		return req, nil
	}
}
