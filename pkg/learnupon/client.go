package learnupon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	liburl "net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/pkg/config"
)

const (
	usersSearchPath       = "/api/v1/users/search"
	enrollmentsSearchPath = "/api/v1/enrollments/search"
)

// User is a LearnUpon portal user.
type User struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Enrollment is a LearnUpon enrollment of a user in a course (component).
type Enrollment struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	CourseID int64  `json:"course_id"`
	Status   string `json:"status"`
}

type usersResponse struct {
	Users []User `json:"user"`
}

type enrollmentsResponse struct {
	Enrollments []Enrollment `json:"enrollments"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

// Client talks to the LearnUpon REST API using basic auth.
type Client struct {
	baseURL  *liburl.URL
	username string
	password string
	http     *http.Client
	logger   *zap.Logger
}

// New builds a client for cfg. It returns nil, nil when no base URL is configured.
func New(cfg config.LearnUponConfig, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	base, err := liburl.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse learnupon url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("learnupon url %q must be absolute", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// FindUserByEmail returns the portal user with email, or nil when there is none.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var out usersResponse
	err := c.get(ctx, usersSearchPath, liburl.Values{"email": {email}}, &out)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	for i := range out.Users {
		if strings.EqualFold(out.Users[i].Email, email) {
			return &out.Users[i], nil
		}
	}
	return nil, nil
}

// ListEnrollments returns every enrollment of a portal user.
func (c *Client) ListEnrollments(ctx context.Context, userID int64) ([]Enrollment, error) {
	var out enrollmentsResponse
	err := c.get(ctx, enrollmentsSearchPath, liburl.Values{"user_id": {strconv.FormatInt(userID, 10)}}, &out)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return out.Enrollments, nil
}

func (c *Client) get(ctx context.Context, path string, query liburl.Values, target interface{}) error {
	startTime := time.Now()
	url := c.baseURL.JoinPath(path)
	url.RawQuery = query.Encode()

	c.logger.Debug("Making API request",
		zap.String("method", http.MethodGet),
		zap.String("path", path),
		zap.Any("query_params", query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("API request failed",
			zap.Error(err),
			zap.String("path", path),
			zap.Duration("duration", time.Since(startTime)))
		return fmt.Errorf("error making GET request to %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("API request completed",
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(startTime)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Method: http.MethodGet, URL: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
