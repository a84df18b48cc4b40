package roblox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"limitedtracker/internal/config"
)

const maxErrorBody = 4 << 10

type Client struct {
	http         *http.Client
	inventoryURL string
	usersURL     string

	pageSize       int
	requestTimeout time.Duration
	overallTimeout time.Duration
	pageDelay      time.Duration
	retryBaseDelay time.Duration
	maxRetries     int

	validate *validator.Validate
	log      *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(cfg config.RobloxConfig, opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{},
		inventoryURL:   strings.TrimRight(cfg.InventoryBaseURL, "/"),
		usersURL:       strings.TrimRight(cfg.UsersBaseURL, "/"),
		pageSize:       cfg.PageSize,
		requestTimeout: cfg.RequestTimeout,
		overallTimeout: cfg.OverallTimeout,
		pageDelay:      cfg.PageDelay,
		retryBaseDelay: cfg.RetryBaseDelay,
		maxRetries:     cfg.MaxRetries,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pageSize <= 0 || c.pageSize > 100 {
		c.pageSize = 100
	}
	c.log = c.log.With(zap.String("component", "roblox"))
	return c
}

// UserInfo is the public profile returned by the users API.
type UserInfo struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	IsBanned    bool      `json:"isBanned"`
}

func (c *Client) FetchUser(ctx context.Context, robloxUserID int64) (*UserInfo, error) {
	url := fmt.Sprintf("%s/v1/users/%d", c.usersURL, robloxUserID)

	var info UserInfo
	if err := c.getJSON(ctx, url, &info); err != nil {
		return nil, fmt.Errorf("fetch user %d: %w", robloxUserID, err)
	}
	return &info, nil
}

// getJSON performs one GET bounded by the per-request timeout and decodes a
// 200 response into dst. Other statuses are mapped by statusError.
func (c *Client) getJSON(ctx context.Context, url string, dst any) error {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	switch status {
	case http.StatusNotFound:
		return ErrUserNotFound
	case http.StatusBadRequest:
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			for _, e := range eb.Errors {
				// Roblox answers an unknown user id with code 1.
				if e.Code == 1 {
					return ErrUserNotFound
				}
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.TrimSpace(string(body)))
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInventoryPrivate
	case http.StatusTooManyRequests:
		return errRateLimited
	default:
		return &APIError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
}
