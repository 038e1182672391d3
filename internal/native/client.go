package native

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/config"
	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

const FilterNote = "NOTE"

// API is the native mod-note surface used by the sync engine.
type API interface {
	CreateNote(ctx context.Context, note model.NewNativeNote) (*model.NativeNote, error)
	RecentNotes(ctx context.Context, community, username, filter string, limit int) ([]model.NativeNote, error)
	GetUser(ctx context.Context, username string) (*model.NativeUser, error)
	GetPermalink(ctx context.Context, contentID string) (string, error)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries uint64
	maxElapsed time.Duration
}

func NewClient(cfg config.NativeConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		maxRetries: uint64(cfg.MaxRetries),
		maxElapsed: time.Duration(cfg.MaxElapsedMs) * time.Millisecond,
	}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("native api request failed: %d: %s", e.status, e.body)
}

type createNoteRequest struct {
	Subreddit string            `json:"subreddit"`
	User      string            `json:"user"`
	Note      string            `json:"note"`
	Label     model.NativeLabel `json:"label,omitempty"`
	RedditID  string            `json:"reddit_id,omitempty"`
}

type createNoteResponse struct {
	Created model.NativeNote `json:"created"`
}

type listNotesResponse struct {
	ModNotes []model.NativeNote `json:"mod_notes"`
}

type infoResponse struct {
	Permalink string `json:"permalink"`
}

func (c *Client) CreateNote(ctx context.Context, note model.NewNativeNote) (*model.NativeNote, error) {
	body := createNoteRequest{
		Subreddit: note.Community,
		User:      note.Username,
		Note:      note.Note,
		Label:     note.Label,
		RedditID:  note.ContentID,
	}
	var out createNoteResponse
	if err := c.doOnce(ctx, http.MethodPost, "/api/mod/notes", nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Created, nil
}

func (c *Client) RecentNotes(ctx context.Context, community, username, filter string, limit int) ([]model.NativeNote, error) {
	query := url.Values{}
	query.Set("subreddit", community)
	query.Set("user", username)
	if filter != "" {
		query.Set("filter", filter)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out listNotesResponse
	if err := c.do(ctx, http.MethodGet, "/api/mod/notes", query, nil, &out); err != nil {
		return nil, err
	}
	return out.ModNotes, nil
}

// GetUser reports appErr.ErrUserUnavailable for deleted, suspended or
// shadowbanned accounts.
func (c *Client) GetUser(ctx context.Context, username string) (*model.NativeUser, error) {
	var out model.NativeUser
	err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username)+"/about", nil, nil, &out)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ErrUserUnavailable
		}
		return nil, err
	}
	if out.Username == "" {
		return nil, appErr.ErrUserUnavailable
	}
	return &out, nil
}

func (c *Client) GetPermalink(ctx context.Context, contentID string) (string, error) {
	query := url.Values{}
	query.Set("id", contentID)
	var out infoResponse
	if err := c.do(ctx, http.MethodGet, "/api/info", query, nil, &out); err != nil {
		return "", err
	}
	if out.Permalink == "" {
		return "", appErr.ErrNotFound
	}
	return out.Permalink, nil
}

func (c *Client) newBackOff(ctx context.Context, retry bool) backoff.BackOff {
	if !retry {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = c.maxElapsed
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
}

// do retries transport failures, 429 and 5xx responses; other statuses are
// returned immediately.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	return c.call(ctx, method, path, query, in, out, true)
}

// doOnce is for writes the server may have committed before the response
// was lost; the caller counts the failure instead.
func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	return c.call(ctx, method, path, query, in, out, false)
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out interface{}, retry bool) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = data
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("method", method), zap.String("path", path))

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger.Warn("native api call failed", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(appErr.ErrNotFound)
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			raw, _ := io.ReadAll(resp.Body)
			serr := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
				logger.Warn("native api call failed", zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
				return serr
			}
			return backoff.Permanent(serr)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode native api response: %w", err))
		}
		return nil
	}, c.newBackOff(ctx, retry))
}
