// Package zoom is a minimal client for Zoom's meetings API using
// server-to-server OAuth (account_credentials grant).
package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Alijeyrad/rookie_backend/config"
)

var (
	ErrConfig             = errors.New("zoom: invalid configuration")
	ErrNotFound           = errors.New("zoom: meeting not found")
	ErrUnexpectedResponse = errors.New("zoom: unexpected response")
)

const (
	defaultBaseURL  = "https://api.zoom.us/v2"
	defaultTokenURL = "https://zoom.us/oauth/token"
)

// MeetingRequest is the body of POST /users/me/meetings.
type MeetingRequest struct {
	Topic     string          `json:"topic"`
	Type      int             `json:"type"`
	StartTime string          `json:"start_time"`
	Duration  int             `json:"duration"` // minutes
	Timezone  string          `json:"timezone"`
	Settings  MeetingSettings `json:"settings"`
}

type MeetingSettings struct {
	HostVideo        bool   `json:"host_video"`
	ParticipantVideo bool   `json:"participant_video"`
	JoinBeforeHost   bool   `json:"join_before_host"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	WaitingRoom      bool   `json:"waiting_room"`
	ApprovalType     int    `json:"approval_type"`
	Audio            string `json:"audio"`
	AutoRecording    string `json:"auto_recording"`
}

type Meeting struct {
	ID       int64  `json:"id"`
	JoinURL  string `json:"join_url"`
	StartURL string `json:"start_url"`
	Password string `json:"password"`
}

type Client struct {
	baseURL    string
	timezone   string
	httpClient *http.Client
}

func NewFromCentral(cfg config.ZoomConfig) (*Client, error) {
	return New(cfg.AccountID, cfg.ClientID, cfg.ClientSecret, Options{
		BaseURL:  cfg.APIBaseURL,
		TokenURL: cfg.TokenURL,
		Timezone: cfg.Timezone,
		Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
	})
}

type Options struct {
	BaseURL  string
	TokenURL string
	Timezone string
	Timeout  time.Duration
}

func New(accountID, clientID, clientSecret string, opts Options) (*Client, error) {
	if accountID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: account_id, client_id and client_secret are required", ErrConfig)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = defaultTokenURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	cc := &clientcredentials.Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		TokenURL:       opts.TokenURL,
		EndpointParams: map[string][]string{"grant_type": {"account_credentials"}, "account_id": {accountID}},
		AuthStyle:      oauth2.AuthStyleInHeader,
	}

	// The token source caches the access token until shortly before expiry.
	base := &http.Client{Timeout: opts.Timeout}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := oauth2.NewClient(ctx, cc.TokenSource(ctx))
	httpClient.Timeout = opts.Timeout

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		timezone:   opts.Timezone,
		httpClient: httpClient,
	}, nil
}

// CreateMeeting schedules a meeting for the account owner.
func (c *Client) CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error) {
	if req.Timezone == "" {
		req.Timezone = c.timezone
	}
	var m Meeting
	if err := c.do(ctx, http.MethodPost, "/users/me/meetings", req, &m); err != nil {
		return nil, fmt.Errorf("zoom create meeting: %w", err)
	}
	if m.ID == 0 || m.JoinURL == "" {
		return nil, ErrUnexpectedResponse
	}
	return &m, nil
}

func (c *Client) DeleteMeeting(ctx context.Context, meetingID string) error {
	if err := c.do(ctx, http.MethodDelete, "/meetings/"+meetingID, nil, nil); err != nil {
		return fmt.Errorf("zoom delete meeting: %w", err)
	}
	return nil
}

// do sends a JSON request to baseURL+path and decodes the JSON response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("%w (status=%d, body=%s)", ErrUnexpectedResponse, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
