// Package ari implements the telephony contract against the Asterisk REST
// Interface. Channel events arrive over the ARI events WebSocket; control
// actions are issued as REST calls; call audio arrives over an external-media
// WebSocket listener that Asterisk dials into (see MediaServer).
package ari

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arivox/arivox/pkg/telephony"
	"github.com/coder/websocket"
)

// Compile-time assertion that Client satisfies the telephony contract.
var _ telephony.Client = (*Client)(nil)

const (
	// defaultEventBuf is the buffer depth of the event channel. Sized to absorb
	// bursts of per-channel events without stalling the read loop.
	defaultEventBuf = 256

	// defaultActionTimeout bounds REST actions that are issued without an
	// explicit deadline on the caller's context.
	defaultActionTimeout = 5 * time.Second
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for REST actions.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithEventBuffer sets the buffer capacity of the event channel. Default 256.
func WithEventBuffer(n int) Option {
	return func(c *Client) { c.eventBuf = n }
}

// Config holds the connection parameters for one Asterisk ARI endpoint.
type Config struct {
	// BaseURL is the ARI HTTP base, e.g. "http://asterisk:8088/ari".
	BaseURL string

	// Application is the Stasis application name the bridge registers as.
	Application string

	// Username and Password authenticate against ari.conf.
	Username string
	Password string
}

// Client is a live ARI connection. It owns the events WebSocket read loop and
// issues REST actions over HTTP with basic auth.
type Client struct {
	cfg      Config
	http     *http.Client
	eventBuf int

	events chan telephony.Event
	conn   *websocket.Conn

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Connect dials the ARI events WebSocket and starts the event read loop.
// The returned Client is ready to issue actions immediately.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	return ConnectWith(ctx, cfg)
}

// ConnectWith is Connect with functional options applied before dialing.
func ConnectWith(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ari: BaseURL must not be empty")
	}
	if cfg.Application == "" {
		return nil, errors.New("ari: Application must not be empty")
	}

	c := &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: defaultActionTimeout},
		eventBuf: defaultEventBuf,
	}
	for _, o := range opts {
		o(c)
	}
	c.events = make(chan telephony.Event, c.eventBuf)

	wsURL, err := eventsURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("ari: events url: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{basicAuth(cfg.Username, cfg.Password)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ari: dial events: %w", err)
	}
	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// eventsURL builds the ws(s):// URL for the ARI events endpoint.
func eventsURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/events"
	q := u.Query()
	q.Set("app", cfg.Application)
	q.Set("subscribeAll", "false")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// Events returns the channel event stream.
func (c *Client) Events() <-chan telephony.Event { return c.events }

// Close tears down the events WebSocket. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close(websocket.StatusNormalClosure, "client closed")
		c.wg.Wait()
	})
	return nil
}

// ── Event decoding ────────────────────────────────────────────────────────────

// rawEvent is the common envelope of every ARI event. Only the fields the
// bridge consumes are decoded; the rest of the payload is ignored.
type rawEvent struct {
	Type     string `json:"type"`
	Duration int    `json:"duration_ms"`
	Digit    string `json:"digit"`
	Cause    string `json:"cause,omitempty"`
	Channel  *struct {
		ID     string `json:"id"`
		State  string `json:"state"`
		Caller struct {
			Number string `json:"number"`
		} `json:"caller"`
	} `json:"channel"`
	Playback *struct {
		ID        string `json:"id"`
		TargetURI string `json:"target_uri"`
	} `json:"playback"`
}

// readLoop receives ARI events and dispatches them onto the event channel.
// It owns the events channel and closes it on exit.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				slog.Warn("ari: events socket closed", "err", err)
			}
			return
		}

		ev, ok := decodeEvent(data)
		if !ok {
			continue
		}
		select {
		case c.events <- ev:
		case <-c.ctx.Done():
			return
		}
	}
}

// decodeEvent translates a raw ARI JSON event into the telephony vocabulary.
// Events the bridge does not consume return ok=false.
func decodeEvent(data []byte) (telephony.Event, bool) {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}

	channelID := ""
	if raw.Channel != nil {
		channelID = raw.Channel.ID
	}

	switch raw.Type {
	case "StasisStart":
		caller := ""
		if raw.Channel != nil {
			caller = raw.Channel.Caller.Number
		}
		return telephony.ChannelEntered{ChannelID: channelID, CallerID: caller, EnteredAt: time.Now()}, true
	case "ChannelStateChange":
		// Only the transition to Up is interesting.
		if raw.Channel == nil || raw.Channel.State != "Up" {
			return nil, false
		}
		return telephony.ChannelAnswered{ChannelID: channelID}, true
	case "PlaybackStarted":
		if raw.Playback == nil {
			return nil, false
		}
		return telephony.PlaybackStarted{ChannelID: channelFromURI(raw.Playback.TargetURI), PlaybackID: raw.Playback.ID}, true
	case "PlaybackFinished":
		if raw.Playback == nil {
			return nil, false
		}
		return telephony.PlaybackFinished{ChannelID: channelFromURI(raw.Playback.TargetURI), PlaybackID: raw.Playback.ID}, true
	case "PlaybackFailed":
		if raw.Playback == nil {
			return nil, false
		}
		return telephony.PlaybackFailed{ChannelID: channelFromURI(raw.Playback.TargetURI), PlaybackID: raw.Playback.ID, Cause: raw.Cause}, true
	case "ChannelTalkingStarted":
		return telephony.ChannelTalkingStarted{ChannelID: channelID}, true
	case "ChannelTalkingFinished":
		return telephony.ChannelTalkingFinished{ChannelID: channelID, Duration: time.Duration(raw.Duration) * time.Millisecond}, true
	case "ChannelDtmfReceived":
		if raw.Digit == "" {
			return nil, false
		}
		return telephony.ChannelDtmfReceived{ChannelID: channelID, Digit: rune(raw.Digit[0])}, true
	case "ChannelHangupRequest", "ChannelDestroyed", "StasisEnd":
		return telephony.ChannelHangup{ChannelID: channelID, Cause: raw.Cause}, true
	}
	return nil, false
}

// channelFromURI extracts the channel ID from a playback target URI of the
// form "channel:<id>".
func channelFromURI(uri string) string {
	if id, ok := strings.CutPrefix(uri, "channel:"); ok {
		return id
	}
	return uri
}

// ── REST actions ──────────────────────────────────────────────────────────────

// Answer answers the channel.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/answer", nil, nil)
}

// Play starts playback of mediaURI on the channel and returns the playback ID.
func (c *Client) Play(ctx context.Context, channelID, mediaURI string) (string, error) {
	q := url.Values{}
	q.Set("media", mediaURI)

	var resp struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/play", q, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// StopPlayback stops a single playback by ID. A 404 (playback already gone)
// is not an error.
func (c *Client) StopPlayback(ctx context.Context, playbackID string) error {
	err := c.do(ctx, http.MethodDelete, "/playbacks/"+url.PathEscape(playbackID), nil, nil)
	var fe *telephony.FatalError
	if errors.As(err, &fe) && strings.Contains(fe.Err.Error(), "404") {
		return nil
	}
	return err
}

// SetChannelVar sets a channel variable.
func (c *Client) SetChannelVar(ctx context.Context, channelID, name, value string) error {
	q := url.Values{}
	q.Set("variable", name)
	q.Set("value", value)
	return c.do(ctx, http.MethodPost, "/channels/"+url.PathEscape(channelID)+"/variable", q, nil)
}

// Hangup terminates the channel.
func (c *Client) Hangup(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil)
}

// Ping probes the Asterisk instance via /asterisk/info. Used by the
// readiness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/asterisk/info", nil, nil)
}

// do issues one REST call. A 4xx response is wrapped as a telephony.FatalError
// so callers can distinguish retryable transport failures from rejections.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	select {
	case <-c.ctx.Done():
		return telephony.ErrClosed
	default:
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("ari: build request: %w", err)
	}
	req.Header.Set("Authorization", basicAuth(c.cfg.Username, c.cfg.Password))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ari: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("ari: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode < 500 {
			return &telephony.FatalError{Err: err}
		}
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("ari: decode response: %w", err)
		}
	}
	return nil
}
