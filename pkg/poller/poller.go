// Package poller implements the client side of the generation pipeline: it
// submits a batch and polls the status endpoint until every painting reaches
// a terminal state, pausing while the UI is hidden and never stacking
// requests.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// State of one polling session.
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StatePolling
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateSettled:
		return "settled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Painting is one painting as reported by the status endpoint. Fields mirror
// the server's JSON.
type Painting struct {
	ID           string `json:"id"`
	TitleID      string `json:"title_id"`
	Status       string `json:"status"`
	Summary      string `json:"summary"`
	ImageURL     string `json:"image_url"`
	ErrorMessage string `json:"error_message"`
}

// Snapshot is the decoded polling payload.
type Snapshot struct {
	Paintings        []Painting        `json:"paintings"`
	ReferenceDataMap map[string]string `json:"referenceDataMap"`
}

func (s *Snapshot) terminal() bool {
	for _, p := range s.Paintings {
		if p.Status != "completed" && p.Status != "failed" {
			return false
		}
	}
	return len(s.Paintings) > 0
}

// Config for a polling client.
type Config struct {
	BaseURL  string
	Token    string
	Interval time.Duration // defaults to 3s
	HTTP     *http.Client

	// OnUpdate fires after every poll whose payload differs from the last
	// one. Called from the polling goroutine.
	OnUpdate func(*Snapshot)
	// OnSettled fires once, when every painting is terminal or polling is
	// stopped by an auth failure.
	OnSettled func(*Snapshot, error)
}

// Client drives generation submissions and result polling for one title.
type Client struct {
	cfg Config

	mu       sync.Mutex
	state    State
	visible  bool
	last     *Snapshot
	lastBody string
	inflight bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(cfg Config) *Client {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, state: StateIdle, visible: true}
}

// State returns the session's current state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns the most recent snapshot, or nil before the first poll.
func (c *Client) Last() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Submit starts a generation batch and begins polling. Calling Submit while
// a session is active is an error; Stop it or wait for it to settle first.
func (c *Client) Submit(ctx context.Context, titleID string, quantity int) error {
	c.mu.Lock()
	if c.state == StateSubmitted || c.state == StatePolling {
		c.mu.Unlock()
		return fmt.Errorf("a generation session is already running")
	}
	c.state = StateSubmitted
	c.mu.Unlock()

	body, _ := json.Marshal(map[string]any{"title_id": titleID, "quantity": quantity})
	resp, err := c.do(ctx, http.MethodPost, "/api/paintings/generate", string(body))
	if err != nil {
		c.setState(StateIdle)
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		c.setState(StateIdle)
		return fmt.Errorf("generate request rejected: status %d", resp.StatusCode)
	}

	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.state = StatePolling
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(pctx, titleID, done)

	return nil
}

// Poll starts polling an existing title without submitting a new batch.
func (c *Client) Poll(ctx context.Context, titleID string) error {
	c.mu.Lock()
	if c.state == StateSubmitted || c.state == StatePolling {
		c.mu.Unlock()
		return fmt.Errorf("a generation session is already running")
	}
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.state = StatePolling
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(pctx, titleID, done)

	return nil
}

// SetVisible pauses polling while the UI is hidden and resumes it when shown
// again. A resume triggers an immediate poll rather than waiting a full tick.
func (c *Client) SetVisible(visible bool) {
	c.mu.Lock()
	c.visible = visible
	c.mu.Unlock()
}

// Stop cancels the session. Safe to call at any time, from any goroutine,
// more than once.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	c.mu.Lock()
	if c.state != StateSettled {
		c.state = StateIdle
	}
	c.mu.Unlock()
}

func (c *Client) loop(ctx context.Context, titleID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// First poll right away; placeholders should show without a tick of lag.
	settled := c.pollOnce(ctx, titleID)

	for !settled {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			visible := c.visible
			c.mu.Unlock()
			if !visible {
				continue
			}
			settled = c.pollOnce(ctx, titleID)
		}
	}
}

// pollOnce fetches one snapshot. Returns true when the session is over.
func (c *Client) pollOnce(ctx context.Context, titleID string) bool {
	// In-flight coalescing: a slow response must not stack another request.
	c.mu.Lock()
	if c.inflight {
		c.mu.Unlock()
		return false
	}
	c.inflight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight = false
		c.mu.Unlock()
	}()

	resp, err := c.do(ctx, http.MethodGet, "/api/paintings/"+titleID, "")
	if err != nil {
		// Transient failure, keep polling.
		return ctx.Err() != nil
	}
	defer resp.Body.Close()

	// Auth failures are permanent; keeping the ticker alive would hammer the
	// server with requests it will never accept.
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		c.settle(nil, fmt.Errorf("polling stopped: status %d", resp.StatusCode))
		return true
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var snap Snapshot
	var raw json.RawMessage
	err = json.NewDecoder(resp.Body).Decode(&raw)
	if err != nil {
		return false
	}
	err = json.Unmarshal(raw, &snap)
	if err != nil {
		return false
	}

	c.mu.Lock()
	changed := string(raw) != c.lastBody
	c.lastBody = string(raw)
	c.last = &snap
	c.mu.Unlock()

	if changed && c.cfg.OnUpdate != nil {
		c.cfg.OnUpdate(&snap)
	}

	if snap.terminal() {
		c.settle(&snap, nil)
		return true
	}

	return false
}

func (c *Client) settle(snap *Snapshot, err error) {
	c.mu.Lock()
	c.state = StateSettled
	c.mu.Unlock()

	if c.cfg.OnSettled != nil {
		c.cfg.OnSettled(snap, err)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.cfg.HTTP.Do(req)
}
