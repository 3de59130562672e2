package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ldi/tempo/pkg/models"
)

// Client pushes task updates to a remote endpoint on a best-effort
// basis. Updates to the same task are coalesced and flushed after a
// quiet window so a running countdown doesn't generate a request per
// second. Lifecycle transitions skip the window and flush right away.
// A failed push keeps its tasks queued for the next flush.
type Client struct {
	baseURL string
	window  time.Duration
	httpc   *http.Client

	mu      sync.Mutex
	pending map[string]*models.Task
	// fingerprints holds the last pushed status/active pair per task so
	// a transition can be told apart from a plain countdown update.
	fingerprints map[string]string

	wake chan struct{}
}

func NewClient(baseURL string, window time.Duration) *Client {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Client{
		baseURL:      baseURL,
		window:       window,
		httpc:        &http.Client{Timeout: 10 * time.Second},
		pending:      make(map[string]*models.Task),
		fingerprints: make(map[string]string),
		wake:         make(chan struct{}, 1),
	}
}

func fingerprint(t *models.Task) string {
	return fmt.Sprintf("%s|%t|%t", t.Status, t.Active, t.HasBeenRescheduled)
}

// QueueTask records a task update for the next flush. It never blocks;
// the actual push happens on the Run goroutine.
func (c *Client) QueueTask(task *models.Task) {
	if task == nil {
		return
	}

	c.mu.Lock()
	clone := *task
	c.pending[task.ID] = &clone
	transition := c.fingerprints[task.ID] != fingerprint(task)
	c.mu.Unlock()

	if transition {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

// Pending reports how many task updates are waiting to be pushed.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Run flushes the queue until ctx is canceled. A final flush is
// attempted on shutdown so a completed task isn't lost to timing.
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			c.flush(ctx)
		case <-c.wake:
			c.flush(ctx)
			ticker.Reset(c.window)
		}
	}
}

func (c *Client) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]*models.Task, 0, len(c.pending))
	for _, t := range c.pending {
		batch = append(batch, t)
	}
	c.mu.Unlock()

	if err := c.push(ctx, batch); err != nil {
		log.Printf("sync: push failed, will retry: %v", err)
		return
	}

	c.mu.Lock()
	for _, t := range batch {
		// A newer update may have landed during the request; only clear
		// entries the push actually covered.
		if cur, ok := c.pending[t.ID]; ok && cur == t {
			delete(c.pending, t.ID)
		}
		c.fingerprints[t.ID] = fingerprint(t)
	}
	c.mu.Unlock()
}

func (c *Client) push(ctx context.Context, tasks []*models.Task) error {
	body, err := json.Marshal(map[string]interface{}{"tasks": tasks})
	if err != nil {
		return fmt.Errorf("failed to encode sync batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sync/tasks", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint returned %s", resp.Status)
	}
	return nil
}
