// Package feed consumes the Jetstream change feed and delivers record
// mutation events to the ingester. Delivery is attempted but neither
// exactly-once nor ordered; the ingester's idempotent mutations absorb
// redelivery after reconnects.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"skymirror/internal/mirror"
)

// Handler receives one event per delivered feed message. Implementations
// must not panic and must not block indefinitely.
type Handler interface {
	HandleEvent(ctx context.Context, evt mirror.Event)
}

// Consumer is a Jetstream websocket subscriber. It requests only the
// watched collections, so identity and account events never reach the
// handler.
type Consumer struct {
	url         string
	collections []string
	handler     Handler
	logger      mirror.Logger
	cursor      *Cursor

	maxBackoff time.Duration
}

func NewConsumer(rawURL string, collections []string, handler Handler, cursor *Cursor, logger mirror.Logger) *Consumer {
	return &Consumer{
		url:         rawURL,
		collections: collections,
		handler:     handler,
		logger:      logger,
		cursor:      cursor,
		maxBackoff:  30 * time.Second,
	}
}

// message is the wire shape of a Jetstream event.
type message struct {
	DID    string `json:"did"`
	TimeUS int64  `json:"time_us"`
	Kind   string `json:"kind"`
	Commit *struct {
		Operation  string          `json:"operation"`
		Collection string          `json:"collection"`
		RKey       string          `json:"rkey"`
		Record     json.RawMessage `json:"record"`
	} `json:"commit"`
}

// healthyConnDuration is how long a connection must stay up for its drop
// to be treated as an isolated incident rather than part of an outage.
const healthyConnDuration = time.Minute

// Run consumes the feed until ctx is cancelled, reconnecting with capped
// backoff on read or dial failure. Resume uses the last delivered time_us.
func (c *Consumer) Run(ctx context.Context) {
	var backoff time.Duration
	for {
		start := time.Now()
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		backoff = c.nextDelay(backoff, time.Since(start))
		c.logger.Warn("feed connection lost, reconnecting", "err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// nextDelay escalates the reconnect delay on rapid drops and restarts the
// escalation after a connection that stayed up long enough to be healthy.
func (c *Consumer) nextDelay(previous, connectedFor time.Duration) time.Duration {
	if previous <= 0 || connectedFor >= healthyConnDuration {
		return time.Second
	}
	return min(previous*2, c.maxBackoff)
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	u, err := c.subscribeURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", u, err)
	}
	defer conn.Close()
	c.logger.Info("feed connected", "url", u)

	// Unblock ReadMessage when ctx is cancelled. The watcher must not
	// outlive this connection: reconnects are routine and a per-connection
	// goroutine parked on ctx.Done() would accumulate until shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading feed message: %w", err)
		}
		c.dispatch(ctx, data)
	}
}

func (c *Consumer) dispatch(ctx context.Context, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("undecodable feed message", "err", err)
		return
	}
	if msg.Kind != "commit" || msg.Commit == nil {
		return
	}

	var kind mirror.EventKind
	switch msg.Commit.Operation {
	case "create":
		kind = mirror.EventCreate
	case "update":
		kind = mirror.EventUpdate
	case "delete":
		kind = mirror.EventDelete
	default:
		c.logger.Warn("feed commit with unknown operation", "operation", msg.Commit.Operation)
		return
	}

	c.handler.HandleEvent(ctx, mirror.Event{
		Kind:       kind,
		DID:        msg.DID,
		Collection: msg.Commit.Collection,
		URI:        "at://" + msg.DID + "/" + msg.Commit.Collection + "/" + msg.Commit.RKey,
		TimeUS:     msg.TimeUS,
		Record:     msg.Commit.Record,
	})

	if c.cursor != nil {
		c.cursor.Set(msg.TimeUS)
	}
}

func (c *Consumer) subscribeURL() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("parsing feed url %q: %w", c.url, err)
	}
	q := u.Query()
	for _, col := range c.collections {
		q.Add("wantedCollections", col)
	}
	if c.cursor != nil {
		if v := c.cursor.Get(); v > 0 {
			q.Set("cursor", strconv.FormatInt(v, 10))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
