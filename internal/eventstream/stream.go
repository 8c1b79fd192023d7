// Package eventstream is the push-channel transport client. It maintains a
// TCP connection to the backend's event feed, decodes newline-delimited JSON
// events, and delivers them on a single channel so receipt order is
// preserved for the one consumer downstream.
package eventstream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/sendwren/wren/internal/model"
)

const (
	// DefaultEventChannelSize is the default buffer size for decoded events.
	DefaultEventChannelSize = 10_000

	// DefaultMaxLineSize is the maximum size (in bytes) of a single event line.
	DefaultMaxLineSize = 1024 * 1024

	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Config holds tunable parameters for the stream.
type Config struct {
	EventChannelSize int
	MaxLineSize      int
	// OnReconnect runs after the stream re-establishes a dropped connection.
	// The synchronizer uses it to schedule a poll refresh so accounts left
	// as-is during the outage get reconciled.
	OnReconnect func()
}

// Stream reads push events from the backend over TCP. Reconnection with
// backoff is this transport's responsibility; the consumer only ever sees an
// ordered event channel.
type Stream struct {
	addr        string
	events      chan model.PushEvent
	maxLineSize int
	onReconnect func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewStream creates a stream client for the given address.
func NewStream(addr string, conf ...Config) *Stream {
	chanSize := DefaultEventChannelSize
	maxLine := DefaultMaxLineSize
	var onReconnect func()
	if len(conf) > 0 {
		if conf[0].EventChannelSize > 0 {
			chanSize = conf[0].EventChannelSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLine = conf[0].MaxLineSize
		}
		onReconnect = conf[0].OnReconnect
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		addr:        addr,
		events:      make(chan model.PushEvent, chanSize),
		maxLineSize: maxLine,
		onReconnect: onReconnect,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins the connect loop.
func (s *Stream) Start() {
	s.wg.Add(1)
	go s.run()
}

// Events returns the ordered event channel. It is closed after Stop.
func (s *Stream) Events() <-chan model.PushEvent {
	return s.events
}

// Stop tears the stream down. No event is delivered after Stop returns.
func (s *Stream) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		close(s.events)
	})
}

func (s *Stream) run() {
	defer s.wg.Done()

	backoff := initialBackoff
	connected := false

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn, err := (&net.Dialer{Timeout: 10 * time.Second}).DialContext(s.ctx, "tcp", s.addr)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Printf("eventstream: dial %s: %v (retrying in %s)", s.addr, err, backoff)
			if !s.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = initialBackoff
		if connected && s.onReconnect != nil {
			s.onReconnect()
		}
		connected = true

		s.readLoop(conn)
		conn.Close()

		if s.ctx.Err() != nil {
			return
		}
		log.Printf("eventstream: connection to %s lost, reconnecting", s.addr)
	}
}

func (s *Stream) readLoop(conn net.Conn) {
	// Unblock the scanner when Stop cancels the context.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), s.maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev model.PushEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Printf("eventstream: dropping malformed event: %v", err)
			continue
		}
		if ev.Type == "" {
			continue
		}

		select {
		case s.events <- ev:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
		if errors.Is(err, bufio.ErrTooLong) {
			log.Printf("eventstream: event line exceeded %d bytes, reconnecting", s.maxLineSize)
			return
		}
		log.Printf("eventstream: read error: %v", err)
	}
}

func (s *Stream) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}
