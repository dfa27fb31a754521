// Package notify broadcasts ingestion progress events to subscribers,
// both in-process (internal/ingestion publishing after each batch) and
// over a websocket bus keyed by connector external id.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"

	"github.com/corewire/assistant-core/pkg/contracts"
	"github.com/corewire/assistant-core/pkg/models"
)

// subscriberBuffer bounds how many undelivered events a slow subscriber
// may accumulate before Publish starts dropping for that subscriber.
const subscriberBuffer = 32

// Service is the built-in implementation of contracts.ProgressNotifier.
// It fans out published events to per-connector subscriber channels.
type Service struct {
	mu   sync.RWMutex
	subs map[string][]chan contracts.IngestionProgressEvent
}

// NewService creates a ready-to-use progress notifier.
func NewService() *Service {
	return &Service{
		subs: make(map[string][]chan contracts.IngestionProgressEvent),
	}
}

// Publish fans the event out to every subscriber of event.ConnectorID.
// A subscriber whose buffer is full is skipped rather than blocking
// the publisher.
func (s *Service) Publish(_ context.Context, event contracts.IngestionProgressEvent) {
	s.mu.RLock()
	chans := s.subs[event.ConnectorID]
	s.mu.RUnlock()

	for _, ch := range chans {
		select {
		case ch <- event:
		default:
			log.Warn().Str("connector", event.ConnectorID).Msg("progress subscriber buffer full, dropping event")
		}
	}
}

// Subscribe registers a new subscriber channel for a connector's progress
// events. Callers must eventually call Unsubscribe with the same channel.
func (s *Service) Subscribe(connectorID string) <-chan contracts.IngestionProgressEvent {
	ch := make(chan contracts.IngestionProgressEvent, subscriberBuffer)
	s.mu.Lock()
	s.subs[connectorID] = append(s.subs[connectorID], ch)
	s.mu.Unlock()
	return ch
}

// Unsubscribe removes a previously registered subscriber channel.
func (s *Service) Unsubscribe(connectorID string, target <-chan contracts.IngestionProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chans := s.subs[connectorID]
	for i, ch := range chans {
		if (<-chan contracts.IngestionProgressEvent)(ch) == target {
			s.subs[connectorID] = append(chans[:i], chans[i+1:]...)
			close(ch)
			return
		}
	}
}

// ── Websocket bridge ─────────────────────────────────────────

// ServeProgressWebsocket upgrades r to a websocket connection and streams
// connectorID's progress events to it until the client disconnects or ctx
// is cancelled. It never blocks the Publish path: messages are buffered
// per-subscriber and written on a dedicated goroutine.
func (s *Service) ServeProgressWebsocket(ctx context.Context, w http.ResponseWriter, r *http.Request, connectorID string) error {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	sub := s.Subscribe(connectorID)
	defer s.Unsubscribe(connectorID, sub)

	for {
		select {
		case <-ctx.Done():
			return conn.Close(websocket.StatusNormalClosure, "context cancelled")
		case event, ok := <-sub:
			if !ok {
				return conn.Close(websocket.StatusNormalClosure, "stream closed")
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				return err
			}
			if event.Status == models.JobSucceeded || event.Status == models.JobFailed || event.Status == models.JobCancelled {
				return conn.Close(websocket.StatusNormalClosure, "job terminal")
			}
		}
	}
}
