package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/dealroom/deal-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second
)

// Event types published on a creator's channel.
const (
	TypeDealSubmitted = "deal.submitted"
	TypeDealSent      = "deal.sent"
	TypeDealSigned    = "deal.signed"
	TypeDealFailed    = "deal.failed"
	TypeDealScanned   = "deal.scanned"
	TypeInvoiceReady  = "invoice.ready"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	CreatorID string
	Events    chan Event
	Done      chan struct{}
}

// Broker fans deal lifecycle events out to connected SSE clients. Events go
// through Redis pub/sub so every instance sees publishes from every other.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // creatorID -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(creatorID string) *Client {
	client := &Client{
		CreatorID: creatorID,
		Events:    make(chan Event, 100),
		Done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[creatorID] == nil {
		b.clients[creatorID] = make(map[*Client]bool)
		go b.subscribeToRedis(creatorID)
	}
	b.clients[creatorID][client] = true
	clientCount := len(b.clients[creatorID])
	b.mu.Unlock()

	log.Info().
		Str("creatorId", creatorID).
		Int("clientCount", clientCount).
		Msg("event client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.CreatorID]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.CreatorID)
		}

		log.Info().
			Str("creatorId", client.CreatorID).
			Int("clientCount", len(clients)).
			Msg("event client unsubscribed")
	}
}

func (b *Broker) Publish(ctx context.Context, creatorID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.DealEventChannel(creatorID)
	return b.redis.Publish(ctx, channel, data).Err()
}

// PublishDeal is a convenience wrapper for deal lifecycle events. Publish
// failures are logged, never propagated: notification is a dependent of the
// transition, not a precondition.
func (b *Broker) PublishDeal(ctx context.Context, creatorID, eventType, dealID string) {
	data, _ := json.Marshal(map[string]string{"dealId": dealID})
	if err := b.Publish(ctx, creatorID, Event{Type: eventType, Data: data}); err != nil {
		log.Warn().
			Err(err).
			Str("creatorId", creatorID).
			Str("type", eventType).
			Str("dealId", dealID).
			Msg("failed to publish deal event")
	}
}

func (b *Broker) subscribeToRedis(creatorID string) {
	channel := redisclient.DealEventChannel(creatorID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("creatorId", creatorID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(creatorID, event)
		}
	}
}

func (b *Broker) broadcast(creatorID string, event Event) {
	b.mu.RLock()
	clients := b.clients[creatorID]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("creatorId", creatorID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(creatorID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[creatorID])
}
