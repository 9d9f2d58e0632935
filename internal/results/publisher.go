package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/Frostie0/braina-game-server/internal/game"
)

// PublisherConfig holds NATS JetStream settings for result publishing.
type PublisherConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string // e.g. "games.results"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultPublisherConfig returns default JetStream publisher configuration.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		URL:           nats.DefaultURL,
		StreamName:    "GAME_RESULTS",
		SubjectPrefix: "games.results",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher emits terminal game summaries onto JetStream so downstream
// consumers (profiles, leaderboards, analytics) can pick them up.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config PublisherConfig
}

// NewPublisher connects to NATS and ensures the results stream exists.
func NewPublisher(config PublisherConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js, config: config}
	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Terminal game result summaries",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		return err
	}
	log.Info().Str("stream", p.config.StreamName).Msg("JetStream results stream ready")
	return nil
}

// Record publishes one terminal summary, keyed by variant subject.
func (p *Publisher) Record(ctx context.Context, result game.Result) error {
	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, result.Variant)

	envelope := map[string]any{
		"eventId":   uuid.New().String(),
		"eventType": "GameEnded",
		"gameCode":  result.Code,
		"timestamp": result.EndedAt,
		"payload":   result,
	}
	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal result envelope: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, messageBytes); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("game_code", result.Code).
		Int("size", len(messageBytes)).
		Msg("result published")
	return nil
}

// Close shuts the NATS connection down.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
