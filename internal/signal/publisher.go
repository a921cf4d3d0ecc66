// Package signal publishes high-confidence analyses to downstream consumers.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"memecoin-signal-lab/internal/domain"
	"memecoin-signal-lab/internal/idhash"
)

// Publisher delivers a signal for a scored analysis.
type Publisher interface {
	Publish(ctx context.Context, r *domain.FinalAnalysisResult) error
	Close() error
}

// Signal is the wire payload.
type Signal struct {
	SignalID   string    `json:"signal_id"`
	AnalysisID string    `json:"analysis_id"`
	PostID     string    `json:"post_id"`
	Author     string    `json:"author"`
	URL        string    `json:"url,omitempty"`
	Coins      []string  `json:"coins"`
	Patterns   []string  `json:"patterns"`
	Category   string    `json:"category"`
	Confidence float64   `json:"confidence"`
	VipScore   *float64  `json:"vip_score,omitempty"`
	Momentum   []string  `json:"momentum,omitempty"` // coins whose market snapshot showed momentum
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// FromResult builds the payload for r.
func FromResult(r *domain.FinalAnalysisResult) Signal {
	s := Signal{
		SignalID:   idhash.ComputeSignalID(r.Post.ID, r.Candidate.Coins, r.Confidence),
		AnalysisID: r.AnalysisID,
		PostID:     r.Post.ID,
		Author:     r.Post.Author,
		URL:        r.Post.URL,
		Coins:      append([]string{}, r.Candidate.Coins...),
		Patterns:   append([]string{}, r.Candidate.Patterns...),
		Category:   string(r.Candidate.Category),
		Confidence: r.Confidence,
		AnalyzedAt: r.AnalyzedAt,
	}
	if r.Vip != nil {
		score := r.Vip.InfluenceScore
		s.VipScore = &score
	}
	for _, m := range r.Metrics {
		if m.Momentum {
			s.Momentum = append(s.Momentum, m.Coin)
		}
	}
	return s
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes signals as JSON, keyed by post id so every signal
// for one post lands on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	Topic  string
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, Topic: topic}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, r *domain.FinalAnalysisResult) error {
	s := FromResult(r)
	value, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(s.PostID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "signal_id", Value: []byte(s.SignalID)},
			{Key: "category", Value: []byte(s.Category)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var _ Publisher = (*KafkaPublisher)(nil)
