package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"fleet-eta/internal/fleet"
)

type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logSubjects   bool
	metrics       PublisherMetrics
}

type PublisherMetrics interface {
	PublishedInc(backend string)
	PublishErrInc(backend string)
	PublishObserve(backend string, d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, subjectPrefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("fleet-eta"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, subjectPrefix: subjectPrefix, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

func (p *NATSPublisher) subject(tripID string) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, subjectToken(tripID))
}

// PublishETAs publishes one message per record on <prefix>.<tripId>.
func (p *NATSPublisher) PublishETAs(recs []fleet.ETARecord) {
	for _, rec := range recs {
		if err := p.PublishETA(rec); err != nil {
			log.Printf("nats publish error for %s: %v", rec.TripID, err)
		}
	}
}

func (p *NATSPublisher) PublishETA(rec fleet.ETARecord) error {
	subject := p.subject(rec.TripID)
	b, err := json.Marshal(newETAMessage(rec))
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve("nats", time.Since(start))
		if err != nil {
			p.metrics.PublishErrInc("nats")
		} else {
			p.metrics.PublishedInc("nats")
		}
	}
	return err
}

// PositionHandler reacts to one decoded vehicle position.
type PositionHandler func(ctx context.Context, pos fleet.Position) error

// PositionSubscription feeds vehicle positions to a handler with at most
// limit handlers running at once.
type PositionSubscription struct {
	sub    *nats.Subscription
	g      *errgroup.Group
	cancel context.CancelFunc
}

func (p *NATSPublisher) SubscribePositions(parent context.Context, subject string, limit int, h PositionHandler) (*PositionSubscription, error) {
	ctx, cancel := context.WithCancel(parent)
	g := new(errgroup.Group)
	if limit > 0 {
		g.SetLimit(limit)
	}
	sub, err := p.nc.Subscribe(subject, newPositionCallback(ctx, g, h))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	log.Printf("subscribed to vehicle positions on %s", subject)
	return &PositionSubscription{sub: sub, g: g, cancel: cancel}, nil
}

func newPositionCallback(ctx context.Context, g *errgroup.Group, h PositionHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		handlePositionData(ctx, g, msg.Data, h)
	}
}

func handlePositionData(ctx context.Context, g *errgroup.Group, data []byte, h PositionHandler) {
	pos, err := decodePosition(data)
	if err != nil {
		log.Printf("dropping position: %v", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	g.Go(func() error {
		if err := h(ctx, pos); err != nil {
			log.Printf("position for trip %s: %v", pos.TripID, err)
		}
		return nil
	})
}

// Close unsubscribes and waits for running handlers.
func (s *PositionSubscription) Close() error {
	err := s.sub.Unsubscribe()
	s.cancel()
	_ = s.g.Wait()
	return err
}
