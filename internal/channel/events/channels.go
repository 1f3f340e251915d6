// Package events provides the bounded channel used to hand decoded domain
// events from a stream session to the consuming application.
package events

import (
	"context"
	"sync"

	"tradeflow/logger"
)

type ChannelStats struct {
	Sent    int64
	Dropped int64
}

// Channels owns the buffered event channel between the stream session and
// the consumer. Sends never block: when the consumer falls behind, events
// are dropped and counted.
type Channels[T any] struct {
	Out chan T

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels[T any](bufferSize int) *Channels[T] {
	log := logger.GetLogger()
	c := &Channels[T]{
		Out: make(chan T, bufferSize),
		log: log,
	}

	log.WithComponent("event_channels").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Info("event channel initialized")

	return c
}

func (c *Channels[T]) Close() {
	close(c.Out)
	c.log.WithComponent("event_channels").Info("event channel closed")
}

// Send delivers one event without blocking. It returns false when the
// context is done or the buffer is full; a full buffer counts as a drop.
func (c *Channels[T]) Send(ctx context.Context, event T) bool {
	select {
	case c.Out <- event:
		c.statsMutex.Lock()
		c.stats.Sent++
		c.statsMutex.Unlock()
		return true
	case <-ctx.Done():
		return false
	default:
		c.statsMutex.Lock()
		c.stats.Dropped++
		c.statsMutex.Unlock()
		return false
	}
}

func (c *Channels[T]) GetStats() ChannelStats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}
