package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"tradeflow/errs"
	"tradeflow/logger"
	"tradeflow/models"
)

// Run reads and dispatches frames until the stream ends. Cancellation is
// cooperative: the context is checked at the top of every iteration, so the
// latency of a cancel is bounded by one frame's processing time plus the
// blocking read.
//
// Run returns nil on a cancelled context or an empty text frame (the venue's
// clean end-of-stream signal). It returns a classified error on a close
// frame, a read failure, or a payload matching neither the domain-event
// shape nor the acknowledgement shape. Resuming after any return, including
// reconnecting and resubscribing, is the caller's responsibility.
func (s *Session[T, PT]) Run(ctx context.Context) error {
	log := s.log.WithComponent("stream").WithFields(logger.Fields{"operation": "run"})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if s.conn == nil {
			return errs.NotConnected("run")
		}

		frameType, payload, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return errs.Socket(fmt.Errorf("disconnected: %w", closeErr))
			}
			return errs.IO(err)
		}
		logger.IncrementFrameRead(len(payload))

		// Ping and pong frames are absorbed by the websocket control
		// handlers; binary frames are ignored.
		if frameType != websocket.TextMessage {
			continue
		}
		if len(payload) == 0 {
			log.Debug("empty frame, stream ended")
			return nil
		}

		var event T
		if decodeErr := PT(&event).DecodeFrame(payload); decodeErr == nil {
			s.forward(ctx, event, payload, log)
		} else if ack, ackErr := models.DecodeAcknowledgement(payload); ackErr == nil {
			s.observe(ack, log)
		} else {
			return errs.Parse(payload, decodeErr)
		}
	}
}

// forward hands one decoded event to the consumer channel. Delivery failures
// are tolerated so one slow consumer cannot kill the stream; they are
// surfaced as logged delivery errors instead.
func (s *Session[T, PT]) forward(ctx context.Context, event T, payload []byte, log *logger.Entry) {
	select {
	case s.events <- event:
		logger.IncrementEventForwarded(len(payload))
	case <-ctx.Done():
	default:
		logger.IncrementEventDropped()
		log.WithError(errs.Delivery("consumer channel full")).Warn("dropping event")
	}
}

// observe records an acknowledgement. Error acknowledgements carry the
// venue's structured error; neither terminates the loop.
func (s *Session[T, PT]) observe(ack *models.Acknowledgement, log *logger.Entry) {
	if err := ack.Err(); err != nil {
		log.WithError(err).WithFields(logger.Fields{"id": ack.ID, "op": ack.Op}).Warn("request rejected by venue")
		return
	}
	log.WithFields(logger.Fields{"id": ack.ID, "op": ack.Op, "event": ack.Event}).Debug("acknowledgement")
}
