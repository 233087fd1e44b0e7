// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rapidaai/realtime-relay/pkg/commons"
)

const (
	// outboundQueueSize bounds the number of frames waiting for the writer
	// goroutine. Occupancy in bytes, not frame count, is what the drop
	// policy is defined against.
	outboundQueueSize = 512

	// writeWait is the deadline for the close control frame.
	writeWait = 10 * time.Second
)

// ErrOutboundClosed is returned by Write once the leg has been torn down.
var ErrOutboundClosed = errors.New("outbound connection closed")

// frame is one queued outbound websocket message.
type frame struct {
	messageType int
	data        []byte
}

// outbound owns the write side of one websocket leg. gorilla connections
// permit a single concurrent writer, so every send goes through the queue
// and one writer goroutine; pending tracks the byte occupancy of the queue,
// standing in for the bufferedAmount check the drop policy was written
// against in the browser runtime.
type outbound struct {
	logger commons.Logger
	conn   *websocket.Conn

	queue     chan frame
	pending   atomic.Int64
	threshold int64

	closeOnce sync.Once
	closed    chan struct{}
}

func newOutbound(logger commons.Logger, conn *websocket.Conn, threshold int64) *outbound {
	o := &outbound{
		logger:    logger,
		conn:      conn,
		queue:     make(chan frame, outboundQueueSize),
		threshold: threshold,
		closed:    make(chan struct{}),
	}
	go o.writeLoop()
	return o
}

func (o *outbound) writeLoop() {
	for {
		select {
		case <-o.closed:
			return
		case f := <-o.queue:
			err := o.conn.WriteMessage(f.messageType, f.data)
			o.pending.Add(-int64(len(f.data)))
			if err != nil {
				o.logger.Debugf("outbound write failed: %v", err)
				// The peer's read loop observes the closed connection and
				// drives session teardown from there.
				o.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// Write queues data for delivery, preserving enqueue order. It blocks when
// the queue is full and fails only once the leg is closed.
func (o *outbound) Write(messageType int, data []byte) error {
	select {
	case <-o.closed:
		return ErrOutboundClosed
	default:
	}

	o.pending.Add(int64(len(data)))
	select {
	case o.queue <- frame{messageType: messageType, data: data}:
		return nil
	case <-o.closed:
		o.pending.Add(-int64(len(data)))
		return ErrOutboundClosed
	}
}

// TryWrite queues data unless the buffer occupancy has reached the
// backpressure threshold, in which case the frame is discarded: not queued,
// not retried. It reports whether the frame was accepted.
func (o *outbound) TryWrite(messageType int, data []byte) bool {
	if o.pending.Load() >= o.threshold {
		return false
	}
	return o.Write(messageType, data) == nil
}

// BufferedAmount returns the byte occupancy of the outbound queue.
func (o *outbound) BufferedAmount() int64 {
	return o.pending.Load()
}

// Close sends a close frame and tears the leg down. Closing an already
// closed leg is a no-op, never an error.
func (o *outbound) Close(code int, reason string) {
	o.closeOnce.Do(func() {
		close(o.closed)
		deadline := time.Now().Add(writeWait)
		_ = o.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = o.conn.Close()
	})
}
