package accountstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	domsvc "SigRelay/internal/domain/service"
	applogger "SigRelay/pkg/logger"
)

// Stream is one executor's account WebSocket. Equity and position events are
// pushed into the sink as they arrive; the run loop reconnects on any read
// failure until the context ends.
type Stream struct {
	executorID     string
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	sink   domsvc.AccountSink
	logger *applogger.Logger

	conn *websocket.Conn
}

// New creates a stream for the given executor.
func New(executorID, url string, reconnectDelay, pingInterval time.Duration, sink domsvc.AccountSink, lgr *applogger.Logger) *Stream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Stream{
		executorID:     executorID,
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		sink:           sink,
		logger:         lgr,
	}
}

type accountEvent struct {
	Type        string  `json:"type"`
	Equity      float64 `json:"equity"`
	Symbol      string  `json:"symbol"`
	Group       string  `json:"group"`
	Opened      bool    `json:"opened"`
	Value       float64 `json:"value"`
	BuyingPower float64 `json:"buying_power"`
}

// Run connects, reads until failure and reconnects, until ctx ends.
func (s *Stream) Run(ctx context.Context) {
	for {
		if err := s.connect(ctx); err != nil {
			s.logger.Warn("account stream connect failed",
				applogger.String("executor_id", s.executorID),
				applogger.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.reconnectDelay):
				continue
			}
		}

		err := s.readLoop(ctx)
		_ = s.Close()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("account stream disconnected, reconnecting",
			applogger.String("executor_id", s.executorID),
			applogger.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Stream) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	s.conn = conn
	s.logger.Info("account stream connected",
		applogger.String("executor_id", s.executorID))
	return nil
}

func (s *Stream) readLoop(ctx context.Context) error {
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go s.pingLoop(pingCtx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.dispatch(ctx, b)
	}
}

func (s *Stream) dispatch(ctx context.Context, b []byte) {
	var ev accountEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		// ignore non-event frames
		return
	}
	switch ev.Type {
	case "equity":
		s.sink.UpdateEquity(ctx, s.executorID, ev.Equity)
	case "position":
		s.sink.RecordPositionChange(ctx, s.executorID, domsvc.PositionChange{
			Symbol:      ev.Symbol,
			Group:       ev.Group,
			Opened:      ev.Opened,
			Value:       ev.Value,
			BuyingPower: ev.BuyingPower,
		})
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.conn != nil {
				_ = s.conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

// Close closes the connection.
func (s *Stream) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
