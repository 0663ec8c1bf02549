package location

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dpup/greenwalk/internal/lib/errs"
)

// WebSocketSource dials a GPS streaming endpoint, e.g. a phone app sharing its
// position on the local network, and reads one JSON record per text message in
// the same format as StreamSource
type WebSocketSource struct {
	options
	url    string
	dialer *websocket.Dialer
}

// NewWebSocketSource creates a WebSocketSource for url
func NewWebSocketSource(url string, opts ...Option) *WebSocketSource {
	return &WebSocketSource{
		options: newOptions(opts),
		url:     url,
		dialer:  websocket.DefaultDialer,
	}
}

// Run connects and pumps messages into sink. A normal close by the peer ends
// the feed with nil. Losing the connection any other way is reported to the
// sink as errs.ErrSignalLost and returned.
func (s *WebSocketSource) Run(ctx context.Context, sink Sink) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		sink.HandleSourceError(errs.ErrSignalLost)
		return fmt.Errorf("failed to connect to %s: %w", s.url, err)
	}
	defer conn.Close()
	s.logger.Infow("Location websocket connected", "url", s.url)

	lines := make(chan line)
	go s.read(ctx, conn, lines)

	err = s.pump(ctx, lines, sink)
	switch {
	case ctx.Err() != nil:
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	case err != nil:
		s.logger.Warnw("Location websocket lost", "url", s.url, "error", err)
		sink.HandleSourceError(errs.ErrSignalLost)
	default:
		s.logger.Infow("Location websocket closed by peer", "url", s.url)
	}
	return err
}

func (s *WebSocketSource) read(ctx context.Context, conn *websocket.Conn, out chan<- line) {
	defer close(out)
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			select {
			case out <- line{err: err}:
			case <-ctx.Done():
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		select {
		case out <- line{data: msg}:
		case <-ctx.Done():
			return
		}
	}
}
