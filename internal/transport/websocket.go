package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WSSource streams envelope lines from a WebSocket upstream. Each text
// frame is forwarded as one chunk with a newline appended, so frame
// boundaries line up with the line-oriented envelope framing the
// normalizer expects.
type WSSource struct {
	conn   *websocket.Conn
	chunks chan []byte
	errs   chan error
	done   chan struct{}
	cancel context.CancelFunc
}

// OpenWS dials the endpoint and starts the read loop. The same bearer
// auth options as SSE apply.
func OpenWS(ctx context.Context, opts SSEOptions) (*WSSource, error) {
	header := http.Header{}
	for k, v := range opts.Headers {
		header.Set(k, v)
	}
	if opts.TokenSecret != "" {
		token, err := mintBearerToken(opts.TokenSecret, opts.Subject)
		if err != nil {
			return nil, fmt.Errorf("mint bearer token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &WSSource{
		conn:   conn,
		chunks: make(chan []byte, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.readLoop(ctx)
	return s, nil
}

func (s *WSSource) readLoop(ctx context.Context) {
	defer close(s.done)
	defer close(s.chunks)

	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case s.errs <- err:
				default:
				}
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		chunk := append(data, '\n')
		select {
		case s.chunks <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

func (s *WSSource) Chunks() <-chan []byte { return s.chunks }
func (s *WSSource) Errors() <-chan error  { return s.errs }
func (s *WSSource) Done() <-chan struct{} { return s.done }

// Close aborts the socket.
func (s *WSSource) Close() error {
	s.cancel()
	return s.conn.Close()
}
