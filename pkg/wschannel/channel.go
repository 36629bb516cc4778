// Package wschannel provides the production session channel: a websocket
// connection to the assistant service carrying JSON wire messages, one
// connection per turn.
package wschannel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/voxmill/go-assist/pkg/assist"
	"github.com/voxmill/go-assist/pkg/wire"
)

const handshakeTimeout = 10 * time.Second

var (
	_ assist.Channel = (*Channel)(nil)
	_ assist.Stream  = (*stream)(nil)
)

// Channel dials the assistant service and opens one websocket stream per
// turn. It satisfies the session's Channel contract.
type Channel struct {
	endpoint string
	tokens   oauth2.TokenSource
	logger   *slog.Logger
	dialer   *websocket.Dialer
}

// New creates a channel for the given websocket endpoint. The token source
// supplies the bearer token sent on every dial; it may be nil for
// unauthenticated local services.
func New(endpoint string, tokens oauth2.TokenSource, logger *slog.Logger) (*Channel, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("wschannel: endpoint is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Channel{
		endpoint: endpoint,
		tokens:   tokens,
		logger:   logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}, nil
}

// Assist dials the service and returns a stream for one turn.
//
// Dial failures are classified by reachability: connection refused, DNS
// errors, timeouts, and 502/503 handshake rejections surface as the
// retryable unavailable condition; anything else is terminal.
func (c *Channel) Assist(ctx context.Context) (assist.Stream, error) {
	header := http.Header{}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, assist.NewTransportError(wire.StatusInternal, "fetch access token", err)
		}
		token.SetAuthHeader(&http.Request{Header: header})
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		code := wire.StatusInternal
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			code = wire.StatusDeadlineExceeded
		case ctx.Err() != nil:
			// canceled, keep terminal
		case isDialUnavailable(err, resp):
			code = wire.StatusUnavailable
		}
		return nil, assist.NewTransportError(code, "dial "+c.endpoint, err)
	}

	c.logger.Debug("stream opened", "endpoint", c.endpoint)
	st := &stream{conn: conn, ctx: ctx, done: make(chan struct{}), logger: c.logger}
	go st.watch()
	return st, nil
}

// isDialUnavailable reports whether a dial failure is the transient class.
func isDialUnavailable(err error, resp *http.Response) bool {
	if resp != nil && (resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// stream is one turn's websocket conversation.
type stream struct {
	conn   *websocket.Conn
	ctx    context.Context
	done   chan struct{}
	logger *slog.Logger

	// writeMu serializes Send and CloseSend; gorilla connections allow only
	// one concurrent writer.
	writeMu sync.Mutex

	closeOnce sync.Once
}

// watch tears the connection down when the turn context expires, unblocking
// any pending read or write.
func (s *stream) watch() {
	select {
	case <-s.ctx.Done():
		s.conn.Close()
	case <-s.done:
	}
}

// Send writes one outbound request envelope.
func (s *stream) Send(req *wire.AssistRequest) error {
	msg, err := wire.NewAssistRequestMessage(req)
	if err != nil {
		return assist.NewTransportError(wire.StatusInternal, "encode request", err)
	}
	return s.write(msg)
}

// CloseSend writes the half-close marker. The service keeps the inbound
// stream open until it has delivered every remaining event.
func (s *stream) CloseSend() error {
	msg, err := wire.NewEndOfStreamMessage()
	if err != nil {
		return assist.NewTransportError(wire.StatusInternal, "encode end of stream", err)
	}
	return s.write(msg)
}

func (s *stream) write(msg *wire.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return assist.NewTransportError(wire.StatusInternal, "encode message", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return s.failure("write message", err)
	}
	return nil
}

// Recv reads the next inbound response envelope. It returns io.EOF when the
// service closes the stream normally and a TransportError carrying the
// service status when the stream ends with an error message.
func (s *stream) Recv() (*wire.AssistResponse, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.Close()
				return nil, io.EOF
			}
			return nil, s.failure("read message", err)
		}

		msg, err := wire.ParseMessage(data)
		if err != nil {
			return nil, assist.NewTransportError(wire.StatusInternal, "decode message", err)
		}

		switch msg.Type {
		case wire.TypeAssistResponse:
			return msg.GetAssistResponse()
		case wire.TypeError:
			status, perr := msg.GetStatus()
			if perr != nil {
				return nil, assist.NewTransportError(wire.StatusInternal, "decode status", perr)
			}
			s.Close()
			return nil, assist.NewTransportError(status.Code, "service error: "+status.Message, nil)
		default:
			s.logger.Warn("unexpected message type", "type", msg.Type)
		}
	}
}

// Close tears the connection down. Safe to call repeatedly.
func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// failure classifies a connection-level error. An expired turn deadline wins
// over the raw connection error it caused; an abrupt close or a going-away
// close is the transient class; everything else is terminal.
func (s *stream) failure(reason string, err error) error {
	code := wire.StatusInternal
	switch {
	case errors.Is(s.ctx.Err(), context.DeadlineExceeded):
		code = wire.StatusDeadlineExceeded
	case s.ctx.Err() != nil:
		// canceled, keep terminal
	case websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		code = wire.StatusUnavailable
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			code = wire.StatusUnavailable
		}
	}
	return assist.NewTransportError(code, reason, err)
}
