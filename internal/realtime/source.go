package realtime

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"brainsync-client/internal/apperr"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
)

// Stream is one live push connection. Next blocks until a frame arrives, the
// connection fails or ctx is done.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// Source opens push connections for a bearer token. An *apperr.Error with status 401
// means the backend rejected the token and retrying is pointless.
type Source interface {
	Connect(ctx context.Context, token string) (Stream, error)
}

type WebSocketSource struct {
	URL    string
	Dialer *websocket.Dialer
}

func NewWebSocketSource(wsURL string) *WebSocketSource {
	return &WebSocketSource{
		URL: wsURL,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Connect performs the handshake the backend hub accepts: token in the query string
// and as a bearer header.
func (s *WebSocketSource) Connect(ctx context.Context, token string) (Stream, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, apperr.NewValidation("invalid push channel url", map[string]any{"url": s.URL})
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := s.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			return nil, apperr.FromStatus(resp.StatusCode, "push channel handshake rejected", nil)
		}
		return nil, apperr.NewNetwork(err)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Next(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer stop()

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperr.NewNetwork(err)
		}
		if msgType == websocket.TextMessage || msgType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (s *wsStream) Close() error {
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	return s.conn.Close()
}
