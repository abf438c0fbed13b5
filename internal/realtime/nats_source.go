package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"brainsync-client/internal/apperr"
	"brainsync-client/internal/session"

	"github.com/nats-io/nats.go"
)

const defaultNATSSubject = "events.>"

// NATSSource listens on the backend's event bus directly and keeps only the events
// that belong to the token's user.
type NATSSource struct {
	URL     string
	Subject string
}

func NewNATSSource(natsURL string) *NATSSource {
	return &NATSSource{URL: natsURL, Subject: defaultNATSSubject}
}

func (s *NATSSource) Connect(ctx context.Context, token string) (Stream, error) {
	id, err := session.DecodeToken(token)
	if err != nil {
		return nil, err
	}
	if id.UserId == "" {
		return nil, apperr.NewAuth("token carries no user id")
	}

	closed := make(chan struct{})
	nc, err := nats.Connect(s.URL,
		nats.Name("brainsync-client"),
		nats.NoReconnect(),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, apperr.NewNetwork(err)
	}

	msgs := make(chan *nats.Msg, 64)
	sub, err := nc.ChanSubscribe(s.Subject, msgs)
	if err != nil {
		nc.Close()
		return nil, apperr.NewNetwork(err)
	}

	return &natsStream{nc: nc, sub: sub, msgs: msgs, closed: closed, userId: id.UserId}, nil
}

type natsStream struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	msgs   chan *nats.Msg
	closed chan struct{}
	userId string
}

func (s *natsStream) Next(ctx context.Context) ([]byte, error) {
	for {
		select {
		case msg := <-s.msgs:
			if frame, ok := natsFrame(msg.Subject, msg.Data, s.userId); ok {
				return frame, nil
			}
		case <-s.closed:
			return nil, apperr.NewNetwork(errors.New("nats connection closed"))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *natsStream) Close() error {
	_ = s.sub.Unsubscribe()
	s.nc.Close()
	return nil
}

// natsFrame turns a bus message (subject events.NOTE_CREATED, payload with user_id) into
// a push frame. Messages for other users are dropped.
func natsFrame(subject string, data []byte, userId string) ([]byte, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false
	}
	owner, _ := payload["user_id"].(string)
	if owner != userId {
		return nil, false
	}

	payload["type_code"] = strings.TrimPrefix(subject, "events.")
	frame, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return frame, true
}
