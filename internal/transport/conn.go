package transport

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Conn is the minimal surface of a websocket connection the client
// uses. *websocket.Conn satisfies it; tests substitute an in-memory
// fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens one connection. It is invoked for the initial connect
// and again on every reconnect, so credentials are read at call time.
type Dialer func(ctx context.Context) (Conn, error)

// WSDialer dials the brokerage websocket endpoint, presenting the
// session token as a cookie. token is evaluated per dial so a
// refreshed session is picked up on reconnect.
func WSDialer(url string, token func() string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		header := http.Header{}
		header.Set("User-Agent", userAgent)
		header.Set("Origin", "https://app.traderepublic.com")
		if t := token(); t != "" {
			header.Set("Cookie", "tr_session="+t)
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, fmt.Errorf("WSDialer: %w", err)
		}
		return conn, nil
	}
}
