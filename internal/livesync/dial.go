package livesync

import (
	"context"
	"fmt"
	"net/url"

	"nhooyr.io/websocket"
)

// wsConn adapts a websocket connection to the Conn interface. Frames are
// text, one JSON object per frame.
type wsConn struct {
	conn *websocket.Conn
}

// DialWebsocket is the production Dialer.
func DialWebsocket(ctx context.Context, uri string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return data, nil
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}

// credentialURI attaches the bearer credential to the socket URI as an
// access_token query parameter. The result must only be logged through
// logging.RedactURL.
func credentialURI(base, token string) string {
	parsed, err := url.Parse(base)
	if err != nil {
		return base
	}
	query := parsed.Query()
	query.Set("access_token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
