package posproto

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestEncodeIdentityFieldNames(t *testing.T) {
	t.Parallel()

	raw, err := Encode(NewIdentity("abc", "k1", "v1"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(raw), `{"uuid":"abc","key":"k1","commit":"v1"}`; got != want {
		t.Fatalf("identity frame: got %s, want %s", got, want)
	}
}

func TestEncodeAckCarriesOnlyUUID(t *testing.T) {
	t.Parallel()

	raw, err := Encode(NewAck("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(raw), `{"uuid":"abc"}`; got != want {
		t.Fatalf("ack frame: got %s, want %s", got, want)
	}
}

func TestWriteFrameNilConn(t *testing.T) {
	t.Parallel()

	if err := WriteFrame(nil, NewAck("abc"), time.Second); err != ErrNilConn {
		t.Fatalf("expected ErrNilConn, got %v", err)
	}
}

func TestWriteFrameSendsTextFrame(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = WriteFrame(conn, NewAck("abc"), 0)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	mt, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("expected text frame, got type %d", mt)
	}
	if string(payload) != `{"uuid":"abc"}` {
		t.Fatalf("unexpected payload %s", payload)
	}
}
