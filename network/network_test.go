package network

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiltball/motion"
	"tiltball/protocol"
	"tiltball/room"
)

func newTestServer(t *testing.T) (*httptest.Server, *room.Manager) {
	t.Helper()
	m := room.NewManager(room.Options{})
	srv := httptest.NewServer(NewRouter(m, Options{}, nil))
	t.Cleanup(func() {
		srv.Close()
		m.Close()
	})
	return srv, m
}

func dial(t *testing.T, srv *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + code
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ string, payload any) {
	t.Helper()
	b, err := protocol.Encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, b))
}

func readUntil[T any](t *testing.T, ws *websocket.Conn, typ string) T {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, msg, err := ws.ReadMessage()
		require.NoError(t, err)
		env, err := protocol.DecodeEnvelope(msg)
		require.NoError(t, err)
		if env.T != typ {
			continue
		}
		out, err := protocol.DecodePayload[T](env)
		require.NoError(t, err)
		return out
	}
}

var deviceHello = protocol.Hello{
	V:         protocol.Version,
	Role:      protocol.RoleDevice,
	Viewport:  motion.Viewport{Width: 390, Height: 844},
	Insets:    motion.Insets{Top: 47, Bottom: 34},
	Gyroscope: true,
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndListRooms(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/rooms", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created room.RoomInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Len(t, created.Code, 6)

	resp2, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var list []room.RoomInfo
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&list))
	assert.Equal(t, []room.RoomInfo{{Code: created.Code, Clients: 0}}, list)
}

func TestDeviceSessionOverWebsocket(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := dial(t, srv, "PLAY01")

	send(t, ws, protocol.MsgHello, deviceHello)
	w := readUntil[protocol.Welcome](t, ws, protocol.MsgWelcome)
	assert.Equal(t, "PLAY01", w.RoomCode)
	area := motion.AreaFromViewport(deviceHello.Viewport, deviceHello.Insets)
	assert.Equal(t, area, w.Area)

	send(t, ws, protocol.MsgStart, nil)
	cfg := readUntil[protocol.SensorConfig](t, ws, protocol.MsgSensor)
	assert.True(t, cfg.Streaming)
	assert.Equal(t, protocol.SampleIntervalMs, cfg.IntervalMs)

	send(t, ws, protocol.MsgSample, protocol.Sample{X: 1})
	tg := readUntil[protocol.Target](t, ws, protocol.MsgTarget)
	center := motion.ComputeCenter(area)
	assert.Equal(t, center.X, tg.X)
	assert.Equal(t, center.Y+motion.Sensitivity, tg.Y)

	send(t, ws, protocol.MsgStop, nil)
	cfg = readUntil[protocol.SensorConfig](t, ws, protocol.MsgSensor)
	assert.False(t, cfg.Streaming)
}

func TestBadHelloGetsError(t *testing.T) {
	srv, _ := newTestServer(t)
	ws := dial(t, srv, "BAD001")
	send(t, ws, protocol.MsgStart, nil)

	e := readUntil[protocol.Error](t, ws, protocol.MsgError)
	assert.Equal(t, protocol.ErrCodeBadMessage, e.Code)
}

func TestHelloWithWrongVersionGetsError(t *testing.T) {
	srv, rooms := newTestServer(t)
	ws := dial(t, srv, "OLD001")
	old := deviceHello
	old.V = protocol.Version + 1
	send(t, ws, protocol.MsgHello, old)

	e := readUntil[protocol.Error](t, ws, protocol.MsgError)
	assert.Equal(t, protocol.ErrCodeBadMessage, e.Code)
	assert.Contains(t, e.Message, "version")
	if r, ok := rooms.Get("OLD001"); ok {
		assert.Equal(t, 0, r.NumClients())
	}
}

func TestSecondDeviceRejectedOverWebsocket(t *testing.T) {
	srv, _ := newTestServer(t)
	first := dial(t, srv, "FULL01")
	send(t, first, protocol.MsgHello, deviceHello)
	readUntil[protocol.Welcome](t, first, protocol.MsgWelcome)

	second := dial(t, srv, "FULL01")
	send(t, second, protocol.MsgHello, deviceHello)
	e := readUntil[protocol.Error](t, second, protocol.MsgError)
	assert.Equal(t, protocol.ErrCodeRoomFull, e.Code)
}

func TestToCommand(t *testing.T) {
	cases := []struct {
		msg  string
		want any
	}{
		{`{"t":"start"}`, room.StartPlay{ClientID: "c1"}},
		{`{"t":"stop"}`, room.StopPlay{ClientID: "c1"}},
		{`{"t":"sample","p":{"x":1,"y":2,"z":-4.5}}`, room.Sample{ClientID: "c1", Sample: motion.OrientationSample{X: 1, Y: 2, Z: -4.5}}},
		{`{"t":"contact","p":{"at":1700000000000}}`, room.Contact{ClientID: "c1", At: time.UnixMilli(1700000000000)}},
	}
	for _, c := range cases {
		got, err := toCommand("c1", []byte(c.msg))
		require.NoError(t, err, c.msg)
		assert.Equal(t, c.want, got, c.msg)
	}

	_, err := toCommand("c1", []byte(`{"t":"hello"}`))
	assert.Error(t, err)
	_, err = toCommand("c1", []byte(`{"t":"sample"}`))
	assert.Error(t, err)
}

func TestWSConnSendAfterClose(t *testing.T) {
	c := newWSConn(nil, Options{SendBuffer: 1}, nil)
	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrSendBufferFull)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Error(t, c.Send([]byte("c")))
}
