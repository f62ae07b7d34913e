package ws_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejoacosta74/shrimpy-stream/internal/events"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws/mocks"
	"github.com/alejoacosta74/shrimpy-stream/internal/ws/wstest"
	"github.com/alejoacosta74/shrimpy-stream/pkg/shrimpy"
)

const (
	waitTimeout = 2 * time.Second
	pollEvery   = 10 * time.Millisecond
)

func newClient(t *testing.T, srv *wstest.Server, opts ...ws.Option) *ws.Client {
	t.Helper()
	opts = append([]ws.Option{ws.WithURL(srv.URL), ws.WithCloseGrace(50 * time.Millisecond)}, opts...)
	return ws.NewClient(opts...)
}

func connect(t *testing.T, c *ws.Client, srv *wstest.Server) {
	t.Helper()
	require.NoError(t, c.Connect(context.Background()))
	require.True(t, srv.WaitForConnection(waitTimeout), "server saw no connection")
	require.Equal(t, ws.StateOpen, c.State())
}

func waitDone(t *testing.T, c *ws.Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		t.Fatal("connection goroutine did not exit")
	}
}

func TestClient_AnswersHeartbeat(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	c := newClient(t, srv)
	connect(t, c, srv)
	defer c.Disconnect()

	srv.Broadcast([]byte(`{"type":"ping","data":1588812451289}`))

	require.Eventually(t, func() bool {
		return len(srv.ReceivedOfType(shrimpy.TypePong)) == 1
	}, waitTimeout, pollEvery)
	assert.JSONEq(t, `{"type":"pong","data":1588812451289}`, string(srv.ReceivedOfType(shrimpy.TypePong)[0]))
	assert.Equal(t, ws.StateOpen, c.State())
}

func TestClient_RoutesFramesToSubscription(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	received := make(chan shrimpy.Message, 4)
	c := newClient(t, srv)
	require.NoError(t, c.Subscribe(shrimpy.Subscription("binance", "btc-usdt", "orderbook"), func(m shrimpy.Message) {
		received <- m
	}))
	connect(t, c, srv)
	defer c.Disconnect()

	require.Eventually(t, func() bool {
		return len(srv.ReceivedOfType(shrimpy.TypeSubscribe)) == 1
	}, waitTimeout, pollEvery)

	var sent shrimpy.Message
	require.NoError(t, json.Unmarshal(srv.ReceivedOfType(shrimpy.TypeSubscribe)[0], &sent))
	assert.Equal(t, shrimpy.Subscription("binance", "btc-usdt", "orderbook"), sent)

	srv.Broadcast([]byte(`{"exchange":"binance","pair":"btc-usdt","channel":"orderbook","snapshot":true,"content":[]}`))

	select {
	case m := <-received:
		assert.Equal(t, "orderbook", m.Channel)
		assert.Contains(t, string(m.Raw), `"snapshot":true`)
	case <-time.After(waitTimeout):
		t.Fatal("handler not invoked")
	}
}

func TestClient_UnsubscribeNotifiesServerAndStopsDelivery(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	var calls atomic.Int32
	c := newClient(t, srv)
	sub := shrimpy.Subscription("binance", "btc-usdt", "trade")
	require.NoError(t, c.Subscribe(sub, func(shrimpy.Message) { calls.Add(1) }))
	connect(t, c, srv)
	defer c.Disconnect()

	frame := []byte(`{"exchange":"binance","pair":"btc-usdt","channel":"trade","content":[]}`)
	srv.Broadcast(frame)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitTimeout, pollEvery)

	require.NoError(t, c.Unsubscribe(shrimpy.Unsubscription("binance", "btc-usdt", "trade")))

	// The unsubscribe frame goes out on the loop iteration after the next inbound frame.
	srv.Broadcast([]byte(`{"type":"ping","data":1}`))
	require.Eventually(t, func() bool {
		return len(srv.ReceivedOfType(shrimpy.TypeUnsubscribe)) == 1
	}, waitTimeout, pollEvery)

	srv.Broadcast(frame)
	srv.Broadcast([]byte(`{"type":"ping","data":2}`))
	require.Eventually(t, func() bool {
		return len(srv.ReceivedOfType(shrimpy.TypePong)) == 2
	}, waitTimeout, pollEvery)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_DropsFramesForUnknownTopic(t *testing.T) {
	ctrl := gomock.NewController(t)
	obs := mocks.NewMockObserver(ctrl)
	dropped := make(chan string, 1)
	obs.EXPECT().FrameDropped(gomock.Any()).Do(func(topic string) { dropped <- topic })
	obs.EXPECT().FrameReceived(gomock.Any()).AnyTimes()
	obs.EXPECT().FrameSent(gomock.Any()).AnyTimes()
	obs.EXPECT().StateChanged(gomock.Any()).AnyTimes()
	obs.EXPECT().ConnectionError(gomock.Any()).AnyTimes()

	srv := wstest.NewServer()
	defer srv.Close()

	c := newClient(t, srv, ws.WithObserver(obs))
	connect(t, c, srv)

	srv.Broadcast([]byte(`{"exchange":"binance","pair":"eth-usdt","channel":"bbo"}`))

	select {
	case topic := <-dropped:
		assert.Equal(t, "binance-eth-usdt-bbo", topic)
	case <-time.After(waitTimeout):
		t.Fatal("frame was not dropped")
	}
	assert.Equal(t, ws.StateOpen, c.State())

	c.Disconnect()
	assert.Equal(t, ws.StateClosed, c.State())
}

func TestClient_GracefulShutdownWaitsForHandlers(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	bus := events.NewEventBus()
	defer bus.Shutdown()
	states := bus.Subscribe(events.TopicConnectionState)

	started := make(chan struct{})
	var finished atomic.Bool
	c := newClient(t, srv, ws.WithEventBus(bus), ws.WithDrainTimeout(time.Second))
	require.NoError(t, c.Subscribe(shrimpy.Subscription("kucoin", "btc-usdt", "trade"), func(shrimpy.Message) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
	}))
	connect(t, c, srv)

	srv.Broadcast([]byte(`{"exchange":"kucoin","pair":"btc-usdt","channel":"trade"}`))
	select {
	case <-started:
	case <-time.After(waitTimeout):
		t.Fatal("handler not started")
	}

	c.Disconnect()

	assert.True(t, finished.Load(), "disconnect returned before the handler finished")
	assert.Equal(t, ws.StateClosed, c.State())
	assert.NoError(t, c.Err())
	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}

	var seen []string
	for len(seen) < 4 {
		select {
		case ev := <-states:
			change := ev.(events.StateChange)
			if change.To != "connecting" {
				assert.Equal(t, c.SessionID(), change.Session)
			}
			seen = append(seen, change.To)
		case <-time.After(waitTimeout):
			t.Fatalf("missing state changes, got %v", seen)
		}
	}
	assert.Equal(t, []string{"connecting", "open", "closing", "closed"}, seen[:4])

	// A second disconnect is a no-op.
	c.Disconnect()
	assert.Equal(t, ws.StateClosed, c.State())
}

func TestClient_ServerErrorEndsSessionWithoutHandler(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	c := newClient(t, srv)
	connect(t, c, srv)

	srv.Broadcast([]byte(`{"type":"error","code":2404,"message":"Invalid pair"}`))
	waitDone(t, c)

	var serverErr *ws.ServerError
	require.ErrorAs(t, c.Err(), &serverErr)
	assert.Equal(t, 2404, serverErr.Code)
	assert.Equal(t, ws.StateFaulted, c.State())
}

func TestClient_ServerErrorGoesToErrorHandler(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	got := make(chan *ws.ServerError, 1)
	c := newClient(t, srv, ws.WithErrorHandler(func(err *ws.ServerError) { got <- err }))
	connect(t, c, srv)
	defer c.Disconnect()

	srv.Broadcast([]byte(`{"type":"error","code":2100,"message":"Rate limit exceeded"}`))

	select {
	case err := <-got:
		assert.Equal(t, 2100, err.Code)
		assert.Equal(t, "Rate limit exceeded", err.Message)
	case <-time.After(waitTimeout):
		t.Fatal("error handler not invoked")
	}
	assert.Equal(t, ws.StateOpen, c.State())
}

func TestClient_MalformedFrameFaults(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	c := newClient(t, srv)
	connect(t, c, srv)

	srv.Broadcast([]byte(`not json`))
	waitDone(t, c)

	assert.ErrorIs(t, c.Err(), ws.ErrMalformedFrame)
	assert.Equal(t, ws.StateFaulted, c.State())
}

func TestClient_ReconnectUsesNewToken(t *testing.T) {
	srv := wstest.NewServer()
	defer srv.Close()

	c := newClient(t, srv, ws.WithToken("first"))
	connect(t, c, srv)
	firstSession := c.SessionID()

	srv.DropConnections()
	waitDone(t, c)
	assert.ErrorIs(t, c.Err(), ws.ErrConnectionClosed)
	assert.Equal(t, ws.StateFaulted, c.State())

	assert.ErrorIs(t, c.Connect(context.Background()), ws.ErrInvalidState)

	require.NoError(t, c.Reconnect(context.Background(), "second"))
	require.True(t, srv.WaitForConnection(waitTimeout))
	assert.Equal(t, ws.StateOpen, c.State())
	assert.NotEqual(t, firstSession, c.SessionID())
	assert.NoError(t, c.Err())

	// Reconnecting an open client tears it down first and keeps the token.
	require.NoError(t, c.Reconnect(context.Background(), ""))
	require.True(t, srv.WaitForConnection(waitTimeout))

	queries := srv.Queries()
	require.Len(t, queries, 3)
	assert.Equal(t, "first", queries[0].Get("token"))
	assert.Equal(t, "second", queries[1].Get("token"))
	assert.Equal(t, "second", queries[2].Get("token"))

	c.Disconnect()
	assert.Equal(t, ws.StateClosed, c.State())
}

func TestClient_ReconnectFromIdleIsRejected(t *testing.T) {
	c := ws.NewClient(ws.WithURL("ws://127.0.0.1:1"))
	assert.ErrorIs(t, c.Reconnect(context.Background(), "tok"), ws.ErrInvalidState)
	assert.Equal(t, ws.StateIdle, c.State())
	assert.Nil(t, c.Done())
}

func TestClient_ConnectFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().
		DialContext(gomock.Any(), "wss://feed.test?token=abc", gomock.Any()).
		Return(nil, nil, errors.New("connection refused"))

	c := ws.NewClient(ws.WithURL("wss://feed.test"), ws.WithToken("abc"), ws.WithDialer(dialer))

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ws.ErrConnectionFailure)
	assert.ErrorIs(t, c.Err(), ws.ErrConnectionFailure)
	assert.Equal(t, ws.StateFaulted, c.State())
}

func TestClient_WriteFailureFaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	dialer := mocks.NewMockDialer(ctrl)

	dialer.EXPECT().DialContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil, nil)
	conn.EXPECT().WriteMessage(websocket.TextMessage, gomock.Any()).Return(errors.New("broken pipe"))
	conn.EXPECT().Close().Return(nil)

	c := ws.NewClient(ws.WithURL("wss://feed.test"), ws.WithDialer(dialer))
	require.NoError(t, c.Subscribe(shrimpy.Subscription("binance", "btc-usdt", "trade"), func(shrimpy.Message) {}))
	require.NoError(t, c.Connect(context.Background()))

	waitDone(t, c)
	assert.ErrorIs(t, c.Err(), ws.ErrConnectionClosed)
	assert.Equal(t, ws.StateFaulted, c.State())
}

func TestClient_ReadFailureFaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	dialer := mocks.NewMockDialer(ctrl)

	dialer.EXPECT().DialContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil, nil)
	gomock.InOrder(
		conn.EXPECT().ReadMessage().Return(websocket.TextMessage, []byte(`{"type":"ping","data":"x"}`), nil),
		conn.EXPECT().WriteMessage(websocket.TextMessage, []byte(`{"type":"pong","data":"x"}`)).Return(nil),
		conn.EXPECT().ReadMessage().Return(0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}),
		conn.EXPECT().Close().Return(nil),
	)

	c := ws.NewClient(ws.WithURL("wss://feed.test"), ws.WithDialer(dialer))
	require.NoError(t, c.Connect(context.Background()))

	waitDone(t, c)
	assert.ErrorIs(t, c.Err(), ws.ErrConnectionClosed)
	assert.Equal(t, ws.StateFaulted, c.State())
}

func TestClient_PongPrecedesQueuedFramesAndNextRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	dialer := mocks.NewMockDialer(ctrl)
	dialer.EXPECT().DialContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil, nil)

	var (
		c      *ws.Client
		writes [][]byte
	)
	record := func(_ int, b []byte) error {
		writes = append(writes, b)
		return nil
	}
	received := make(chan shrimpy.Message, 1)
	trade := shrimpy.Subscription("binance", "btc-usdt", "trade")

	gomock.InOrder(
		// The subscribe is queued while the loop is blocked on this read.
		conn.EXPECT().ReadMessage().DoAndReturn(func() (int, []byte, error) {
			assert.NoError(t, c.Subscribe(trade, func(m shrimpy.Message) { received <- m }))
			return websocket.TextMessage, []byte(`{"type":"ping","data":42}`), nil
		}),
		conn.EXPECT().WriteMessage(websocket.TextMessage, gomock.Any()).DoAndReturn(record),
		conn.EXPECT().WriteMessage(websocket.TextMessage, gomock.Any()).DoAndReturn(record),
		conn.EXPECT().ReadMessage().Return(websocket.TextMessage,
			[]byte(`{"exchange":"binance","pair":"btc-usdt","channel":"trade","content":[]}`), nil),
		conn.EXPECT().ReadMessage().Return(0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}),
		conn.EXPECT().Close().Return(nil),
	)

	c = ws.NewClient(ws.WithURL("wss://feed.test"), ws.WithDialer(dialer))
	require.NoError(t, c.Connect(context.Background()))
	waitDone(t, c)

	require.Len(t, writes, 2)
	assert.JSONEq(t, `{"type":"pong","data":42}`, string(writes[0]))
	assert.JSONEq(t, `{"type":"subscribe","exchange":"binance","pair":"btc-usdt","channel":"trade"}`, string(writes[1]))

	select {
	case m := <-received:
		assert.Equal(t, "trade", m.Channel)
	default:
		t.Fatal("frame after the heartbeat was not routed")
	}
}

func TestClient_FaultWinsOverDisconnectDuringDrain(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConn(ctrl)
	dialer := mocks.NewMockDialer(ctrl)
	obs := mocks.NewMockObserver(ctrl)
	dialer.EXPECT().DialContext(gomock.Any(), gomock.Any(), gomock.Any()).Return(conn, nil, nil)

	readFailed := make(chan struct{})
	obs.EXPECT().ConnectionError("read").Do(func(string) { close(readFailed) })
	obs.EXPECT().FrameReceived(gomock.Any()).AnyTimes()
	obs.EXPECT().FrameSent(gomock.Any()).AnyTimes()
	obs.EXPECT().StateChanged(gomock.Any()).AnyTimes()
	obs.EXPECT().HandlerDispatched(gomock.Any()).AnyTimes()

	gomock.InOrder(
		conn.EXPECT().WriteMessage(websocket.TextMessage, gomock.Any()).Return(nil),
		conn.EXPECT().ReadMessage().Return(websocket.TextMessage,
			[]byte(`{"exchange":"binance","pair":"btc-usdt","channel":"trade"}`), nil),
		conn.EXPECT().ReadMessage().Return(0, nil, &websocket.CloseError{Code: websocket.CloseAbnormalClosure}),
		conn.EXPECT().Close().Return(nil),
	)

	started := make(chan struct{})
	release := make(chan struct{})
	c := ws.NewClient(ws.WithURL("wss://feed.test"), ws.WithDialer(dialer), ws.WithObserver(obs))
	require.NoError(t, c.Subscribe(shrimpy.Subscription("binance", "btc-usdt", "trade"), func(shrimpy.Message) {
		close(started)
		<-release
	}))
	require.NoError(t, c.Connect(context.Background()))

	for _, ch := range []chan struct{}{started, readFailed} {
		select {
		case <-ch:
		case <-time.After(waitTimeout):
			t.Fatal("session did not reach the draining phase")
		}
	}

	disconnected := make(chan struct{})
	go func() {
		c.Disconnect()
		close(disconnected)
	}()
	require.Eventually(t, func() bool { return c.State() == ws.StateClosing }, waitTimeout, pollEvery)
	close(release)

	select {
	case <-disconnected:
	case <-time.After(waitTimeout):
		t.Fatal("disconnect did not return")
	}
	assert.Equal(t, ws.StateFaulted, c.State())
	assert.ErrorIs(t, c.Err(), ws.ErrConnectionClosed)
}
