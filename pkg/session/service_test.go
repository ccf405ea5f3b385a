package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrade/tradefleet/api/pb"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

// stubUpstream satisfies Upstream without a real exchange worker
type stubUpstream struct {
	mu       sync.Mutex
	binds    int
	releases int
	status   types.SimulatorStatus
}

func (u *stubUpstream) Bind(ctx context.Context, s *types.Session) {
	u.mu.Lock()
	u.binds++
	u.mu.Unlock()
	<-ctx.Done()
}

func (u *stubUpstream) Release(context.Context) {
	u.mu.Lock()
	u.releases++
	u.mu.Unlock()
}

func (u *stubUpstream) Status() types.SimulatorStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status == "" {
		return types.SimulatorChecking
	}
	return u.status
}

type testFixture struct {
	svc      *Service
	upstream *stubUpstream
	store    storage.Store
	server   *httptest.Server
	now      time.Time
	nowMu    sync.Mutex
}

func (f *testFixture) clock() time.Time {
	f.nowMu.Lock()
	defer f.nowMu.Unlock()
	return f.now
}

func (f *testFixture) advance(d time.Duration) {
	f.nowMu.Lock()
	f.now = f.now.Add(d)
	f.nowMu.Unlock()
}

func (f *testFixture) deviceWantsData(deviceID string) bool {
	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	c := f.svc.conns[deviceID]
	return c != nil && c.wantsData()
}

func newFixture(t *testing.T, cfg Config) *testFixture {
	t.Helper()
	f := &testFixture{
		upstream: &stubUpstream{},
		store:    storage.NewMemoryStore(),
		now:      time.Date(2025, 11, 3, 15, 0, 0, 0, time.UTC),
	}

	dir := t.TempDir()
	cfg.ReadyFilePath = filepath.Join(dir, "ready")
	cfg.ActiveLockFilePath = filepath.Join(dir, "active.lock")
	cfg.Clock = f.clock

	auth := &StaticAuthenticator{Tokens: map[string]string{
		"tok-alice": "alice",
		"tok-bob":   "bob",
	}}

	svc, err := NewService(f.store, auth, f.upstream, nil, cfg)
	require.NoError(t, err)
	f.svc = svc

	f.server = httptest.NewServer(http.HandlerFunc(svc.ServeWS))
	t.Cleanup(f.server.Close)
	return f
}

func (f *testFixture) dial(t *testing.T, token, deviceID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=" + token + "&deviceId=" + deviceID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readFrame reads the next frame, failing the test on timeout
func readFrame(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func send(t *testing.T, ws *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func TestConnect_BindsSessionAndSendsConnected(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")

	frame := readFrame(t, ws)
	assert.Equal(t, TypeConnected, frame["type"])
	assert.NotEmpty(t, frame["clientId"])
	assert.Equal(t, "d1", frame["deviceId"])
	assert.NotEmpty(t, frame["sessionId"])

	assert.Equal(t, StateActive, f.svc.State())
	sess := f.svc.Session()
	require.NotNil(t, sess)
	assert.Equal(t, "alice", sess.UserID)
	assert.Equal(t, "d1", sess.DeviceID)
}

func TestConnect_RejectsMissingParams(t *testing.T) {
	f := newFixture(t, Config{})
	resp, err := http.Get(f.server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConnect_RejectsBadToken(t *testing.T) {
	f := newFixture(t, Config{})
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=bogus&deviceId=d1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnect_SecondUserGets503(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?token=tok-bob&deviceId=d2"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
}

func TestConnect_SameDeviceReplacesConnection(t *testing.T) {
	f := newFixture(t, Config{})
	first := f.dial(t, "tok-alice", "d1")
	readFrame(t, first)
	before := f.svc.Session()

	second := f.dial(t, "tok-alice", "d1")
	frame := readFrame(t, second)
	assert.Equal(t, TypeConnected, frame["type"])

	// The incumbent hears session_replaced, then the 1000 close.
	frame = readFrame(t, first)
	assert.Equal(t, TypeSessionReplaced, frame["type"])

	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close frame, got %v", err)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, ReasonReplaced, closeErr.Text)

	// Replacement is not a reconnect; same session continues.
	after := f.svc.Session()
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Metadata.ReconnectCount, after.Metadata.ReconnectCount)
	assert.Equal(t, StateActive, f.svc.State())
}

func TestHeartbeat_AckAndSlidingExpiry(t *testing.T) {
	f := newFixture(t, Config{SessionTimeout: time.Hour, ExtensionThreshold: 30 * time.Minute})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)
	initialExpiry := f.svc.Session().ExpiresAt

	// Outside the extension threshold the expiry is left alone.
	f.advance(10 * time.Minute)
	send(t, ws, map[string]interface{}{"type": TypeHeartbeat, "timestamp": f.clock().UnixMilli()})
	frame := readFrame(t, ws)
	assert.Equal(t, TypeHeartbeatAck, frame["type"])
	assert.Equal(t, initialExpiry, f.svc.Session().ExpiresAt)

	// Inside the threshold the heartbeat extends it.
	f.advance(25 * time.Minute)
	send(t, ws, map[string]interface{}{"type": TypeHeartbeat, "timestamp": f.clock().UnixMilli()})
	readFrame(t, ws)
	assert.Equal(t, f.clock().Add(time.Hour), f.svc.Session().ExpiresAt)
}

func TestHeartbeat_AfterExpiryDrains(t *testing.T) {
	f := newFixture(t, Config{SessionTimeout: time.Hour})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	f.advance(2 * time.Hour)
	send(t, ws, map[string]interface{}{"type": TypeHeartbeat, "timestamp": f.clock().UnixMilli()})

	frame := readFrame(t, ws)
	assert.Equal(t, TypeError, frame["type"])
	assert.Equal(t, CodeSessionExpired, frame["code"])

	require.Eventually(t, func() bool { return f.svc.State() == StateReady }, 2*time.Second, 10*time.Millisecond)
}

func TestExpiryWatch_ClosesSilentSession(t *testing.T) {
	f := newFixture(t, Config{SessionTimeout: time.Hour, HeartbeatInterval: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.svc.ExpiryWatch(ctx)

	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)
	sessionID := f.svc.Session().ID

	f.advance(2 * time.Hour)
	require.Eventually(t, func() bool { return f.svc.State() == StateReady }, 2*time.Second, 10*time.Millisecond)

	sess, err := f.store.GetSession(sessionID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionExpired, sess.Status)
}

func TestQualityReport_UpdatesSessionAndAnswers(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	send(t, ws, map[string]interface{}{
		"type": TypeQuality, "latency_ms": 600, "missed_heartbeats": 0,
	})
	frame := readFrame(t, ws)
	assert.Equal(t, TypeQualityUpdate, frame["type"])
	assert.Equal(t, string(types.QualityDegraded), frame["quality"])
	assert.Equal(t, false, frame["reconnectRecommended"])

	send(t, ws, map[string]interface{}{
		"type": TypeQuality, "latency_ms": 50, "missed_heartbeats": 4,
	})
	frame = readFrame(t, ws)
	assert.Equal(t, string(types.QualityPoor), frame["quality"])
	assert.Equal(t, true, frame["reconnectRecommended"])

	assert.Equal(t, types.QualityPoor, f.svc.Session().Metadata.Quality)
}

func TestUnknownFrameType_GetsErrorFrame(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	send(t, ws, map[string]interface{}{"type": "telepathy"})
	frame := readFrame(t, ws)
	assert.Equal(t, TypeError, frame["type"])
	assert.Equal(t, CodeInvalidRequest, frame["code"])
}

func TestSessionInfo_RequestEchoesRequestID(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	send(t, ws, map[string]interface{}{"type": TypeSessionInfo, "requestId": "r-7"})
	frame := readFrame(t, ws)
	assert.Equal(t, TypeSessionInfo, frame["type"])
	assert.Equal(t, "r-7", frame["requestId"])
	assert.Equal(t, "d1", frame["deviceId"])
	assert.Equal(t, string(types.SimulatorChecking), frame["simulatorStatus"])
}

func TestReconnect_WrongDeviceRejected(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)
	sess := f.svc.Session()

	send(t, ws, map[string]interface{}{
		"type": TypeReconnect, "sessionId": sess.ID, "token": "tok-alice", "deviceId": "other-device", "attempt": 1,
	})
	frame := readFrame(t, ws)
	assert.Equal(t, TypeError, frame["type"])
	assert.Equal(t, CodeInvalidDevice, frame["code"])
}

func TestReconnect_CountsAttempts(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)
	sess := f.svc.Session()

	send(t, ws, map[string]interface{}{
		"type": TypeReconnect, "sessionId": sess.ID, "token": "tok-alice", "deviceId": "d1", "attempt": 1,
	})
	frame := readFrame(t, ws)
	assert.Equal(t, TypeSessionInfo, frame["type"])
	assert.Equal(t, 1, f.svc.Session().Metadata.ReconnectCount)
}

func TestStopSession_DrainsToReady(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	send(t, ws, map[string]interface{}{"type": TypeStopSession})

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	sawShutdown := false
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			closeErr, ok := err.(*websocket.CloseError)
			require.True(t, ok, "expected a close frame, got %v", err)
			assert.Equal(t, ReasonSessionStopped, closeErr.Text)
			break
		}
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == TypeServerShutdown {
			sawShutdown = true
		}
	}
	assert.True(t, sawShutdown, "expected a server_shutdown frame before the close")

	require.Eventually(t, func() bool { return f.svc.State() == StateReady }, 2*time.Second, 10*time.Millisecond)
	f.upstream.mu.Lock()
	defer f.upstream.mu.Unlock()
	assert.Equal(t, 1, f.upstream.releases)
}

func TestDisconnect_LastDeviceDrains(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)
	ws.Close()

	require.Eventually(t, func() bool { return f.svc.State() == StateReady }, 2*time.Second, 10*time.Millisecond)

	// The instance re-advertises and can host the next user.
	ws2 := f.dial(t, "tok-bob", "d9")
	frame := readFrame(t, ws2)
	assert.Equal(t, TypeConnected, frame["type"])
	assert.Equal(t, "bob", f.svc.Session().UserID)
}

func TestUnsubscribe_MutesExchangeData(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	update := &pb.MarketDataUpdate{
		Timestamp: f.clock().UnixMilli(),
		Data:      []*pb.SymbolData{{Symbol: "AAPL", Close: "101.25"}},
	}
	f.svc.DeliverUpdate(update)
	frame := readFrame(t, ws)
	require.Equal(t, TypeExchangeData, frame["type"])

	send(t, ws, map[string]interface{}{"type": TypeUnsubscribe, "dataType": TypeExchangeData})
	require.Eventually(t, func() bool { return !f.deviceWantsData("d1") }, 2*time.Second, 10*time.Millisecond)
	f.svc.DeliverUpdate(update)

	// A muted device gets nothing; the next frame is the heartbeat ack.
	send(t, ws, map[string]interface{}{"type": TypeHeartbeat, "timestamp": f.clock().UnixMilli()})
	frame = readFrame(t, ws)
	assert.Equal(t, TypeHeartbeatAck, frame["type"])

	// Resubscribing restores delivery.
	send(t, ws, map[string]interface{}{"type": TypeSubscribe, "dataType": TypeExchangeData, "symbols": []string{}})
	require.Eventually(t, func() bool { return f.deviceWantsData("d1") }, 2*time.Second, 10*time.Millisecond)
	f.svc.DeliverUpdate(update)
	frame = readFrame(t, ws)
	assert.Equal(t, TypeExchangeData, frame["type"])
}

func TestUnsubscribe_BadPayload(t *testing.T) {
	f := newFixture(t, Config{})
	ws := f.dial(t, "tok-alice", "d1")
	readFrame(t, ws)

	send(t, ws, map[string]interface{}{"type": TypeUnsubscribe, "dataType": 42})
	frame := readFrame(t, ws)
	assert.Equal(t, TypeError, frame["type"])
	assert.Equal(t, CodeInvalidRequest, frame["code"])

	send(t, ws, map[string]interface{}{"type": TypeUnsubscribe, "dataType": "order_flow"})
	frame = readFrame(t, ws)
	assert.Equal(t, TypeError, frame["type"])
	assert.Equal(t, CodeInvalidRequest, frame["code"])
}
