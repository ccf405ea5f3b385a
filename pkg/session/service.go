package session

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/opentrade/tradefleet/api/pb"
	"github.com/opentrade/tradefleet/pkg/events"
	"github.com/opentrade/tradefleet/pkg/log"
	"github.com/opentrade/tradefleet/pkg/metrics"
	"github.com/opentrade/tradefleet/pkg/storage"
	"github.com/opentrade/tradefleet/pkg/types"
)

// State is the service state machine
type State string

const (
	StateReady    State = "READY"
	StateActive   State = "ACTIVE"
	StateDraining State = "DRAINING"
)

// DefaultDrainTimeout bounds the cleanup phase of a drain
const DefaultDrainTimeout = 30 * time.Second

// Upstream maintains the exchange-worker connection for the bound session
type Upstream interface {
	Bind(ctx context.Context, s *types.Session)
	Release(ctx context.Context)
	Status() types.SimulatorStatus
}

// Config holds session service settings
type Config struct {
	SessionTimeout     time.Duration
	ExtensionThreshold time.Duration
	HeartbeatInterval  time.Duration
	DrainTimeout       time.Duration

	ReadyFilePath      string
	ActiveLockFilePath string
	ResetOnStartup     bool

	Clock func() time.Time
}

// Service is the session singleton: it serves exactly one user's session
// and advertises readiness (via the ready file) only while unbound.
type Service struct {
	cfg      Config
	store    storage.Store
	auth     Authenticator
	upstream Upstream
	broker   *events.Broker
	upgrader websocket.Upgrader

	mu       sync.Mutex
	state    State
	sess     *types.Session
	conns    map[string]*deviceConn // keyed by device id
	bindStop context.CancelFunc
}

// NewService creates the service in READY state. With ResetOnStartup set,
// stale ready/active files from a previous crash are cleared first.
func NewService(store storage.Store, auth Authenticator, upstream Upstream, broker *events.Broker, cfg Config) (*Service, error) {
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = time.Hour
	}
	if cfg.ExtensionThreshold <= 0 {
		cfg.ExtensionThreshold = 30 * time.Minute
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	s := &Service{
		cfg:      cfg,
		store:    store,
		auth:     auth,
		upstream: upstream,
		broker:   broker,
		state:    StateReady,
		conns:    make(map[string]*deviceConn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	if cfg.ResetOnStartup {
		_ = os.Remove(cfg.ActiveLockFilePath)
	}
	if err := s.advertiseReady(); err != nil {
		return nil, err
	}
	metrics.SessionsActive.Set(0)
	return s, nil
}

// State returns the current service state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Session returns a snapshot of the bound session, or nil
func (s *Service) Session() *types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil
	}
	cp := *s.sess
	return &cp
}

// ServeWS is the WebSocket endpoint. Connect query: ?token=<jwt>&deviceId=<id>.
func (s *Service) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	deviceID := r.URL.Query().Get("deviceId")
	if token == "" || deviceID == "" {
		httpError(w, http.StatusBadRequest, "token and deviceId are required")
		return
	}

	userID, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	// Admission is decided before the upgrade so the router sees a plain
	// 503 and retries another instance.
	s.mu.Lock()
	switch s.state {
	case StateReady:
	case StateActive:
		if s.sess.UserID != userID {
			s.mu.Unlock()
			httpError(w, http.StatusServiceUnavailable, "instance serving another user")
			return
		}
	default:
		s.mu.Unlock()
		httpError(w, http.StatusServiceUnavailable, "instance draining")
		return
	}
	s.mu.Unlock()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := newDeviceConn(deviceID, uuid.New().String(), ws)
	go conn.writeLoop()

	sess, err := s.attach(userID, conn)
	if err != nil {
		conn.closeWith(websocket.ClosePolicyViolation, err.Error())
		return
	}

	conn.sendFrame(TypeConnected, &ConnectedFrame{
		Type:      TypeConnected,
		ClientID:  conn.clientID,
		DeviceID:  conn.deviceID,
		SessionID: sess.ID,
	})

	s.readLoop(conn)
}

// attach binds the session if needed and registers the device connection.
// A second connect from the same device replaces the first: the incumbent
// gets a session_replaced frame and a 1000 close.
func (s *Service) attach(userID string, conn *deviceConn) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateReady {
		if err := s.bindLocked(userID, conn.deviceID); err != nil {
			return nil, err
		}
	}

	if old, ok := s.conns[conn.deviceID]; ok {
		old.closeWith(websocket.CloseNormalClosure, ReasonReplaced,
			marshalFrame(&SessionReplacedFrame{Type: TypeSessionReplaced}))
		s.publish(events.EventDeviceReplaced, map[string]string{"device_id": conn.deviceID})
		log.WithDeviceID(conn.deviceID).Info().Msg("device connection replaced")
	} else {
		s.publish(events.EventDeviceConnected, map[string]string{"device_id": conn.deviceID})
	}
	s.conns[conn.deviceID] = conn
	metrics.WSConnections.Set(float64(len(s.conns)))

	cp := *s.sess
	return &cp, nil
}

// bindLocked transitions READY → ACTIVE. Caller holds the mutex.
func (s *Service) bindLocked(userID, deviceID string) error {
	now := s.cfg.Clock()
	sess := &types.Session{
		ID:         uuid.New().String(),
		UserID:     userID,
		DeviceID:   deviceID,
		Status:     types.SessionActive,
		CreatedAt:  now,
		LastActive: now,
		ExpiresAt:  now.Add(s.cfg.SessionTimeout),
		Metadata:   types.SessionMetadata{Quality: types.QualityGood, SimulatorStatus: types.SimulatorChecking},
	}
	if err := s.store.CreateSession(sess); err != nil {
		return err
	}

	s.sess = sess
	s.state = StateActive
	s.withdrawReady(sess.ID)
	metrics.SessionsActive.Set(1)
	s.publish(events.EventSessionBound, map[string]string{"session_id": sess.ID, "user_id": userID})

	// Connect to the exchange worker in the background; the client never
	// waits on it. Status changes flow back through SimulatorStatusChanged.
	ctx, cancel := context.WithCancel(context.Background())
	s.bindStop = cancel
	snapshot := *sess
	go s.upstream.Bind(ctx, &snapshot)

	log.WithSessionID(sess.ID).Info().Str("user_id", userID).Msg("session bound")
	return nil
}

// readLoop processes inbound frames for one device until it disconnects
func (s *Service) readLoop(conn *deviceConn) {
	logger := log.WithDeviceID(conn.deviceID)
	defer s.detach(conn)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("websocket read ended")
			return
		}
		conn.touch()

		if !conn.limiter.Allow() {
			conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeRateLimited, Message: "rate limit exceeded"})
			continue
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			metrics.WSMessagesTotal.WithLabelValues("in", "invalid").Inc()
			conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: err.Error()})
			continue
		}
		metrics.WSMessagesTotal.WithLabelValues("in", env.Type).Inc()

		handler, ok := inboundHandlers[env.Type]
		if !ok {
			conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: "unknown message type: " + env.Type})
			continue
		}
		handler(s, conn, env, logger)
	}
}

// detach unregisters a device. When the last device leaves an ACTIVE
// session, the service drains.
func (s *Service) detach(conn *deviceConn) {
	conn.abort()

	s.mu.Lock()
	if s.conns[conn.deviceID] == conn {
		delete(s.conns, conn.deviceID)
	}
	remaining := len(s.conns)
	active := s.state == StateActive
	metrics.WSConnections.Set(float64(remaining))
	s.mu.Unlock()

	if remaining == 0 && active {
		s.Drain(ReasonServerShutdown)
	}
}

// inboundHandlers maps frame type to handler. Unknown types never reach
// here; the read loop answers those with an error frame.
var inboundHandlers = map[string]func(*Service, *deviceConn, *Envelope, zerolog.Logger){
	TypeHeartbeat:   (*Service).handleHeartbeat,
	TypeQuality:     (*Service).handleQuality,
	TypeSubscribe:   (*Service).handleSubscribe,
	TypeUnsubscribe: (*Service).handleUnsubscribe,
	TypeReconnect:   (*Service).handleReconnect,
	TypeSessionInfo: (*Service).handleSessionInfo,
	TypeStopSession: (*Service).handleStopSession,
}

func (s *Service) handleHeartbeat(conn *deviceConn, env *Envelope, logger zerolog.Logger) {
	var f HeartbeatFrame
	if err := env.Payload(&f); err != nil {
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: "malformed heartbeat"})
		return
	}

	now := s.cfg.Clock()
	latency := now.UnixMilli() - f.Timestamp
	if latency < 0 {
		latency = 0
	}
	metrics.HeartbeatLatency.Observe(float64(latency) / 1000)

	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return
	}
	if now.After(s.sess.ExpiresAt) {
		s.sess.Status = types.SessionExpired
		_ = s.store.UpdateSession(s.sess)
		s.mu.Unlock()
		logger.Warn().Msg("heartbeat after expiry, closing session")
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeSessionExpired, Message: "session expired"})
		s.Drain(ReasonSessionStopped)
		return
	}
	s.sess.LastActive = now
	s.sess.Metadata.HeartbeatLatency = latency
	// Sliding expiry: extend only once the session is inside the
	// extension threshold, so the row is not rewritten on every beat.
	if s.sess.ExpiresAt.Sub(now) < s.cfg.ExtensionThreshold {
		s.sess.ExpiresAt = now.Add(s.cfg.SessionTimeout)
	}
	if err := s.store.UpdateSession(s.sess); err != nil {
		logger.Error().Err(err).Msg("failed to persist heartbeat")
	}
	s.mu.Unlock()

	conn.sendFrame(TypeHeartbeatAck, &HeartbeatAckFrame{
		Type:            TypeHeartbeatAck,
		Timestamp:       now.UnixMilli(),
		ClientTimestamp: f.Timestamp,
		Latency:         latency,
	})
}

func (s *Service) handleQuality(conn *deviceConn, env *Envelope, logger zerolog.Logger) {
	var f QualityFrame
	if err := env.Payload(&f); err != nil {
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: "malformed connection_quality"})
		return
	}

	quality, reconnect := ComputeQuality(f.LatencyMs, f.MissedHeartbeats)

	s.mu.Lock()
	if s.sess != nil {
		s.sess.Metadata.Quality = quality
		s.sess.Metadata.HeartbeatLatency = f.LatencyMs
		s.sess.Metadata.MissedHeartbeats = f.MissedHeartbeats
		if err := s.store.UpdateSession(s.sess); err != nil {
			logger.Error().Err(err).Msg("failed to persist connection quality")
		}
	}
	s.mu.Unlock()

	conn.sendFrame(TypeQualityUpdate, &QualityUpdateFrame{
		Type:                 TypeQualityUpdate,
		Quality:              string(quality),
		ReconnectRecommended: reconnect,
	})
}

func (s *Service) handleSubscribe(conn *deviceConn, env *Envelope, _ zerolog.Logger) {
	var f SubscribeFrame
	if err := env.Payload(&f); err != nil {
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: "malformed subscribe"})
		return
	}
	conn.setSymbols(f.Symbols)
}

func (s *Service) handleUnsubscribe(conn *deviceConn, env *Envelope, _ zerolog.Logger) {
	var f UnsubscribeFrame
	if err := env.Payload(&f); err != nil {
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: "malformed unsubscribe"})
		return
	}
	if f.DataType != "" && f.DataType != TypeExchangeData {
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: "unknown dataType"})
		return
	}
	conn.mute()
}

func (s *Service) handleReconnect(conn *deviceConn, env *Envelope, logger zerolog.Logger) {
	var f ReconnectFrame
	if err := env.Payload(&f); err != nil {
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidRequest, Message: "malformed reconnect"})
		return
	}

	if _, err := s.auth.Authenticate(context.Background(), f.Token); err != nil {
		conn.closeWith(websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	s.mu.Lock()
	if s.sess == nil || s.sess.ID != f.SessionID || s.sess.DeviceID != f.DeviceID {
		s.mu.Unlock()
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeInvalidDevice, Message: "device does not match session"})
		return
	}
	now := s.cfg.Clock()
	s.sess.Metadata.ReconnectCount++
	s.sess.LastActive = now
	if err := s.store.UpdateSession(s.sess); err != nil {
		logger.Error().Err(err).Msg("failed to persist reconnect")
	}
	snapshot := *s.sess
	s.mu.Unlock()

	logger.Info().Int("attempt", f.Attempt).Int("reconnect_count", snapshot.Metadata.ReconnectCount).Msg("session reconnect")
	conn.sendFrame(TypeSessionInfo, &SessionInfoFrame{
		Type:            TypeSessionInfo,
		DeviceID:        snapshot.DeviceID,
		ExpiresAt:       snapshot.ExpiresAt.UnixMilli(),
		SimulatorStatus: string(s.upstream.Status()),
	})
}

func (s *Service) handleSessionInfo(conn *deviceConn, env *Envelope, _ zerolog.Logger) {
	var f RequestFrame
	_ = env.Payload(&f)

	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		conn.sendFrame(TypeError, &ErrorFrame{Type: TypeError, Code: CodeNotReady, Message: "no session bound", RequestID: f.RequestID})
		return
	}
	snapshot := *s.sess
	s.mu.Unlock()

	conn.sendFrame(TypeSessionInfo, &SessionInfoFrame{
		Type:            TypeSessionInfo,
		RequestID:       f.RequestID,
		DeviceID:        snapshot.DeviceID,
		ExpiresAt:       snapshot.ExpiresAt.UnixMilli(),
		SimulatorStatus: string(s.upstream.Status()),
	})
}

func (s *Service) handleStopSession(conn *deviceConn, env *Envelope, logger zerolog.Logger) {
	logger.Info().Msg("stop requested by client")
	go s.Drain(ReasonSessionStopped)
}

// DeliverUpdate fans one exchange update out to every connected device,
// filtered by each device's subscription. Devices whose send buffer is full
// are collected into a dead set and dropped after the sweep.
func (s *Service) DeliverUpdate(u *pb.MarketDataUpdate) {
	s.mu.Lock()
	conns := make([]*deviceConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var dead []*deviceConn
	for _, c := range conns {
		if !c.wantsData() {
			continue
		}
		data := u.GetData()
		filtered := make([]*pb.SymbolData, 0, len(data))
		for _, d := range data {
			if c.wantsSymbol(d.GetSymbol()) {
				filtered = append(filtered, d)
			}
		}
		if len(filtered) == 0 {
			continue
		}
		ok := c.sendFrame(TypeExchangeData, &ExchangeDataFrame{
			Type:      TypeExchangeData,
			Timestamp: u.GetTimestamp(),
			Data:      filtered,
		})
		if !ok {
			dead = append(dead, c)
		}
	}

	for _, c := range dead {
		log.WithDeviceID(c.deviceID).Warn().Msg("dropping unresponsive device connection")
		s.detachQuiet(c)
	}
}

// SimulatorStatusChanged records the new upstream status and pushes a
// session_info frame to every device.
func (s *Service) SimulatorStatusChanged(status types.SimulatorStatus) {
	s.mu.Lock()
	if s.sess == nil {
		s.mu.Unlock()
		return
	}
	s.sess.Metadata.SimulatorStatus = status
	_ = s.store.UpdateSession(s.sess)
	snapshot := *s.sess
	conns := make([]*deviceConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	frame := &SessionInfoFrame{
		Type:            TypeSessionInfo,
		DeviceID:        snapshot.DeviceID,
		ExpiresAt:       snapshot.ExpiresAt.UnixMilli(),
		SimulatorStatus: string(status),
	}
	for _, c := range conns {
		c.sendFrame(TypeSessionInfo, frame)
	}
}

// detachQuiet removes a dead connection without triggering a drain check;
// the read loop's detach will still run when the socket errors out.
func (s *Service) detachQuiet(conn *deviceConn) {
	conn.abort()
	s.mu.Lock()
	if s.conns[conn.deviceID] == conn {
		delete(s.conns, conn.deviceID)
	}
	metrics.WSConnections.Set(float64(len(s.conns)))
	s.mu.Unlock()
}

// Drain tears the session down: ACTIVE → DRAINING → READY. Every device is
// closed with code 1000 and the given reason, the upstream connection is
// released within the drain timeout, and the readiness advertisement
// returns.
func (s *Service) Drain(reason string) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return
	}
	s.state = StateDraining
	sess := s.sess
	conns := make([]*deviceConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*deviceConn)
	bindStop := s.bindStop
	s.bindStop = nil
	s.mu.Unlock()

	logger := log.WithSessionID(sess.ID)
	logger.Info().Str("reason", reason).Int("devices", len(conns)).Msg("draining session")

	shutdownFrame := marshalFrame(&ServerShutdownFrame{Type: TypeServerShutdown, Reason: reason})
	for _, c := range conns {
		c.closeWith(websocket.CloseNormalClosure, reason, shutdownFrame)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
	defer cancel()
	// Release first, while the binding is still live, so the simulator stop
	// RPC does not race the stream teardown. bindStop afterwards is cleanup.
	s.upstream.Release(ctx)
	if bindStop != nil {
		bindStop()
	}

	s.mu.Lock()
	if sess.Status != types.SessionExpired {
		sess.Status = types.SessionInactive
	}
	if err := s.store.UpdateSession(sess); err != nil {
		logger.Error().Err(err).Msg("failed to persist session teardown")
	}
	eventType := events.EventSessionDrained
	if sess.Status == types.SessionExpired {
		eventType = events.EventSessionExpired
	}
	s.sess = nil
	s.state = StateReady
	metrics.SessionsActive.Set(0)
	metrics.WSConnections.Set(0)
	if err := s.advertiseReady(); err != nil {
		logger.Error().Err(err).Msg("failed to re-advertise readiness")
	}
	s.mu.Unlock()

	s.publish(eventType, map[string]string{"session_id": sess.ID, "reason": reason})
	logger.Info().Msg("session drained, instance ready")
}

// ExpiryWatch closes the session when it passes its expiry with no
// heartbeat to notice. Runs until ctx is cancelled.
func (s *Service) ExpiryWatch(ctx context.Context) {
	interval := s.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			expired := s.state == StateActive && s.cfg.Clock().After(s.sess.ExpiresAt)
			if expired {
				s.sess.Status = types.SessionExpired
				_ = s.store.UpdateSession(s.sess)
			}
			s.mu.Unlock()
			if expired {
				s.Drain(ReasonSessionStopped)
			}
		case <-ctx.Done():
			return
		}
	}
}

// ComputeQuality derives connection quality from the client's latest report
func ComputeQuality(latencyMs int64, missedHeartbeats int) (types.ConnectionQuality, bool) {
	switch {
	case missedHeartbeats >= 3:
		return types.QualityPoor, true
	case missedHeartbeats > 0 || latencyMs > 500:
		return types.QualityDegraded, false
	default:
		return types.QualityGood, false
	}
}

// advertiseReady writes the ready file and clears the active lock
func (s *Service) advertiseReady() error {
	_ = os.Remove(s.cfg.ActiveLockFilePath)
	if s.cfg.ReadyFilePath == "" {
		return nil
	}
	return os.WriteFile(s.cfg.ReadyFilePath, []byte("ready\n"), 0o644)
}

// withdrawReady removes the ready file and records the bound session in the
// active lock
func (s *Service) withdrawReady(sessionID string) {
	if s.cfg.ReadyFilePath != "" {
		_ = os.Remove(s.cfg.ReadyFilePath)
	}
	if s.cfg.ActiveLockFilePath != "" {
		_ = os.WriteFile(s.cfg.ActiveLockFilePath, []byte(sessionID+"\n"), 0o644)
	}
}

// Ready reports whether the instance can accept a new user; wired into the
// readiness probe.
func (s *Service) Ready() (string, bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		return "session", true, "ready"
	}
	return "session", false, string(s.state)
}

func (s *Service) publish(t events.EventType, meta map[string]string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{Type: t, Metadata: meta})
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": msg})
}
