package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jhoicas/magazzino-sync/internal/application/syncengine"
	"github.com/jhoicas/magazzino-sync/internal/domain"
	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

const (
	// Tiempo máximo para escribir una trama.
	writeWait = 10 * time.Second

	// Tiempo máximo sin recibir pong.
	pongWait = 60 * time.Second

	// Debe ser menor que pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Un inventario completo puede ser grande.
	maxMessageSize = 8 << 20

	// Espera máxima para entregar la desconexión si nadie lee Events.
	disconnectNotifyWait = 5 * time.Second
)

var _ syncengine.Channel = (*Client)(nil)

var errSessionClosed = errors.New("sesión cerrada")

// Client canal WebSocket del cliente hacia la autoridad.
type Client struct {
	url    string
	token  string
	dialer *websocket.Dialer
	log    *logger.Logger
	events chan syncengine.Event

	notifyWait time.Duration
	pumps      sync.WaitGroup

	mu    sync.Mutex
	gen   uint64
	state syncengine.ConnState
	sess  *session
}

// session una conexión concreta; muere con ella.
type session struct {
	conn  *websocket.Conn
	gen   uint64
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	local atomic.Bool // cerrada por Close, no por la red
}

func (s *session) stop() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// NewClient construye el canal. token se envía como Authorization: Bearer si no está vacío.
func NewClient(url, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		url:   url,
		token: token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		log:        log.Component("realtime"),
		events:     make(chan syncengine.Event, 64),
		notifyWait: disconnectNotifyWait,
		state:      syncengine.StateDisconnected,
	}
}

// Connect marca la autoridad y arranca las bombas de lectura y escritura.
func (c *Client) Connect(ctx context.Context) (uint64, error) {
	c.setState(syncengine.StateConnecting)
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		c.setState(syncengine.StateDisconnected)
		return 0, &domain.SyncTransportError{Op: "connect", Err: err}
	}

	c.mu.Lock()
	if c.sess != nil {
		c.sess.local.Store(true)
		c.sess.stop()
	}
	c.gen++
	sess := &session{
		conn: conn,
		gen:  c.gen,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
	c.sess = sess
	c.state = syncengine.StateConnected
	c.mu.Unlock()

	c.pumps.Add(2)
	go c.writePump(sess)
	go c.readPump(sess)
	return sess.gen, nil
}

// SendMovement encola add-movement. La entrega real la confirma el eco movement-added.
func (c *Client) SendMovement(ctx context.Context, m entity.Movement) error {
	msg, err := Encode(EventAddMovement, MovementEnvelope{Movement: ToMovementPayload(m)})
	if err != nil {
		return err
	}
	return c.write(ctx, "add-movement", msg)
}

// RequestInventory pide un inventory-updated completo.
func (c *Client) RequestInventory(ctx context.Context) error {
	msg, err := Encode(EventRequestInventory, nil)
	if err != nil {
		return err
	}
	return c.write(ctx, "request-inventory", msg)
}

func (c *Client) write(ctx context.Context, op string, msg []byte) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return &domain.SyncTransportError{Op: op}
	}
	select {
	case sess.send <- msg:
		return nil
	case <-sess.done:
		return &domain.SyncTransportError{Op: op}
	case <-ctx.Done():
		return &domain.SyncTransportError{Op: op, Err: ctx.Err()}
	}
}

// Events eventos entrantes de todas las conexiones, marcados con su número.
func (c *Client) Events() <-chan syncengine.Event { return c.events }

// State estado actual del canal.
func (c *Client) State() syncengine.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close cierra la conexión vigente. Se puede volver a llamar a Connect.
func (c *Client) Close() error {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.state = syncengine.StateDisconnected
	c.mu.Unlock()
	if sess != nil {
		sess.local.Store(true)
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		sess.stop()
	}
	return nil
}

func (c *Client) setState(st syncengine.ConnState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

func (c *Client) readPump(sess *session) {
	defer c.pumps.Done()
	conn := sess.conn
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	var cause error
read:
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			cause = err
			break
		}
		ev, ok := c.translate(raw)
		if !ok {
			continue
		}
		ev.Conn = sess.gen
		select {
		case c.events <- ev:
		case <-sess.done:
			cause = errSessionClosed
			break read
		}
	}

	sess.stop()
	if sess.local.Load() {
		return
	}
	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
		c.state = syncengine.StateDisconnected
	}
	c.mu.Unlock()
	if websocket.IsUnexpectedCloseError(cause, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.log.Warn().Err(cause).Uint64("conn", sess.gen).Msg("conexión con la autoridad perdida")
	}
	ev := syncengine.Event{
		Kind: syncengine.EventDisconnected,
		Conn: sess.gen,
		Err:  &domain.SyncTransportError{Op: "read", Err: cause},
	}
	timer := time.NewTimer(c.notifyWait)
	defer timer.Stop()
	select {
	case c.events <- ev:
	case <-timer.C:
		c.log.Error().Uint64("conn", sess.gen).Msg("desconexión no entregada: nadie consume los eventos")
	}
}

func (c *Client) writePump(sess *session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.stop()
		c.pumps.Done()
	}()
	for {
		select {
		case <-sess.done:
			return
		case msg := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Warn().Err(err).Uint64("conn", sess.gen).Msg("no se pudo escribir en el canal")
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// translate convierte la trama en un evento del motor. Tramas desconocidas o mal formadas se descartan.
func (c *Client) translate(raw []byte) (syncengine.Event, bool) {
	env, err := Decode(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("trama descartada")
		return syncengine.Event{}, false
	}
	switch env.Event {
	case EventInventoryUpdated:
		var p InventoryPayload
		if err := DecodeData(env, &p); err != nil {
			c.log.Warn().Err(err).Msg("trama descartada")
			return syncengine.Event{}, false
		}
		return syncengine.Event{Kind: syncengine.EventInventoryUpdated, Snapshot: p.ToSnapshot()}, true
	case EventMovementAdded:
		var p MovementEnvelope
		if err := DecodeData(env, &p); err != nil {
			c.log.Warn().Err(err).Msg("trama descartada")
			return syncengine.Event{}, false
		}
		return syncengine.Event{Kind: syncengine.EventMovementAdded, Movement: p.Movement.ToEntity()}, true
	case EventMovementDeleted, EventMovementRejected:
		var p IDPayload
		if err := DecodeData(env, &p); err != nil {
			c.log.Warn().Err(err).Msg("trama descartada")
			return syncengine.Event{}, false
		}
		kind := syncengine.EventMovementDeleted
		if env.Event == EventMovementRejected {
			kind = syncengine.EventMovementRejected
		}
		return syncengine.Event{Kind: kind, ID: p.ID, Reason: p.Reason}, true
	}
	c.log.Debug().Str("event", env.Event).Msg("evento desconocido ignorado")
	return syncengine.Event{}, false
}
