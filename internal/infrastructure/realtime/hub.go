package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jhoicas/magazzino-sync/internal/domain/entity"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Los clientes de magazzino no son navegadores; el acceso lo controla el token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler lo que hace la autoridad con las tramas de un cliente.
type Handler interface {
	OnAddMovement(ctx context.Context, p *Peer, m entity.Movement)
	OnRequestInventory(ctx context.Context, p *Peer)
}

// Peer un cliente conectado a la autoridad.
type Peer struct {
	ID       string
	ClientID string

	hub    *Hub
	conn   *websocket.Conn
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Send encola un evento para este cliente. Devuelve false si el búfer está lleno o el cliente se fue.
func (p *Peer) Send(event string, data any) bool {
	msg, err := Encode(event, data)
	if err != nil {
		p.hub.log.Error().Err(err).Str("event", event).Msg("no se pudo codificar el evento")
		return false
	}
	return p.enqueue(msg)
}

func (p *Peer) enqueue(msg []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.send <- msg:
		return true
	default:
		return false
	}
}

func (p *Peer) closeSend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

// Hub conjunto de clientes conectados a la autoridad.
type Hub struct {
	mu      sync.RWMutex
	peers   map[string]*Peer
	handler Handler
	log     *logger.Logger
}

// NewHub construye el hub. handler recibe las tramas de los clientes.
func NewHub(handler Handler, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		peers:   make(map[string]*Peer),
		handler: handler,
		log:     log.Component("hub"),
	}
}

// SetHandler permite construir hub y handler en cualquier orden.
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Len clientes conectados.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Broadcast envía el evento a todos los clientes. Devuelve a cuántos se encoló.
func (h *Hub) Broadcast(event string, data any) int {
	msg, err := Encode(event, data)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("no se pudo codificar el evento")
		return 0
	}
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	n := 0
	for _, p := range peers {
		if p.enqueue(msg) {
			n++
			continue
		}
		h.log.Warn().Str("peer", p.ID).Str("client_id", p.ClientID).Msg("búfer lleno, cliente desconectado")
		h.unregister(p)
	}
	return n
}

// ServeWS actualiza la petición a WebSocket y registra al cliente autenticado.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, clientID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade websocket")
		return
	}
	p := &Peer{
		ID:       uuid.NewString(),
		ClientID: clientID,
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
	}
	h.mu.Lock()
	h.peers[p.ID] = p
	total := len(h.peers)
	h.mu.Unlock()
	h.log.Info().Str("peer", p.ID).Str("client_id", clientID).Int("peers", total).Msg("cliente conectado")

	go h.writePump(p)
	go h.readPump(p)
}

func (h *Hub) unregister(p *Peer) {
	h.mu.Lock()
	_, ok := h.peers[p.ID]
	delete(h.peers, p.ID)
	h.mu.Unlock()
	if ok {
		p.closeSend()
		h.log.Info().Str("peer", p.ID).Str("client_id", p.ClientID).Msg("cliente desconectado")
	}
}

func (h *Hub) currentHandler() Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.handler
}

func (h *Hub) readPump(p *Peer) {
	defer func() {
		h.unregister(p)
		_ = p.conn.Close()
	}()
	p.conn.SetReadLimit(maxMessageSize)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error { return p.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, raw, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("peer", p.ID).Msg("error de lectura")
			}
			return
		}
		h.dispatch(p, raw)
	}
}

func (h *Hub) dispatch(p *Peer, raw []byte) {
	env, err := Decode(raw)
	if err != nil {
		h.log.Warn().Err(err).Str("peer", p.ID).Msg("trama descartada")
		return
	}
	handler := h.currentHandler()
	if handler == nil {
		return
	}
	ctx := context.Background()
	switch env.Event {
	case EventAddMovement:
		var in MovementEnvelope
		if err := DecodeData(env, &in); err != nil {
			h.log.Warn().Err(err).Str("peer", p.ID).Msg("add-movement mal formado")
			return
		}
		handler.OnAddMovement(ctx, p, in.Movement.ToEntity())
	case EventRequestInventory:
		handler.OnRequestInventory(ctx, p)
	default:
		h.log.Debug().Str("event", env.Event).Str("peer", p.ID).Msg("evento desconocido ignorado")
	}
}

func (h *Hub) writePump(p *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Shutdown desconecta a todos los clientes.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*Peer)
	h.mu.Unlock()
	for _, p := range peers {
		p.closeSend()
	}
}
