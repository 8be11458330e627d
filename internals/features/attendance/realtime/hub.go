package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"presensiku_backend/internals/features/attendance/geofence"
	"presensiku_backend/internals/observability"
)

/* =========================================================
   WIRE PROTOCOL
   ========================================================= */

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinSessionPayload struct {
	SessionID string    `json:"session_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Lat       *float64  `json:"lat"`
	Lon       *float64  `json:"lon"`
	RadiusM   *float64  `json:"radius_m"`
}

type studentScanPayload struct {
	SessionID string    `json:"session_id"`
	StudentID uuid.UUID `json:"student_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp string    `json:"timestamp"`
}

type closeSessionPayload struct {
	SessionID string `json:"session_id"`
}

/* =========================================================
   CLIENT - satu koneksi websocket
   ========================================================= */

// Write websocket tidak boleh konkuren per koneksi; mutex per client.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (cl *client) send(event string, data interface{}) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if err := cl.conn.WriteJSON(map[string]interface{}{"event": event, "data": data}); err != nil {
		log.Printf("[WARN] ws send %s: %v", event, err)
	}
}

/* =========================================================
   HUB - room-based broadcast
   ========================================================= */

// Hub mengelola room live-attendance. Trust model jalur ini: TIDAK ada
// signed token per scan - membership room + lokasi referensi room
// memegang peran trust yang setara untuk mode live yang lower-stakes.
type Hub struct {
	store         SessionStore
	flusher       *Flusher
	defaultRadius float64

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

func NewHub(store SessionStore, flusher *Flusher, defaultRadius float64) *Hub {
	return &Hub{
		store:         store,
		flusher:       flusher,
		defaultRadius: defaultRadius,
		rooms:         make(map[string]map[*client]struct{}),
	}
}

// Handler adalah read-loop satu koneksi websocket.
// Dipasang via websocket.New(hub.Handler).
func (h *Hub) Handler(conn *websocket.Conn) {
	cl := &client{conn: conn}
	defer func() {
		h.leaveAll(cl)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			cl.send("scan_error", map[string]string{"message": "Invalid message"})
			continue
		}

		switch env.Event {
		case "join_session":
			h.handleJoin(cl, env.Data)
		case "student_scan":
			h.handleScan(cl, env.Data)
		case "close_session":
			h.handleClose(cl, env.Data)
		default:
			cl.send("scan_error", map[string]string{"message": "Unknown event: " + env.Event})
		}
	}
}

func (h *Hub) handleJoin(cl *client, data json.RawMessage) {
	var p joinSessionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		cl.send("scan_error", map[string]string{"message": "Invalid join_session payload"})
		return
	}

	sess, ok := h.store.Get(p.SessionID)
	if !ok {
		// Teacher membuka room baru: bind subject + lokasi referensi.
		var ref *geofence.Reference
		if p.Lat != nil && p.Lon != nil {
			radius := h.defaultRadius
			if p.RadiusM != nil {
				radius = *p.RadiusM
			}
			ref = &geofence.Reference{Lat: *p.Lat, Lon: *p.Lon, RadiusM: radius}
		}
		sess = NewSession(p.SessionID, p.SubjectID, ref)
		h.store.Put(sess)
		log.Printf("[INFO] Live session opened: %s subject=%s geofence=%v",
			p.SessionID, p.SubjectID, ref != nil)
	}

	h.mu.Lock()
	if h.rooms[sess.ID] == nil {
		h.rooms[sess.ID] = make(map[*client]struct{})
	}
	h.rooms[sess.ID][cl] = struct{}{}
	h.mu.Unlock()

	cl.send("session_joined", map[string]string{"session_id": sess.ID})
}

func (h *Hub) handleScan(cl *client, data json.RawMessage) {
	var p studentScanPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" || p.StudentID == uuid.Nil {
		cl.send("scan_error", map[string]string{"message": "Invalid data"})
		return
	}

	sess, ok := h.store.Get(p.SessionID)
	if !ok {
		cl.send("scan_error", map[string]string{"message": "Invalid session ID"})
		return
	}

	// Geofence terhadap referensi room; tri-state - room tanpa lokasi
	// tidak pernah memproxy-flag siapa pun.
	outcome := geofence.Check(sess.Ref, p.Lat, p.Lon)

	scan := &Scan{
		StudentID: p.StudentID,
		Timestamp: p.Timestamp,
		Lat:       p.Lat,
		Lon:       p.Lon,
		Status:    ScanStatusPresent,
		DistanceM: outcome.DistanceM,
		IsProxy:   outcome.IsProxySuspected(),
	}
	if scan.IsProxy {
		scan.Status = ScanStatusProxy
	}

	// First scan per student menang; duplicate tetap di-broadcast untuk
	// visibilitas tapi tidak menimpa entry buffer.
	status := scan.Status
	if !sess.Add(scan) {
		status = ScanStatusDuplicate
	}
	observability.LiveScans.WithLabelValues(status).Inc()

	h.broadcast(sess.ID, "student_scanned", map[string]interface{}{
		"student_id": p.StudentID.String(),
		"timestamp":  p.Timestamp,
		"location":   map[string]float64{"lat": p.Lat, "lon": p.Lon},
		"status":     status,
		"distance":   outcome.DistanceM,
		"is_proxy":   scan.IsProxy,
	})

	cl.send("scan_ack", map[string]interface{}{
		"status":   status,
		"is_proxy": scan.IsProxy,
	})
}

func (h *Hub) handleClose(cl *client, data json.RawMessage) {
	var p closeSessionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		cl.send("scan_error", map[string]string{"message": "Invalid close_session payload"})
		return
	}

	// Flush segera; buffer tidak hilang kalau write gagal.
	written, err := h.flusher.FlushSession(context.Background(), p.SessionID)
	if err != nil {
		if errors.Is(err, ErrFlushInFlight) {
			// Flush periodik sedang jalan; snapshot-nya bisa melewatkan
			// scan yang baru masuk. Room tetap hidup, teacher retry.
			cl.send("scan_error", map[string]string{"message": "Flush in progress - retry close_session"})
			return
		}
		cl.send("scan_error", map[string]string{"message": "Flush failed - session kept open"})
		return
	}

	h.broadcast(p.SessionID, "session_closed", map[string]interface{}{
		"session_id":      p.SessionID,
		"records_written": written,
	})

	h.store.Delete(p.SessionID)
	h.mu.Lock()
	delete(h.rooms, p.SessionID)
	h.mu.Unlock()
	log.Printf("[INFO] Live session closed: %s (%d records)", p.SessionID, written)
}

func (h *Hub) broadcast(sessionID, event string, data interface{}) {
	h.mu.Lock()
	members := make([]*client, 0, len(h.rooms[sessionID]))
	for cl := range h.rooms[sessionID] {
		members = append(members, cl)
	}
	h.mu.Unlock()

	for _, cl := range members {
		cl.send(event, data)
	}
}

func (h *Hub) leaveAll(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, members := range h.rooms {
		if _, ok := members[cl]; ok {
			delete(members, cl)
			if len(members) == 0 {
				delete(h.rooms, id)
			}
		}
	}
}
