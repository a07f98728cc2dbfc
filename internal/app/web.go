package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/drive_computer/internal/config"
	"github.com/relabs-tech/drive_computer/internal/drive"
	"github.com/relabs-tech/drive_computer/internal/motor"
	"github.com/relabs-tech/drive_computer/internal/odometry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// driveView is the merged state of the status topics.
type driveView struct {
	Motor       *motor.Status            `json:"motor,omitempty"`
	Odometry    *odometry.State          `json:"odometry,omitempty"`
	Link        *drive.LinkHealth        `json:"link,omitempty"`
	Calibration *drive.CalibrationResult `json:"calibration,omitempty"`
	Updated     time.Time                `json:"updated"`
}

// statusFeed keeps the latest driveView and pushes it to websocket clients.
type statusFeed struct {
	topics *config.Config

	mu      sync.RWMutex
	view    driveView
	haveAny bool

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool

	writeMu sync.Mutex // gorilla allows one concurrent writer per conn
}

func newStatusFeed(cfg *config.Config) *statusFeed {
	return &statusFeed{topics: cfg, clients: make(map[*websocket.Conn]bool)}
}

// apply decodes a status message into the view.
func (f *statusFeed) apply(topic string, payload []byte, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	switch topic {
	case f.topics.TopicMotorStatus:
		var s motor.Status
		if err = json.Unmarshal(payload, &s); err == nil {
			f.view.Motor = &s
		}
	case f.topics.TopicOdometry:
		var s odometry.State
		if err = json.Unmarshal(payload, &s); err == nil {
			f.view.Odometry = &s
		}
	case f.topics.TopicLinkHealth:
		var s drive.LinkHealth
		if err = json.Unmarshal(payload, &s); err == nil {
			f.view.Link = &s
		}
	case f.topics.TopicCalibrationResult:
		var s drive.CalibrationResult
		if err = json.Unmarshal(payload, &s); err == nil {
			f.view.Calibration = &s
		}
	default:
		return fmt.Errorf("unexpected topic %s", topic)
	}
	if err != nil {
		return fmt.Errorf("%s unmarshal: %w", topic, err)
	}
	f.view.Updated = now
	f.haveAny = true
	return nil
}

func (f *statusFeed) snapshot() (driveView, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.view, f.haveAny
}

func (f *statusFeed) handleAPI(w http.ResponseWriter, r *http.Request) {
	view, ok := f.snapshot()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (f *statusFeed) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}

	f.clientsMu.Lock()
	f.clients[conn] = true
	f.clientsMu.Unlock()
	log.Printf("web: websocket client connected from %s", r.RemoteAddr)

	if view, ok := f.snapshot(); ok {
		f.send(conn, view)
	}

	// the feed is push-only; reads just detect the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.drop(conn)
			return
		}
	}
}

func (f *statusFeed) broadcast() {
	view, ok := f.snapshot()
	if !ok {
		return
	}
	f.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for c := range f.clients {
		conns = append(conns, c)
	}
	f.clientsMu.Unlock()

	for _, c := range conns {
		f.send(c, view)
	}
}

func (f *statusFeed) send(conn *websocket.Conn, view driveView) {
	f.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	err := conn.WriteJSON(view)
	f.writeMu.Unlock()
	if err != nil {
		log.Printf("web: websocket write error: %v", err)
		f.drop(conn)
	}
}

func (f *statusFeed) drop(conn *websocket.Conn) {
	f.clientsMu.Lock()
	if f.clients[conn] {
		delete(f.clients, conn)
		conn.Close()
	}
	f.clientsMu.Unlock()
}

// RunWeb serves the drive status over HTTP and websockets.
func RunWeb() error {
	cfg := config.Get()
	feed := newStatusFeed(cfg)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if err := feed.apply(msg.Topic(), msg.Payload(), time.Now()); err != nil {
			log.Printf("web: %v", err)
			return
		}
		feed.broadcast()
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, func(c mqtt.Client) {
		for _, topic := range []string{
			cfg.TopicMotorStatus,
			cfg.TopicOdometry,
			cfg.TopicLinkHealth,
			cfg.TopicCalibrationResult,
		} {
			subscribe(c, topic, handler)
		}
	})
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/drive", feed.handleAPI)
	mux.HandleFunc("/ws", feed.handleWS)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
