// Package feed serves live status snapshots to browsers over websocket.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/ecu.go/pkg/framework"
)

// Feed defaults.
const (
	DefaultInterval = 100 * time.Millisecond
	ClientQueueSize = 16
)

// Source produces the snapshot to broadcast.
type Source func() interface{}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// Server broadcasts JSON snapshots to websocket clients.
type Server struct {
	Addr     string
	Interval time.Duration
	Source   Source

	lock    sync.Mutex
	clients map[*client]struct{}
	dropped atomic.Uint64
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, source Source) *Server {
	return &Server{
		Addr:     addr,
		Interval: DefaultInterval,
		Source:   source,
		clients:  make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.clients)
}

// Dropped returns the number of messages dropped for slow clients.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// Handler returns the HTTP handler: /ws is the feed, /snapshot the
// current snapshot as a plain JSON document.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.Handler(s.serve))
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
			glog.V(2).Infof("feed: snapshot: %v", err)
		}
	})
	return mux
}

func (s *Server) snapshot() interface{} {
	if s.Source == nil {
		return nil
	}
	return s.Source()
}

// Broadcast sends v to all clients. Clients not keeping up miss the message.
func (s *Server) Broadcast(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	for c := range s.clients {
		select {
		case c.out <- data:
		default:
			s.dropped.Add(1)
		}
	}
	return nil
}

func (s *Server) add(c *client) {
	s.lock.Lock()
	if s.clients == nil {
		s.clients = make(map[*client]struct{})
	}
	s.clients[c] = struct{}{}
	s.lock.Unlock()
}

func (s *Server) remove(c *client) {
	s.lock.Lock()
	delete(s.clients, c)
	s.lock.Unlock()
}

func (s *Server) serve(conn *websocket.Conn) {
	c := &client{conn: conn, out: make(chan []byte, ClientQueueSize)}
	if data, err := json.Marshal(s.snapshot()); err == nil {
		c.out <- data
	}
	s.add(c)
	defer s.remove(c)
	glog.V(2).Infof("feed: client %s connected", conn.Request().RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var msg string
		for {
			if err := websocket.Message.Receive(conn, &msg); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-closed:
			glog.V(2).Infof("feed: client %s disconnected", conn.Request().RemoteAddr)
			return
		case data := <-c.out:
			if err := websocket.Message.Send(conn, string(data)); err != nil {
				glog.V(2).Infof("feed: send: %v", err)
				return
			}
		}
	}
}

// Run implements framework.Runnable. It serves the feed and broadcasts
// the source every Interval.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{Addr: s.Addr, Handler: s.Handler()}
	if s.Interval > 0 && s.Source != nil {
		go s.broadcastLoop(ctx)
	}
	glog.Infof("feed: serving on %s", s.Addr)
	return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Broadcast(s.Source()); err != nil {
				glog.Errorf("feed: %v", err)
			}
		}
	}
}
