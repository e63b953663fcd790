package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/stevehiehn/capflow/internal/progress"
)

// sseClient represents a connected SSE client.
type sseClient struct {
	id     string
	events chan sseEvent
	done   chan struct{}
}

type sseEvent struct {
	name string
	data []byte
}

// SSEServer serves MCP over HTTP with an SSE stream per client. It is also a
// progress.Sink: execution events are broadcast to every connected client.
type SSEServer struct {
	srv     *Server
	logger  *slog.Logger
	mu      sync.Mutex
	clients map[string]*sseClient
	nextID  int
}

// NewSSEServer wraps srv with the SSE transport.
func NewSSEServer(srv *Server) *SSEServer {
	logger := srv.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SSEServer{srv: srv, logger: logger, clients: make(map[string]*sseClient)}
}

// Handler returns the HTTP routes.
func (s *SSEServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", s.handleSSE)
	mux.HandleFunc("/message", s.handleMessage)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe serves on addr until ctx is done.
func (s *SSEServer) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		hs.Close()
	}()
	s.logger.Info("sse server listening", "addr", addr)
	if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Emit broadcasts a progress event. Slow clients drop events.
func (s *SSEServer) Emit(e progress.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		select {
		case c.events <- sseEvent{name: "progress", data: data}:
		default:
			s.logger.Warn("sse client buffer full, dropping event", "client", id, "type", e.Type)
		}
	}
}

var _ progress.Sink = (*SSEServer)(nil)

func (s *SSEServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.mu.Lock()
	count := len(s.clients)
	s.mu.Unlock()
	json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"connectedAgents": count,
	})
}

func (s *SSEServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	s.mu.Lock()
	s.nextID++
	clientID := fmt.Sprintf("client-%d", s.nextID)
	client := &sseClient{
		id:     clientID,
		events: make(chan sseEvent, 64),
		done:   make(chan struct{}),
	}
	s.clients[clientID] = client
	s.mu.Unlock()

	s.logger.Debug("sse client connected", "client", clientID)

	// The message URL carries the client id so responses route back.
	messageURL := fmt.Sprintf("http://%s/message?sessionId=%s", r.Host, clientID)
	fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", messageURL)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
			close(client.done)
			s.logger.Debug("sse client disconnected", "client", clientID)
			return
		case ev := <-client.events:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, ev.data)
			flusher.Flush()
		}
	}
}

func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(&JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: -32700, Message: "Parse error"},
		})
		return
	}

	resp := s.srv.dispatch(r.Context(), req)
	resp.JSONRPC = "2.0"
	resp.ID = req.ID

	respData, _ := json.Marshal(resp)

	if sessionID != "" {
		s.mu.Lock()
		client, ok := s.clients[sessionID]
		s.mu.Unlock()
		if ok {
			select {
			case client.events <- sseEvent{name: "message", data: respData}:
			default:
				s.logger.Warn("sse client buffer full, dropping message", "client", sessionID)
			}
		}
	}

	// Also answer inline for request-response clients.
	w.Header().Set("Content-Type", "application/json")
	w.Write(respData)
}
