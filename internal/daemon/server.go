package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rigdocs/rigqa/internal/qa"
)

// connDeadline bounds one client connection. Generous because answer
// generation with continuations can run for minutes; it only reaps
// hung clients.
const connDeadline = 5 * time.Minute

// RequestHandler handles incoming RPC requests.
type RequestHandler interface {
	HandleAsk(ctx context.Context, params AskParams) (*qa.Response, error)
	HandleSearch(ctx context.Context, params SearchParams) (*SearchOutput, error)
	GetStatus() StatusResult
}

// Server listens on a Unix socket and handles RPC requests.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string) (*Server, error) {
	return &Server{
		socketPath: socketPath,
	}, nil
}

// SetHandler sets the request handler for ask and search operations.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until the context is
// cancelled. The socket file is removed on exit.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A previous daemon may have died without removing its socket.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.listener = listener
	s.started = time.Now()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	slog.Info("Server listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("Accept error", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	// Wait for active connections to finish
	s.wg.Wait()

	return ctx.Err()
}

// handleConnection processes a single client connection. One request
// per connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(connDeadline)); err != nil {
		slog.Warn("Failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}

	resp := s.handleRequest(ctx, req)
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())

	case MethodAsk:
		return s.handleAsk(ctx, req)

	case MethodSearch:
		return s.handleSearch(ctx, req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleAsk processes an ask request.
func (s *Server) handleAsk(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no request handler configured")
	}

	var params AskParams
	if errResp, ok := decodeParams(req, &params); !ok {
		return errResp
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	resp, err := s.handler.HandleAsk(ctx, params)
	if err != nil {
		return NewErrorResponse(req.ID, queryErrorCode(err), err.Error())
	}

	return NewSuccessResponse(req.ID, resp)
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no request handler configured")
	}

	var params SearchParams
	if errResp, ok := decodeParams(req, &params); !ok {
		return errResp
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	out, err := s.handler.HandleSearch(ctx, params)
	if err != nil {
		return NewErrorResponse(req.ID, queryErrorCode(err), err.Error())
	}

	return NewSuccessResponse(req.ID, out)
}

// decodeParams round-trips request params through JSON into the typed
// form. Returns the error response to send when decoding fails.
func decodeParams(req Request, into any) (Response, bool) {
	data, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
	}
	if err := json.Unmarshal(data, into); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
	}
	return Response{}, true
}

// queryErrorCode maps a handler error to its wire code.
func queryErrorCode(err error) int {
	if errors.Is(err, ErrNoIndex) {
		return ErrCodeNoIndex
	}
	return ErrCodeQueryFailed
}

// getStatus returns the current server status. Without a handler only
// liveness is known.
func (s *Server) getStatus() StatusResult {
	if s.handler != nil {
		return s.handler.GetStatus()
	}
	return StatusResult{
		Running:         true,
		PID:             os.Getpid(),
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		Embedder:        "unavailable",
		EmbedderStatus:  "unavailable",
		Generator:       "unavailable",
		GeneratorStatus: "unavailable",
	}
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
