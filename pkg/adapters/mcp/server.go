package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/quarry"
	"github.com/aretw0/quarry/internal/logging"
	"github.com/aretw0/quarry/pkg/adapters/csvsource"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/runner"
	"github.com/aretw0/quarry/pkg/session"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TurnResponse is the structured result of every session tool.
type TurnResponse struct {
	SessionID   string                `json:"session_id" jsonschema_description:"Session to pass to the next call"`
	Phase       string                `json:"phase" jsonschema_description:"Active phase or form overlay"`
	Messages    []domain.Message      `json:"messages" jsonschema_description:"Transcript entries added by this call"`
	Suggestions []string              `json:"suggestions" jsonschema_description:"Quick replies for the active phase"`
	Completed   bool                  `json:"completed" jsonschema_description:"True once the query document is ready"`
	Document    *domain.QueryDocument `json:"document,omitempty" jsonschema_description:"The Final Query Document"`
}

// StartArgs are the arguments of start_session.
type StartArgs struct {
	SessionID string `json:"session_id,omitempty"`
}

// EventArgs are the arguments of send_event.
type EventArgs struct {
	SessionID string   `json:"session_id"`
	Type      string   `json:"type"`
	Text      string   `json:"text,omitempty"`
	Action    string   `json:"action,omitempty"`
	Source    string   `json:"source,omitempty"`
	Columns   string   `json:"columns,omitempty"`
	Column    string   `json:"column,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// QueryArgs are the arguments of get_query.
type QueryArgs struct {
	SessionID string `json:"session_id"`
}

// Server exposes a session Manager as an MCP Server.
type Server struct {
	manager   *session.Manager
	loader    runner.DatasetLoader
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDatasetLoader overrides how ingest sources are read. The default reads
// relative paths under the working directory and refuses URLs.
func WithDatasetLoader(loader runner.DatasetLoader) Option {
	return func(s *Server) {
		if loader != nil {
			s.loader = loader
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(mgr *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager:   mgr,
		loader:    csvsource.Sandbox{}.Load,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("quarry-mcp", strings.TrimSpace(quarry.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: start_session
	startTool := mcp.NewTool("start_session",
		mcp.WithDescription("Start a query-configuration dialogue, or resume it when the session already exists."),
		mcp.WithString("session_id", mcp.Description("Session to resume (optional, a new ID is generated otherwise)")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	// TOOL: send_event
	eventTool := mcp.NewTool("send_event",
		mcp.WithDescription("Apply one dialogue event. Use type=utterance with text for free-text replies."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID returned by start_session")),
		mcp.WithString("type", mcp.Required(),
			mcp.Enum("select_action", "ingest", "utterance", "drop_columns", "form_entry", "finish"),
			mcp.Description("Event type")),
		mcp.WithString("text", mcp.Description("Free text for utterance events")),
		mcp.WithString("action", mcp.Description("recommend, modify or whatif for select_action")),
		mcp.WithString("source", mcp.Description("CSV path or URL for ingest")),
		mcp.WithString("columns", mcp.Description("Comma-separated columns for drop_columns")),
		mcp.WithString("column", mcp.Description("Column for form_entry")),
		mcp.WithNumber("min", mcp.Description("Lower bound for form_entry")),
		mcp.WithNumber("max", mcp.Description("Upper bound for form_entry")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(eventTool, mcp.NewStructuredToolHandler(s.handleSendEvent))

	// TOOL: get_query
	queryTool := mcp.NewTool("get_query",
		mcp.WithDescription("Get the Final Query Document of a completed session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
	s.mcpServer.AddTool(queryTool, mcp.NewTypedToolHandler(s.handleGetQuery))
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args StartArgs) (TurnResponse, error) {
	id := args.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	sess, err := s.manager.LoadOrStart(ctx, id)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("start failed: %w", err)
	}
	return s.turn(sess, 0), nil
}

func (s *Server) handleSendEvent(ctx context.Context, request mcp.CallToolRequest, args EventArgs) (TurnResponse, error) {
	ev, err := s.toEvent(ctx, args)
	if err != nil {
		return TurnResponse{}, err
	}

	prev, next, err := s.manager.Apply(ctx, args.SessionID, ev)
	if err != nil {
		if domain.IsRejection(err) {
			s.logger.Debug("MCP send_event: rejected", "session_id", args.SessionID, "err", err)
		}
		return TurnResponse{}, fmt.Errorf("event rejected: %w", err)
	}
	return s.turn(next, len(prev.Transcript)), nil
}

func (s *Server) handleGetQuery(ctx context.Context, request mcp.CallToolRequest, args QueryArgs) (*mcp.CallToolResult, error) {
	sess, err := s.manager.Load(ctx, args.SessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}
	if sess.Document == nil {
		return mcp.NewToolResultError("query not ready: session is in " + sess.Current()), nil
	}
	data, err := json.MarshalIndent(sess.Document, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) toEvent(ctx context.Context, args EventArgs) (domain.Event, error) {
	ev := domain.Event{Type: domain.EventType(args.Type), Action: args.Action}
	switch ev.Type {
	case domain.EventUtterance:
		clean, err := runner.SanitizeInput(args.Text)
		if err != nil {
			s.logger.Warn("MCP send_event: Input rejected", "err", err, "size", len(args.Text))
			return ev, fmt.Errorf("input rejected: %w", err)
		}
		ev.Text = clean
	case domain.EventIngest:
		if args.Source == "" {
			return ev, errors.New("ingest requires source")
		}
		in, err := s.loader(ctx, args.Source)
		if err != nil {
			return ev, fmt.Errorf("could not load dataset: %w", err)
		}
		ev.Ingestion = &in
	case domain.EventDropColumns:
		for _, col := range strings.Split(args.Columns, ",") {
			if col = strings.TrimSpace(col); col != "" {
				ev.Columns = append(ev.Columns, col)
			}
		}
	case domain.EventFormEntry:
		ev.Entry = &domain.FormEntry{Column: args.Column, Min: args.Min, Max: args.Max}
	}
	return ev, nil
}

func (s *Server) turn(sess *domain.Session, seen int) TurnResponse {
	resp := TurnResponse{
		SessionID:   sess.ID,
		Phase:       sess.Current(),
		Messages:    sess.Transcript.Since(seen),
		Suggestions: s.manager.Dispatcher().Suggestions(sess),
		Completed:   sess.Completed(),
		Document:    sess.Document,
	}
	if resp.Messages == nil {
		resp.Messages = []domain.Message{}
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	return resp
}

func (s *Server) registerResources() {
	// EXPOSE: quarry://sessions
	s.mcpServer.AddResource(mcp.NewResource("quarry://sessions", "Stored Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.manager.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "quarry://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
