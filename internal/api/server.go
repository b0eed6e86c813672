package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classsync/pkg/interfaces"
	"classsync/pkg/types"
)

// Registry is the slice of the room registry the API needs for health
// reporting, kept as a local interface to avoid coupling to the
// implementation.
type Registry interface {
	Stats() map[string]int
}

// Server is the REST hydration surface: clients fetch the classroom record
// and bounded chat history here before the live channel takes over, and
// again on reconnect. No business logic lives here, only HTTP handling and
// JSON serialization.
type Server struct {
	store            interfaces.ClassroomStore
	registry         Registry
	chatHistoryLimit int
	router           *http.ServeMux
	log              *zap.SugaredLogger
}

// NewServer creates the API server and sets up its routes.
func NewServer(store interfaces.ClassroomStore, registry Registry, chatHistoryLimit int, log *zap.SugaredLogger) *Server {
	s := &Server{
		store:            store,
		registry:         registry,
		chatHistoryLimit: chatHistoryLimit,
		router:           http.NewServeMux(),
		log:              log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/classrooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleClassrooms))))
	s.router.Handle("/api/classrooms/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleClassroomByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Request/response types.

type CreateClassroomRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ClassroomResponse struct {
	Classroom *types.Classroom `json:"classroom"`
}

type ChatHistoryResponse struct {
	ChatMessages []*types.ChatMessage `json:"chatMessages"`
}

type UpdateLayoutRequest struct {
	SeatingPositions map[string]types.SeatPosition `json:"seatingPositions,omitempty"`
	AssignedUsers    map[string]types.AssignedUser `json:"assignedUsers,omitempty"`
	ChairGroups      []types.ChairGroup            `json:"chairGroups,omitempty"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleClassrooms serves the collection endpoint (POST /api/classrooms).
func (s *Server) handleClassrooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createClassroom(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleClassroomByID routes /api/classrooms/{id} and its subresources.
func (s *Server) handleClassroomByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/classrooms/")
	parts := strings.Split(path, "/")
	classID := parts[0]

	if classID == "" || !types.IsValidClassID(classID) {
		s.sendError(w, "Invalid classroom ID", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.getClassroom(w, r, classID)
	case len(parts) == 1 && r.Method == http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case len(parts) == 2 && parts[1] == "chat" && r.Method == http.MethodGet:
		s.getChatHistory(w, r, classID)
	case len(parts) == 2 && parts[1] == "layout" && r.Method == http.MethodPut:
		s.updateLayout(w, r, classID)
	case r.Method == http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// createClassroom inserts a fresh classroom record. The live relay mutates it
// from then on; deletion stays with the wider CRUD layer.
func (s *Server) createClassroom(w http.ResponseWriter, r *http.Request) {
	var req CreateClassroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		s.sendError(w, "Classroom name is required", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if !types.IsValidClassID(req.ID) {
		s.sendError(w, "Invalid classroom ID format", http.StatusBadRequest)
		return
	}

	classroom := types.NewClassroom(req.ID, req.Name)
	if err := s.store.CreateClassroom(r.Context(), classroom); err != nil {
		s.log.Errorw("classroom creation failed", "classroomId", req.ID, "error", err)
		s.sendError(w, "Failed to create classroom", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ClassroomResponse{Classroom: classroom})
}

// getClassroom returns the full record for initial/reconnect hydration.
func (s *Server) getClassroom(w http.ResponseWriter, r *http.Request, classID string) {
	classroom, err := s.store.GetClassroom(r.Context(), classID)
	if err != nil {
		if errors.Is(err, interfaces.ErrClassroomNotFound) {
			s.sendError(w, "Classroom not found", http.StatusNotFound)
		} else {
			s.log.Errorw("classroom fetch failed", "classroomId", classID, "error", err)
			s.sendError(w, "Failed to get classroom", http.StatusInternalServerError)
		}
		return
	}

	_ = json.NewEncoder(w).Encode(ClassroomResponse{Classroom: classroom})
}

// getChatHistory returns the most recent messages in server-received order.
// The limit query parameter is capped by the configured default.
func (s *Server) getChatHistory(w http.ResponseWriter, r *http.Request, classID string) {
	limit := s.chatHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed < limit {
			limit = parsed
		}
	}

	messages, err := s.store.GetChatHistory(r.Context(), classID, limit)
	if err != nil {
		s.log.Errorw("chat history fetch failed", "classroomId", classID, "error", err)
		s.sendError(w, "Failed to get chat history", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*types.ChatMessage{}
	}

	_ = json.NewEncoder(w).Encode(ChatHistoryResponse{ChatMessages: messages})
}

// updateLayout is the explicit save path for layout state: each field
// present in the request replaces its column wholesale, mirroring the
// projector's replace semantics.
func (s *Server) updateLayout(w http.ResponseWriter, r *http.Request, classID string) {
	var req UpdateLayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if req.SeatingPositions != nil {
		if err := s.store.ReplaceSeatingPositions(ctx, classID, req.SeatingPositions); err != nil {
			s.layoutError(w, classID, "seating positions", err)
			return
		}
	}
	if req.AssignedUsers != nil {
		if err := s.store.ReplaceAssignedUsers(ctx, classID, req.AssignedUsers); err != nil {
			s.layoutError(w, classID, "assigned users", err)
			return
		}
	}
	if req.ChairGroups != nil {
		if err := s.store.ReplaceChairGroups(ctx, classID, req.ChairGroups); err != nil {
			s.layoutError(w, classID, "chair groups", err)
			return
		}
	}

	classroom, err := s.store.GetClassroom(ctx, classID)
	if err != nil {
		s.layoutError(w, classID, "readback", err)
		return
	}
	_ = json.NewEncoder(w).Encode(ClassroomResponse{Classroom: classroom})
}

func (s *Server) layoutError(w http.ResponseWriter, classID, field string, err error) {
	if errors.Is(err, interfaces.ErrClassroomNotFound) {
		s.sendError(w, "Classroom not found", http.StatusNotFound)
		return
	}
	s.log.Errorw("layout update failed", "classroomId", classID, "field", field, "error", err)
	s.sendError(w, "Failed to update classroom layout", http.StatusInternalServerError)
}

// healthCheck reports database connectivity and registry stats.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"

	if err := s.store.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = "error: " + err.Error()
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.registry.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
