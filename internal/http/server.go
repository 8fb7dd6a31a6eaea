package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskvault/internal/auth"
	"taskvault/internal/config"
	"taskvault/internal/crypto"
	"taskvault/internal/model"
	"taskvault/internal/repository"
)

type Server struct {
	cfg   config.Config
	users repository.UserStore
	todos repository.TodoStore
}

func NewServer(cfg config.Config, users repository.UserStore, todos repository.TodoStore) *Server {
	return &Server{
		cfg:   cfg,
		users: users,
		todos: todos,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/register", s.handleRegister)
	r.With(s.authMiddleware).Put("/register", s.handleUpdateProfile)
	r.Post("/login", s.handleLogin)

	r.Route("/todo", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListTodos)
		r.Get("/search", s.handleSearchTodos)
		r.Post("/", s.handleCreateTodo)
		r.Put("/", s.handleUpdateTodo)
		r.Delete("/", s.handleDeleteTodo)
	})

	return r
}

var (
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
)

const minPasswordLength = 8

type userSummary struct {
	ID           string `json:"id"`
	FirstName    string `json:"fname"`
	LastName     string `json:"lname"`
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`
}

type todoResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"date"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func mapUserSummary(user model.User) userSummary {
	return userSummary{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		MobileNumber: user.MobileNumber,
		Email:        user.Email,
	}
}

func mapTodoResponse(todo model.Todo) todoResponse {
	return todoResponse{
		ID:          todo.ID,
		UserID:      todo.UserID,
		Title:       todo.Title,
		Description: todo.Description,
		DueDate:     todo.DueDate.UTC().Format(time.RFC3339),
		Status:      string(todo.Status),
		CreatedAt:   todo.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   todo.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type registerRequest struct {
	FirstName    string `json:"fname"`
	LastName     string `json:"lname"`
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FirstName == "" || req.LastName == "" || req.MobileNumber == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "all fields are required")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid email format")
		return
	}
	if !mobilePattern.MatchString(req.MobileNumber) {
		writeError(w, http.StatusBadRequest, "validation_error", "mobile number must be exactly 10 digits")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "validation_error", "password must be at least 8 characters")
		return
	}

	hash, err := crypto.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		s.serverError(w, "hash password", err)
		return
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		MobileNumber: req.MobileNumber,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(r.Context(), user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "conflict", "email is already in use")
		case errors.Is(err, repository.ErrDuplicateMobile):
			writeError(w, http.StatusConflict, "conflict", "mobile number is already in use")
		default:
			s.serverError(w, "create user", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID})
}

type updateProfileRequest struct {
	FirstName    *string `json:"fname,omitempty"`
	LastName     *string `json:"lname,omitempty"`
	MobileNumber *string `json:"mobileNumber,omitempty"`
}

type profileResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	update := repository.UserUpdate{}
	if req.FirstName != nil {
		first := strings.TrimSpace(*req.FirstName)
		if first == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "first name must not be empty")
			return
		}
		update.FirstName = &first
	}
	if req.LastName != nil {
		last := strings.TrimSpace(*req.LastName)
		if last == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "last name must not be empty")
			return
		}
		update.LastName = &last
	}
	if req.MobileNumber != nil {
		mobile := strings.TrimSpace(*req.MobileNumber)
		if !mobilePattern.MatchString(mobile) {
			writeError(w, http.StatusBadRequest, "validation_error", "mobile number must be exactly 10 digits")
			return
		}
		update.MobileNumber = &mobile
	}

	user, err := s.users.UpdateUser(r.Context(), claims.UserID, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "user not found")
		case errors.Is(err, repository.ErrDuplicateMobile):
			writeError(w, http.StatusConflict, "conflict", "mobile number is already in use")
		default:
			s.serverError(w, "update user", err)
		}
		return
	}

	// Re-sign the session so subsequent requests see the updated display
	// fields without a new login. Identity stays fixed.
	token, err := auth.RefreshClaims(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, claims, user.FullName(), user.MobileNumber)
	if err != nil {
		s.serverError(w, "refresh token", err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Token: token, User: mapUserSummary(user)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  userSummary `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "email and password are required")
		return
	}

	user, err := s.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			return
		}
		s.serverError(w, "get user", err)
		return
	}

	// Users created without a local password cannot log in with one.
	if user.PasswordHash == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID:       user.ID,
		Email:        user.Email,
		Name:         user.FullName(),
		MobileNumber: user.MobileNumber,
	})
	if err != nil {
		s.serverError(w, "issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, User: mapUserSummary(user)})
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	todos, err := s.todos.ListTodosByUser(r.Context(), claims.UserID)
	if err != nil {
		s.serverError(w, "list todos", err)
		return
	}

	resp := make([]todoResponse, 0, len(todos))
	for _, todo := range todos {
		resp = append(resp, mapTodoResponse(todo))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearchTodos(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))

	todos, err := s.todos.SearchTodosByUser(r.Context(), claims.UserID, query)
	if err != nil {
		s.serverError(w, "search todos", err)
		return
	}

	resp := make([]todoResponse, 0, len(todos))
	for _, todo := range todos {
		resp = append(resp, mapTodoResponse(todo))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Status      string `json:"status,omitempty"`
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req createTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" || req.Date == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "title, description and date are required")
		return
	}

	dueDate, err := parseDueDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid date")
		return
	}

	status := model.StatusPending
	if req.Status != "" {
		status = model.Status(req.Status)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "validation_error", "status must be pending or completed")
			return
		}
	}

	now := time.Now().UTC()
	todo := model.Todo{
		ID:          uuid.NewString(),
		UserID:      claims.UserID, // owner comes from the session, never the body
		Title:       req.Title,
		Description: req.Description,
		DueDate:     dueDate,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.todos.CreateTodo(r.Context(), todo); err != nil {
		s.serverError(w, "create todo", err)
		return
	}

	writeJSON(w, http.StatusCreated, mapTodoResponse(todo))
}

type updateTodoRequest struct {
	ID          string  `json:"_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req updateTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "_id is required")
		return
	}

	update := repository.TodoUpdate{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "title must not be empty")
			return
		}
		update.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			writeError(w, http.StatusBadRequest, "validation_error", "description must not be empty")
			return
		}
		update.Description = &description
	}
	if req.Date != nil {
		dueDate, err := parseDueDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "invalid date")
			return
		}
		formatted := dueDate.Format(time.RFC3339)
		update.DueDate = &formatted
	}
	if req.Status != nil {
		if !model.Status(*req.Status).Valid() {
			writeError(w, http.StatusBadRequest, "validation_error", "status must be pending or completed")
			return
		}
		update.Status = req.Status
	}

	if _, err := s.ownedTodo(r.Context(), claims, req.ID); err != nil {
		s.writeOwnershipError(w, "load todo", err)
		return
	}

	todo, err := s.todos.UpdateTodo(r.Context(), req.ID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "todo not found")
			return
		}
		s.serverError(w, "update todo", err)
		return
	}

	writeJSON(w, http.StatusOK, mapTodoResponse(todo))
}

type deleteTodoRequest struct {
	ID string `json:"_id"`
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	var req deleteTodoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "_id is required")
		return
	}

	if _, err := s.ownedTodo(r.Context(), claims, req.ID); err != nil {
		// Deleting an absent record is not an error: a concurrent delete
		// or a repeat request lands here and sees the same success shape.
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		s.writeOwnershipError(w, "load todo", err)
		return
	}

	if _, err := s.todos.DeleteTodo(r.Context(), req.ID); err != nil {
		s.serverError(w, "delete todo", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errForbidden = errors.New("not the owner")

// ownedTodo loads a todo and checks it belongs to the caller. Every handler
// that references an existing todo goes through here before touching the
// record.
func (s *Server) ownedTodo(ctx context.Context, claims *auth.Claims, todoID string) (model.Todo, error) {
	todo, err := s.todos.GetTodo(ctx, todoID)
	if err != nil {
		return model.Todo{}, err
	}
	if todo.UserID != claims.UserID {
		return model.Todo{}, errForbidden
	}
	return todo, nil
}

func (s *Server) writeOwnershipError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "todo not found")
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "not authorized for this todo")
	default:
		s.serverError(w, op, err)
	}
}

func parseDueDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	log.Printf("%s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "server_error", "something went wrong")
}
