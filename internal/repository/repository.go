package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskvault/internal/model"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateEmail  = errors.New("email already in use")
	ErrDuplicateMobile = errors.New("mobile number already in use")
)

// UserUpdate carries a partial profile change. Nil fields are left untouched.
// Email is deliberately absent: it is immutable after registration.
type UserUpdate struct {
	FirstName    *string
	LastName     *string
	MobileNumber *string
}

// TodoUpdate carries a partial task change. Nil fields are left untouched.
type TodoUpdate struct {
	Title       *string
	Description *string
	DueDate     *string
	Status      *string
}

type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, userID string) (model.User, error)
	UpdateUser(ctx context.Context, userID string, update UserUpdate) (model.User, error)
}

type TodoStore interface {
	CreateTodo(ctx context.Context, todo model.Todo) error
	GetTodo(ctx context.Context, todoID string) (model.Todo, error)
	ListTodosByUser(ctx context.Context, userID string) ([]model.Todo, error)
	SearchTodosByUser(ctx context.Context, userID, query string) ([]model.Todo, error)
	UpdateTodo(ctx context.Context, todoID string, update TodoUpdate) (model.Todo, error)
	DeleteTodo(ctx context.Context, todoID string) (bool, error)
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, mobile_number, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.FirstName, user.LastName, user.MobileNumber, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return mapUniqueViolation(err)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, mobile_number, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.MobileNumber,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, mapNoRows(err)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, mobile_number, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.MobileNumber,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, mapNoRows(err)
}

func (s *Store) UpdateUser(ctx context.Context, userID string, update UserUpdate) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			mobile_number = COALESCE($4, mobile_number),
			updated_at = now()
		WHERE id = $1
		RETURNING id, first_name, last_name, mobile_number, email, password_hash, created_at, updated_at
	`, userID, update.FirstName, update.LastName, update.MobileNumber)
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.MobileNumber,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, mapNoRows(mapUniqueViolation(err))
	}
	return user, nil
}

func (s *Store) CreateTodo(ctx context.Context, todo model.Todo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO todos (id, user_id, title, description, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, todo.ID, todo.UserID, todo.Title, todo.Description, todo.DueDate, string(todo.Status), todo.CreatedAt, todo.UpdatedAt)
	return err
}

func (s *Store) GetTodo(ctx context.Context, todoID string) (model.Todo, error) {
	var todo model.Todo
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, title, description, due_date, status, created_at, updated_at
		FROM todos
		WHERE id = $1
	`, todoID)
	err := scanTodo(row, &todo)
	return todo, mapNoRows(err)
}

func (s *Store) ListTodosByUser(ctx context.Context, userID string) ([]model.Todo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, description, due_date, status, created_at, updated_at
		FROM todos
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTodos(rows)
}

func (s *Store) SearchTodosByUser(ctx context.Context, userID, query string) ([]model.Todo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, description, due_date, status, created_at, updated_at
		FROM todos
		WHERE user_id = $1 AND title ILIKE '%' || $2 || '%'
		ORDER BY created_at
	`, userID, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTodos(rows)
}

func (s *Store) UpdateTodo(ctx context.Context, todoID string, update TodoUpdate) (model.Todo, error) {
	var todo model.Todo
	row := s.pool.QueryRow(ctx, `
		UPDATE todos SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			due_date = COALESCE($4::timestamptz, due_date),
			status = COALESCE($5, status),
			updated_at = now()
		WHERE id = $1
		RETURNING id, user_id, title, description, due_date, status, created_at, updated_at
	`, todoID, update.Title, update.Description, update.DueDate, update.Status)
	err := scanTodo(row, &todo)
	if err != nil {
		return model.Todo{}, mapNoRows(err)
	}
	return todo, nil
}

func (s *Store) DeleteTodo(ctx context.Context, todoID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1`, todoID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanTodo(row pgx.Row, todo *model.Todo) error {
	var status string
	err := row.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&todo.Description,
		&todo.DueDate,
		&status,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	todo.Status = model.Status(status)
	return err
}

func collectTodos(rows pgx.Rows) ([]model.Todo, error) {
	todos := make([]model.Todo, 0)
	for rows.Next() {
		var todo model.Todo
		if err := scanTodo(rows, &todo); err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "users_mobile_number_key" {
			return ErrDuplicateMobile
		}
		return ErrDuplicateEmail
	}
	return err
}
