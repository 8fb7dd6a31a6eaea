package http

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"taskvault/internal/model"
	"taskvault/internal/repository"
)

// memStore is an in-memory stand-in for the pgx-backed repository so handler
// tests run without a database. It tracks how many store calls were made,
// which lets tests assert that rejected requests never reached it.
type memStore struct {
	mu    sync.Mutex
	users map[string]model.User
	todos map[string]model.Todo
	calls int
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[string]model.User),
		todos: make(map[string]model.Todo),
	}
}

func (m *memStore) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memStore) CreateUser(_ context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
		if existing.MobileNumber == user.MobileNumber {
			return repository.ErrDuplicateMobile
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, userID string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	user, ok := m.users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *memStore) UpdateUser(_ context.Context, userID string, update repository.UserUpdate) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	user, ok := m.users[userID]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	if update.MobileNumber != nil {
		for id, existing := range m.users {
			if id != userID && existing.MobileNumber == *update.MobileNumber {
				return model.User{}, repository.ErrDuplicateMobile
			}
		}
		user.MobileNumber = *update.MobileNumber
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}
	user.UpdatedAt = time.Now().UTC()
	m.users[userID] = user
	return user, nil
}

func (m *memStore) CreateTodo(_ context.Context, todo model.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.todos[todo.ID] = todo
	return nil
}

func (m *memStore) GetTodo(_ context.Context, todoID string) (model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	todo, ok := m.todos[todoID]
	if !ok {
		return model.Todo{}, repository.ErrNotFound
	}
	return todo, nil
}

func (m *memStore) ListTodosByUser(_ context.Context, userID string) ([]model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.collect(userID, ""), nil
}

func (m *memStore) SearchTodosByUser(_ context.Context, userID, query string) ([]model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.collect(userID, query), nil
}

func (m *memStore) collect(userID, query string) []model.Todo {
	todos := make([]model.Todo, 0)
	for _, todo := range m.todos {
		if todo.UserID != userID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(todo.Title), strings.ToLower(query)) {
			continue
		}
		todos = append(todos, todo)
	}
	sort.Slice(todos, func(i, j int) bool {
		if todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].ID < todos[j].ID
		}
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})
	return todos
}

func (m *memStore) UpdateTodo(_ context.Context, todoID string, update repository.TodoUpdate) (model.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	todo, ok := m.todos[todoID]
	if !ok {
		return model.Todo{}, repository.ErrNotFound
	}
	if update.Title != nil {
		todo.Title = *update.Title
	}
	if update.Description != nil {
		todo.Description = *update.Description
	}
	if update.DueDate != nil {
		dueDate, err := parseDueDate(*update.DueDate)
		if err != nil {
			return model.Todo{}, err
		}
		todo.DueDate = dueDate
	}
	if update.Status != nil {
		todo.Status = model.Status(*update.Status)
	}
	todo.UpdatedAt = time.Now().UTC()
	m.todos[todoID] = todo
	return todo, nil
}

func (m *memStore) DeleteTodo(_ context.Context, todoID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := m.todos[todoID]; !ok {
		return false, nil
	}
	delete(m.todos, todoID)
	return true, nil
}
