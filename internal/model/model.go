package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

type User struct {
	ID           string
	FirstName    string
	LastName     string
	MobileNumber string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName is the display name carried in session claims.
func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type Todo struct {
	ID          string
	UserID      string
	Title       string
	Description string
	DueDate     time.Time
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
