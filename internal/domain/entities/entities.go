package entities

import (
	"errors"
	"strings"
	"time"
)

// Common errors
var (
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrEmptyDescription = errors.New("description must not be empty")
	ErrMissingOwner     = errors.New("owner is required")
	ErrMissingDate      = errors.New("date is required")
	ErrMissingTime      = errors.New("start and end time are required")
	ErrInvalidDate      = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidClock     = errors.New("time must be formatted as HH:MM")
	ErrMissingEmail     = errors.New("email is required")
	ErrMissingPassword  = errors.New("password is required")
	ErrInvalidToken     = errors.New("invalid or expired token")
)

// AuthProvider identifies how a user proved their identity
type AuthProvider string

const (
	AuthProviderPassword AuthProvider = "password"
	AuthProviderGoogle   AuthProvider = "google.com"
)

// Collections used in the document store
const (
	CollectionTasks    = "tasks"
	CollectionWorkLogs = "work_logs"
	CollectionUsers    = "users"
)

// Task is a dated to-do item owned by a single user
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	TaskDate  time.Time  `json:"taskDate"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	OwnerID   string     `json:"ownerId"`
}

// TaskPatch carries the fields of a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title        *string
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool
}

// IsEmpty reports whether the patch changes nothing besides the update timestamp
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Completed == nil && p.DueDate == nil && !p.ClearDueDate
}

// WorkLog is one block of worked time on a calendar day
type WorkLog struct {
	ID          string    `json:"id"`
	Date        string    `json:"date"`
	StartTime   string    `json:"startTime"`
	EndTime     string    `json:"endTime"`
	Description string    `json:"description"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsOvernight reports whether the entry ends on the following day
func (w *WorkLog) IsOvernight() bool {
	return strings.Compare(w.EndTime, w.StartTime) < 0
}

// User is an authenticated identity as seen by the application
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"displayName,omitempty"`
	Provider    AuthProvider `json:"provider,omitempty"`
}

// Credentials is the result of a successful sign-in
type Credentials struct {
	User      *User     `json:"user"`
	IDToken   string    `json:"idToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}
