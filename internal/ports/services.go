package ports

import (
	"context"
	"time"

	"github.com/taskmaster/tracker/internal/domain/entities"
)

// TaskService interface for dated task operations
type TaskService interface {
	Add(ctx context.Context, title, ownerID string, taskDate time.Time, dueDate *time.Time) (string, error)
	Update(ctx context.Context, id string, patch entities.TaskPatch) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*entities.Task, error)
	ListForDate(ctx context.Context, ownerID string, taskDate time.Time) ([]entities.Task, error)
	SubscribeForDate(ctx context.Context, ownerID string, taskDate time.Time, onChange func([]entities.Task)) (CancelFunc, error)
	DatesWithTasks(ctx context.Context, ownerID string, rangeStart, rangeEnd time.Time) (map[string]struct{}, error)
	SubscribeDatesWithTasks(ctx context.Context, ownerID string, rangeStart, rangeEnd time.Time, onChange func(map[string]struct{})) (CancelFunc, error)
}

// WorkLogService interface for work-hours log operations
type WorkLogService interface {
	Add(ctx context.Context, date, startTime, endTime, description, ownerID string) (string, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*entities.WorkLog, error)
	List(ctx context.Context, ownerID string) ([]entities.WorkLog, error)
	Subscribe(ctx context.Context, ownerID string, onChange func([]entities.WorkLog)) (CancelFunc, error)
}

// AuthService interface for authentication operations
type AuthService interface {
	SignUp(ctx context.Context, email, password, displayName string) (*entities.Credentials, error)
	SignIn(ctx context.Context, email, password string) (*entities.Credentials, error)
	GoogleAuthURL(state string) (string, error)
	SignInWithGoogle(ctx context.Context, code string) (*entities.Credentials, error)
	SignOut(ctx context.Context, idToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
	Authenticate(ctx context.Context, idToken string) (*entities.User, error)
	SubscribeAuthState(ctx context.Context, idToken string, fn func(*entities.User)) (CancelFunc, error)
}

// IdentityProvider is the hosted (or self-hosted) identity backend
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (*entities.Credentials, error)
	UpdateProfile(ctx context.Context, idToken, displayName string) (*entities.User, error)
	SignIn(ctx context.Context, email, password string) (*entities.Credentials, error)
	SignInWithGoogle(ctx context.Context, googleIDToken string) (*entities.Credentials, error)
	SignOut(ctx context.Context, idToken string) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
	VerifyToken(ctx context.Context, idToken string) (*entities.User, error)
}

// OAuthFlow drives an interactive provider sign-in that ends with an ID token
type OAuthFlow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (idToken string, err error)
}
