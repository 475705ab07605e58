package services

import (
	"context"
	"strings"
	"sync"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// authListener serializes deliveries to one subscriber
type authListener struct {
	mu      sync.Mutex
	fn      func(*entities.User)
	stopped bool
}

func (l *authListener) deliver(user *entities.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.fn(user)
}

// stop waits for a delivery in progress and drops every later one
func (l *authListener) stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
}

// AuthGateway fronts the identity provider and tracks auth-state subscribers per user
type AuthGateway struct {
	provider ports.IdentityProvider
	google   ports.OAuthFlow
	logger   *logger.Logger

	mu        sync.Mutex
	listeners map[string]map[int]*authListener
	nextID    int
}

// NewAuthGateway creates a gateway. google may be nil when Google sign-in is not configured.
func NewAuthGateway(provider ports.IdentityProvider, google ports.OAuthFlow, logger *logger.Logger) *AuthGateway {
	return &AuthGateway{
		provider:  provider,
		google:    google,
		logger:    logger.WithComponent("auth_gateway"),
		listeners: make(map[string]map[int]*authListener),
	}
}

// SignUp creates an account and sets its display name
func (g *AuthGateway) SignUp(ctx context.Context, email, password, displayName string) (*entities.Credentials, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials("SignUp", email, password); err != nil {
		return nil, err
	}

	creds, err := g.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, asAuthError("SignUp", err)
	}

	if displayName = strings.TrimSpace(displayName); displayName != "" {
		user, err := g.provider.UpdateProfile(ctx, creds.IDToken, displayName)
		if err != nil {
			return nil, asAuthError("SignUp", err)
		}
		creds.User = user
		g.publish(user.ID, user)
	}

	g.logger.Infow("User signed up", "user_id", creds.User.ID)
	return creds, nil
}

// SignIn authenticates with email and password
func (g *AuthGateway) SignIn(ctx context.Context, email, password string) (*entities.Credentials, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials("SignIn", email, password); err != nil {
		return nil, err
	}

	creds, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		g.logger.LogSecurityEvent("sign_in_failed", "", "", map[string]interface{}{"email": email})
		return nil, asAuthError("SignIn", err)
	}

	g.logger.Infow("User signed in", "user_id", creds.User.ID)
	return creds, nil
}

// GoogleAuthURL returns the consent page URL for the interactive Google flow
func (g *AuthGateway) GoogleAuthURL(state string) (string, error) {
	if g.google == nil {
		return "", entities.NewAuthError("GoogleAuthURL", "PROVIDER_NOT_CONFIGURED", nil)
	}
	return g.google.AuthCodeURL(state), nil
}

// SignInWithGoogle completes the Google flow with the returned authorization code
func (g *AuthGateway) SignInWithGoogle(ctx context.Context, code string) (*entities.Credentials, error) {
	if g.google == nil {
		return nil, entities.NewAuthError("SignInWithGoogle", "PROVIDER_NOT_CONFIGURED", nil)
	}
	if code == "" {
		return nil, entities.NewAuthError("SignInWithGoogle", "MISSING_CODE", nil)
	}

	idToken, err := g.google.Exchange(ctx, code)
	if err != nil {
		return nil, asAuthError("SignInWithGoogle", err)
	}

	creds, err := g.provider.SignInWithGoogle(ctx, idToken)
	if err != nil {
		return nil, asAuthError("SignInWithGoogle", err)
	}

	g.logger.Infow("User signed in with Google", "user_id", creds.User.ID)
	return creds, nil
}

// SignOut ends the session and tells the user's auth-state subscribers
func (g *AuthGateway) SignOut(ctx context.Context, idToken string) error {
	user, err := g.Authenticate(ctx, idToken)
	if err != nil {
		return err
	}

	if err := g.provider.SignOut(ctx, idToken); err != nil {
		return asAuthError("SignOut", err)
	}

	g.logger.Infow("User signed out", "user_id", user.ID)
	g.publish(user.ID, nil)
	return nil
}

// RequestPasswordReset asks the provider to send a reset message
func (g *AuthGateway) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return entities.NewValidationError("RequestPasswordReset", entities.ErrMissingEmail)
	}
	if err := g.provider.SendPasswordReset(ctx, email); err != nil {
		return asAuthError("RequestPasswordReset", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password using a reset code
func (g *AuthGateway) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if code == "" {
		return entities.NewAuthError("ConfirmPasswordReset", "MISSING_CODE", nil)
	}
	if newPassword == "" {
		return entities.NewValidationError("ConfirmPasswordReset", entities.ErrMissingPassword)
	}
	if err := g.provider.ConfirmPasswordReset(ctx, code, newPassword); err != nil {
		return asAuthError("ConfirmPasswordReset", err)
	}
	return nil
}

// Authenticate resolves an ID token to its user
func (g *AuthGateway) Authenticate(ctx context.Context, idToken string) (*entities.User, error) {
	if idToken == "" {
		return nil, entities.NewAuthError("Authenticate", "MISSING_TOKEN", nil)
	}
	user, err := g.provider.VerifyToken(ctx, idToken)
	if err != nil {
		return nil, asAuthError("Authenticate", err)
	}
	return user, nil
}

// SubscribeAuthState delivers the token's user (nil when not signed in) right
// away and again on every later change for that user. The returned cancel
// waits for a delivery in progress, so fn never runs after it returns.
func (g *AuthGateway) SubscribeAuthState(ctx context.Context, idToken string, fn func(*entities.User)) (ports.CancelFunc, error) {
	user, err := g.Authenticate(ctx, idToken)
	if err != nil {
		if !entities.IsAuth(err) {
			return nil, err
		}
		fn(nil)
		return func() {}, nil
	}

	listener := &authListener{fn: fn}
	listener.mu.Lock()

	g.mu.Lock()
	id := g.nextID
	g.nextID++
	if g.listeners[user.ID] == nil {
		g.listeners[user.ID] = make(map[int]*authListener)
	}
	g.listeners[user.ID][id] = listener
	g.mu.Unlock()

	// initial delivery goes first; publishes queue behind the listener lock
	fn(user)
	listener.mu.Unlock()

	release := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.listeners[user.ID], id)
			if len(g.listeners[user.ID]) == 0 {
				delete(g.listeners, user.ID)
			}
			g.mu.Unlock()
			listener.stop()
			close(release)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-release:
		}
	}()

	return cancel, nil
}

func (g *AuthGateway) publish(userID string, user *entities.User) {
	g.mu.Lock()
	targets := make([]*authListener, 0, len(g.listeners[userID]))
	for _, l := range g.listeners[userID] {
		targets = append(targets, l)
	}
	g.mu.Unlock()

	for _, l := range targets {
		l.deliver(user)
	}
}

func validateCredentials(op, email, password string) error {
	if email == "" {
		return entities.NewValidationError(op, entities.ErrMissingEmail)
	}
	if password == "" {
		return entities.NewValidationError(op, entities.ErrMissingPassword)
	}
	return nil
}

// asAuthError surfaces any provider failure as an auth error, keeping its reason
func asAuthError(op string, err error) error {
	if entities.IsAuth(err) {
		return err
	}
	reason := "PROVIDER_ERROR"
	if entities.IsTransport(err) {
		reason = "NETWORK_REQUEST_FAILED"
	}
	return entities.NewAuthError(op, reason, err)
}
