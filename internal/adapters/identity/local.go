package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

const (
	purposeID    = "id"
	purposeReset = "reset"

	minPasswordLength = 6
)

const (
	fieldEmail            = "email"
	fieldDisplayName      = "displayName"
	fieldPasswordHash     = "passwordHash"
	fieldProvider         = "provider"
	fieldGoogleSubject    = "googleSubject"
	fieldTokensValidAfter = "tokensValidAfter"
	fieldCreatedAt        = "createdAt"
	fieldUpdatedAt        = "updatedAt"
)

// Claims represents the JWT claims of ID tokens and reset codes
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider"`
	Purpose  string `json:"purpose"`
	// Session is the stored-timestamp form of the issue instant. Sign-out and
	// password changes revoke every token whose session is not after tokensValidAfter.
	Session string `json:"session"`
	jwt.RegisteredClaims
}

// GoogleValidator checks a Google ID token for the given audience
type GoogleValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// ResetNotifier delivers a password reset code to the account's owner
type ResetNotifier func(ctx context.Context, email, code string) error

// LocalProvider is a self-hosted identity provider: accounts live in the users
// collection of the document store, passwords are bcrypt hashes and ID tokens
// are HS256 JWTs.
type LocalProvider struct {
	store          ports.DocumentStore
	jwtConfig      config.JWTConfig
	googleClientID string
	validateGoogle GoogleValidator
	notifyReset    ResetNotifier
	logger         *logger.Logger
	now            func() time.Time

	// serializes account creation so an email is only registered once
	signUpMu sync.Mutex
}

// NewLocalProvider creates a local identity provider
func NewLocalProvider(store ports.DocumentStore, jwtConfig config.JWTConfig, googleClientID string, logger *logger.Logger) *LocalProvider {
	p := &LocalProvider{
		store:          store,
		jwtConfig:      jwtConfig,
		googleClientID: googleClientID,
		validateGoogle: idtoken.Validate,
		logger:         logger.WithComponent("identity.local"),
		now:            time.Now,
	}
	p.notifyReset = p.logResetCode
	return p
}

// WithResetNotifier replaces the default reset delivery, which only logs the code at debug level
func (p *LocalProvider) WithResetNotifier(fn ResetNotifier) *LocalProvider {
	p.notifyReset = fn
	return p
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string) (*entities.Credentials, error) {
	email = normalizeEmail(email)
	if len(password) < minPasswordLength {
		return nil, entities.NewAuthError("SignUp", "WEAK_PASSWORD", nil)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p.signUpMu.Lock()
	defer p.signUpMu.Unlock()

	existing, err := p.findUser(ctx, fieldEmail, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, entities.NewAuthError("SignUp", "EMAIL_EXISTS", nil)
	}

	now := ports.EncodeTimestamp(p.now())
	id, err := p.store.Add(ctx, entities.CollectionUsers, map[string]any{
		fieldEmail:        email,
		fieldPasswordHash: string(hashedPassword),
		fieldProvider:     string(entities.AuthProviderPassword),
		fieldCreatedAt:    now,
		fieldUpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user := &entities.User{ID: id, Email: email, Provider: entities.AuthProviderPassword}
	p.logger.Infow("User registered", "user_id", id)
	return p.issue(user)
}

func (p *LocalProvider) UpdateProfile(ctx context.Context, idToken, displayName string) (*entities.User, error) {
	user, err := p.VerifyToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	err = p.store.Update(ctx, entities.CollectionUsers, user.ID, map[string]any{
		fieldDisplayName: displayName,
		fieldUpdatedAt:   ports.EncodeTimestamp(p.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	user.DisplayName = displayName
	return user, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*entities.Credentials, error) {
	email = normalizeEmail(email)
	doc, err := p.findUser(ctx, fieldEmail, email)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		p.logger.Warnw("Sign-in attempt with unknown email", "email", email)
		return nil, entities.NewAuthError("SignIn", "EMAIL_NOT_FOUND", nil)
	}

	hash := doc.String(fieldPasswordHash)
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		p.logger.Warnw("Sign-in attempt with invalid password", "user_id", doc.ID)
		return nil, entities.NewAuthError("SignIn", "INVALID_PASSWORD", nil)
	}

	return p.issue(userFromDocument(*doc))
}

// SignInWithGoogle signs in (or registers) the account behind a Google ID token.
// An existing password account with the same email is linked to the Google identity.
func (p *LocalProvider) SignInWithGoogle(ctx context.Context, googleIDToken string) (*entities.Credentials, error) {
	if p.googleClientID == "" {
		return nil, entities.NewAuthError("SignInWithGoogle", "PROVIDER_NOT_CONFIGURED", nil)
	}

	payload, err := p.validateGoogle(ctx, googleIDToken, p.googleClientID)
	if err != nil {
		return nil, entities.NewAuthError("SignInWithGoogle", "INVALID_IDP_RESPONSE", err)
	}
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	email = normalizeEmail(email)
	if payload.Subject == "" || email == "" {
		return nil, entities.NewAuthError("SignInWithGoogle", "INVALID_IDP_RESPONSE", nil)
	}

	p.signUpMu.Lock()
	defer p.signUpMu.Unlock()

	doc, err := p.findUser(ctx, fieldGoogleSubject, payload.Subject)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		if doc, err = p.findUser(ctx, fieldEmail, email); err != nil {
			return nil, err
		}
	}

	now := ports.EncodeTimestamp(p.now())
	if doc == nil {
		id, err := p.store.Add(ctx, entities.CollectionUsers, map[string]any{
			fieldEmail:         email,
			fieldDisplayName:   name,
			fieldProvider:      string(entities.AuthProviderGoogle),
			fieldGoogleSubject: payload.Subject,
			fieldCreatedAt:     now,
			fieldUpdatedAt:     now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		p.logger.Infow("User registered with Google", "user_id", id)
		return p.issue(&entities.User{ID: id, Email: email, DisplayName: name, Provider: entities.AuthProviderGoogle})
	}

	user := userFromDocument(*doc)
	if doc.String(fieldGoogleSubject) != payload.Subject {
		patch := map[string]any{fieldGoogleSubject: payload.Subject, fieldUpdatedAt: now}
		if user.DisplayName == "" && name != "" {
			patch[fieldDisplayName] = name
			user.DisplayName = name
		}
		if err := p.store.Update(ctx, entities.CollectionUsers, user.ID, patch); err != nil {
			return nil, fmt.Errorf("failed to link Google account: %w", err)
		}
	}
	user.Provider = entities.AuthProviderGoogle
	return p.issue(user)
}

// SignOut revokes every token issued to the user so far
func (p *LocalProvider) SignOut(ctx context.Context, idToken string) error {
	user, err := p.VerifyToken(ctx, idToken)
	if err != nil {
		return err
	}
	return p.revokeTokens(ctx, user.ID, nil)
}

// SendPasswordReset issues a short-lived reset code and hands it to the notifier
func (p *LocalProvider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	doc, err := p.findUser(ctx, fieldEmail, email)
	if err != nil {
		return err
	}
	if doc == nil {
		return entities.NewAuthError("SendPasswordReset", "EMAIL_NOT_FOUND", nil)
	}

	code, _, err := p.sign(userFromDocument(*doc), purposeReset, p.jwtConfig.ResetExpiresIn)
	if err != nil {
		return err
	}

	p.logger.LogSecurityEvent("password_reset_requested", doc.ID, "", nil)
	return p.notifyReset(ctx, email, code)
}

// ConfirmPasswordReset sets a new password. The code is consumed because the
// password change revokes everything issued before it.
func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	claims, err := p.parse(code, purposeReset)
	if err != nil {
		return entities.NewAuthError("ConfirmPasswordReset", "INVALID_OOB_CODE", err)
	}
	if len(newPassword) < minPasswordLength {
		return entities.NewAuthError("ConfirmPasswordReset", "WEAK_PASSWORD", nil)
	}

	doc, err := p.activeUser(ctx, claims)
	if err != nil {
		return entities.NewAuthError("ConfirmPasswordReset", "INVALID_OOB_CODE", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := p.revokeTokens(ctx, doc.ID, map[string]any{fieldPasswordHash: string(hashedPassword)}); err != nil {
		return err
	}
	p.logger.LogSecurityEvent("password_reset_completed", doc.ID, "", nil)
	return nil
}

// VerifyToken validates an ID token and returns the current state of its user
func (p *LocalProvider) VerifyToken(ctx context.Context, idToken string) (*entities.User, error) {
	claims, err := p.parse(idToken, purposeID)
	if err != nil {
		reason := "INVALID_ID_TOKEN"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "TOKEN_EXPIRED"
		}
		return nil, entities.NewAuthError("VerifyToken", reason, err)
	}

	doc, err := p.activeUser(ctx, claims)
	if err != nil {
		if entities.IsTransport(err) {
			return nil, err
		}
		return nil, entities.NewAuthError("VerifyToken", "INVALID_ID_TOKEN", err)
	}

	user := userFromDocument(*doc)
	user.Provider = entities.AuthProvider(claims.Provider)
	return user, nil
}

// activeUser loads the token's user and checks the token has not been revoked
func (p *LocalProvider) activeUser(ctx context.Context, claims *Claims) (*ports.Document, error) {
	doc, err := p.store.Get(ctx, entities.CollectionUsers, claims.Subject)
	if err != nil {
		return nil, err
	}
	if validAfter := doc.String(fieldTokensValidAfter); validAfter != "" && claims.Session <= validAfter {
		return nil, errors.New("token revoked")
	}
	return doc, nil
}

func (p *LocalProvider) revokeTokens(ctx context.Context, userID string, extra map[string]any) error {
	now := ports.EncodeTimestamp(p.now())
	patch := map[string]any{fieldTokensValidAfter: now, fieldUpdatedAt: now}
	for k, v := range extra {
		patch[k] = v
	}
	if err := p.store.Update(ctx, entities.CollectionUsers, userID, patch); err != nil {
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	p.logger.Infow("Revoked user tokens", "user_id", userID)
	return nil
}

func (p *LocalProvider) issue(user *entities.User) (*entities.Credentials, error) {
	token, expiresAt, err := p.sign(user, purposeID, p.jwtConfig.ExpiresIn)
	if err != nil {
		return nil, err
	}
	return &entities.Credentials{User: user, IDToken: token, ExpiresAt: expiresAt}, nil
}

func (p *LocalProvider) sign(user *entities.User, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := p.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Email:    user.Email,
		Name:     user.DisplayName,
		Provider: string(user.Provider),
		Purpose:  purpose,
		Session:  ports.EncodeTimestamp(now),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    p.jwtConfig.Issuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(p.jwtConfig.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

func (p *LocalProvider) parse(tokenString, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.jwtConfig.Secret), nil
	}, jwt.WithIssuer(p.jwtConfig.Issuer), jwt.WithTimeFunc(p.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Purpose != purpose || claims.Subject == "" {
		return nil, fmt.Errorf("token is not a %s token", purpose)
	}
	return claims, nil
}

// findUser returns the single user whose field equals value, or nil
func (p *LocalProvider) findUser(ctx context.Context, field, value string) (*ports.Document, error) {
	docs, err := p.store.Find(ctx, ports.Query{Collection: entities.CollectionUsers}.Where(field, ports.OpEqual, value))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

// logResetCode is the development fallback. A reset code grants the account,
// so it only appears at debug level.
func (p *LocalProvider) logResetCode(_ context.Context, email, code string) error {
	p.logger.Infow("Password reset code issued", "email", email)
	p.logger.Debugw("Password reset code", "email", email, "code", code)
	return nil
}

func userFromDocument(doc ports.Document) *entities.User {
	return &entities.User{
		ID:          doc.ID,
		Email:       doc.String(fieldEmail),
		DisplayName: doc.String(fieldDisplayName),
		Provider:    entities.AuthProvider(doc.String(fieldProvider)),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
