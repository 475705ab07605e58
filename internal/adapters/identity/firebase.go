package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
)

// DefaultFirebaseEndpoint is the Identity Toolkit relying-party base URL
const DefaultFirebaseEndpoint = "https://www.googleapis.com/identitytoolkit/v3/relyingparty/"

const defaultSessionTTL = time.Hour

// FirebaseProvider talks to the hosted Firebase Authentication service through
// the Identity Toolkit relying-party API
type FirebaseProvider struct {
	service *identitytoolkit.RelyingpartyService
	apiKey  string
	logger  *logger.Logger
	now     func() time.Time
}

// NewFirebaseProvider creates a provider for the project owning cfg.APIKey.
// option.WithHTTPClient overrides option.WithAPIKey, so the key is attached to every call instead.
func NewFirebaseProvider(ctx context.Context, cfg config.FirebaseConfig, client *http.Client, logger *logger.Logger) (*FirebaseProvider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultFirebaseEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	svc, err := identitytoolkit.NewService(ctx,
		option.WithEndpoint(endpoint),
		option.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit client: %w", err)
	}

	return &FirebaseProvider{
		service: svc.Relyingparty,
		apiKey:  cfg.APIKey,
		logger:  logger.WithComponent("identity.firebase"),
		now:     time.Now,
	}, nil
}

func (p *FirebaseProvider) key() googleapi.CallOption {
	return googleapi.QueryParameter("key", p.apiKey)
}

func (p *FirebaseProvider) SignUp(ctx context.Context, email, password string) (*entities.Credentials, error) {
	resp, err := p.service.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do(p.key())
	if err != nil {
		return nil, p.mapError("SignUp", err)
	}
	if resp.IdToken == "" {
		// older projects only hand out a session on sign-in
		return p.SignIn(ctx, email, password)
	}
	return p.credentials(resp.LocalId, resp.Email, resp.DisplayName, resp.IdToken, resp.ExpiresIn, entities.AuthProviderPassword), nil
}

func (p *FirebaseProvider) UpdateProfile(ctx context.Context, idToken, displayName string) (*entities.User, error) {
	resp, err := p.service.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:     idToken,
		DisplayName: displayName,
	}).Context(ctx).Do(p.key())
	if err != nil {
		return nil, p.mapError("UpdateProfile", err)
	}
	return &entities.User{
		ID:          resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		Provider:    entities.AuthProviderPassword,
	}, nil
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*entities.Credentials, error) {
	resp, err := p.service.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do(p.key())
	if err != nil {
		return nil, p.mapError("SignIn", err)
	}
	return p.credentials(resp.LocalId, resp.Email, resp.DisplayName, resp.IdToken, resp.ExpiresIn, entities.AuthProviderPassword), nil
}

func (p *FirebaseProvider) SignInWithGoogle(ctx context.Context, googleIDToken string) (*entities.Credentials, error) {
	postBody := url.Values{
		"id_token":   {googleIDToken},
		"providerId": {string(entities.AuthProviderGoogle)},
	}
	resp, err := p.service.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:            postBody.Encode(),
		RequestUri:          "http://localhost",
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
	}).Context(ctx).Do(p.key())
	if err != nil {
		return nil, p.mapError("SignInWithGoogle", err)
	}
	return p.credentials(resp.LocalId, resp.Email, resp.DisplayName, resp.IdToken, resp.ExpiresIn, entities.AuthProviderGoogle), nil
}

// SignOut is a client-side operation for Firebase: an API key cannot revoke
// tokens, so issued ID tokens stay valid until they expire.
func (p *FirebaseProvider) SignOut(ctx context.Context, idToken string) error {
	_, err := p.VerifyToken(ctx, idToken)
	return err
}

func (p *FirebaseProvider) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.service.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}).Context(ctx).Do(p.key())
	if err != nil {
		return p.mapError("SendPasswordReset", err)
	}
	return nil
}

func (p *FirebaseProvider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	_, err := p.service.ResetPassword(&identitytoolkit.IdentitytoolkitRelyingpartyResetPasswordRequest{
		OobCode:     code,
		NewPassword: newPassword,
	}).Context(ctx).Do(p.key())
	if err != nil {
		return p.mapError("ConfirmPasswordReset", err)
	}
	return nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, idToken string) (*entities.User, error) {
	resp, err := p.service.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: idToken,
	}).Context(ctx).Do(p.key())
	if err != nil {
		return nil, p.mapError("VerifyToken", err)
	}
	if len(resp.Users) == 0 || resp.Users[0] == nil {
		return nil, entities.NewAuthError("VerifyToken", "USER_NOT_FOUND", nil)
	}

	u := resp.Users[0]
	user := &entities.User{ID: u.LocalId, Email: u.Email, DisplayName: u.DisplayName, Provider: entities.AuthProviderPassword}
	for _, info := range u.ProviderUserInfo {
		if info != nil && info.ProviderId == string(entities.AuthProviderGoogle) {
			user.Provider = entities.AuthProviderGoogle
		}
	}
	return user, nil
}

func (p *FirebaseProvider) credentials(localID, email, displayName, idToken string, expiresIn int64, provider entities.AuthProvider) *entities.Credentials {
	ttl := time.Duration(expiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &entities.Credentials{
		User: &entities.User{
			ID:          localID,
			Email:       email,
			DisplayName: displayName,
			Provider:    provider,
		},
		IDToken:   idToken,
		ExpiresAt: p.now().Add(ttl),
	}
}

// mapError turns a rejected call into an AuthError carrying the service's
// reason code. A failed round trip or a 5xx becomes a TransportError.
func (p *FirebaseProvider) mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return entities.NewTransportError(op, err)
	}
	if apiErr.Code >= http.StatusInternalServerError {
		return entities.NewTransportError(op, err)
	}

	reason := providerReason(apiErr)
	p.logger.Debugw("Identity Toolkit rejected request", "op", op, "status", apiErr.Code, "reason", reason)
	if reason == "" {
		return entities.NewAuthError(op, "PROVIDER_ERROR", err)
	}
	return entities.NewAuthError(op, reason, nil)
}

// providerReason extracts the leading code of messages like "WEAK_PASSWORD : Password should be..."
func providerReason(apiErr *googleapi.Error) string {
	message := apiErr.Message
	if message == "" {
		for _, item := range apiErr.Errors {
			if item.Message != "" {
				message = item.Message
				break
			}
		}
	}
	reason, _, _ := strings.Cut(strings.TrimSpace(message), " ")
	return reason
}
