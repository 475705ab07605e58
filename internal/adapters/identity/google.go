package identity

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/taskmaster/tracker/internal/infrastructure/config"
)

// GoogleFlow runs the OAuth2 authorization code flow against Google and
// yields the OpenID Connect ID token of the signed-in account
type GoogleFlow struct {
	config *oauth2.Config
}

// NewGoogleFlow creates the flow from client credentials
func NewGoogleFlow(cfg config.GoogleConfig) *GoogleFlow {
	return newGoogleFlow(cfg, google.Endpoint)
}

func newGoogleFlow(cfg config.GoogleConfig, endpoint oauth2.Endpoint) *GoogleFlow {
	return &GoogleFlow{config: &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoint,
	}}
}

// AuthCodeURL returns the consent page URL. state is echoed back to the callback.
func (f *GoogleFlow) AuthCodeURL(state string) string {
	return f.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for the account's ID token
func (f *GoogleFlow) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := f.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("unable to retrieve token from Google: %w", err)
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", errors.New("token response did not include an id_token")
	}
	return idToken, nil
}
