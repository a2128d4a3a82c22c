package auth

import (
	"context"
	"fmt"

	"github.com/example/icecreamshop/pkg/apperr"
	"google.golang.org/api/idtoken"
)

// Identity is what a third party identity provider vouches for.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// GoogleVerifier validates Google ID tokens against the OAuth client id.
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if g.clientID == "" {
		return nil, fmt.Errorf("%w: google login is not configured", apperr.ErrUnauthorized)
	}

	payload, err := idtoken.Validate(ctx, token, g.clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid google token", apperr.ErrUnauthorized)
	}

	id := &Identity{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	switch verified := payload.Claims["email_verified"].(type) {
	case bool:
		id.EmailVerified = verified
	case string:
		id.EmailVerified = verified == "true"
	}
	if name, ok := payload.Claims["name"].(string); ok {
		id.Name = name
	}
	return id, nil
}
