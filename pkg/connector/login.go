// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aiku/fbdc/pkg/model"
)

// VerifyToken fetches the token's own user record. A rejected token fails
// with *AuthError, any other failure with *RequestError.
func (c *APIClient) VerifyToken(ctx context.Context) (*model.User, error) {
	if c.token == "" {
		return nil, &AuthError{Reason: "token is empty"}
	}
	var me model.User
	_, err := c.Read(ctx, "users/@me", &me)
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusUnauthorized {
		return nil, &AuthError{Code: reqErr.StatusCode, Reason: "token was rejected"}
	} else if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	c.log.Info().Str("user_id", me.ID).Str("username", me.Username).Msg("Authenticated")
	return &me, nil
}
