// Copyright 2024-2026 Aiku AI

package connector

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DiscordConnector ties the REST client and the gateway session together
// for one process lifetime.
type DiscordConnector struct {
	Config  *Config
	API     *APIClient
	Gateway *GatewayClient

	log zerolog.Logger
}

// NewDiscordConnector creates a connector whose gateway events go to client.
// The same api should be the one handed to the bridge as its requester.
func NewDiscordConnector(cfg *Config, token string, api *APIClient, client Client, log zerolog.Logger) *DiscordConnector {
	return &DiscordConnector{
		Config:  cfg,
		API:     api,
		Gateway: NewGatewayClient(cfg, token, client, log),
		log:     log.With().Str("component", "connector").Logger(),
	}
}

// Run optionally verifies the token, then runs the gateway session until it
// fails or ctx is cancelled. There is no reconnect: any returned error is
// fatal to the session.
func (dc *DiscordConnector) Run(ctx context.Context) error {
	if dc.Config.VerifyToken {
		if _, err := dc.API.VerifyToken(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	if err := dc.Gateway.Run(ctx); err != nil {
		return fmt.Errorf("gateway session ended: %w", err)
	}
	return nil
}
