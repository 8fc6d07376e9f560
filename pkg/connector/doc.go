// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector implements the Discord side of the filesystem bridge:
// one gateway session per process plus the REST calls behind trigger files.
//
// # Core Types
//
// [GatewayClient] owns the websocket connection. [GatewayClient.Connect]
// waits for hello and identifies, then [GatewayClient.Run] drives a receive
// loop and a heartbeat loop until the connection fails or the context is
// cancelled. Events are handed to a [Client]; clients that also implement
// [Initializer] receive the ready snapshot.
//
// [APIClient] performs REST calls. Its [APIClient.IssueRequest] maps an
// operation tag (send_message, trigger_typing, fetch_messages) to a call
// and returns envelope.None for tags it does not know.
//
// [DiscordConnector] verifies the token and runs the session.
//
// # Failure Model
//
// There is no reconnect. A [TransportError] or [AuthError] ends the session;
// a [RequestError] only fails the request that caused it.
//
// # Sub-packages
//
//   - discordfmt renders message content for the messages logs.
package connector
