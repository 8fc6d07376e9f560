// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fsbridge mirrors a chat account onto a directory tree.
//
// # Layout
//
//	root/info
//	root/{guildId}/info
//	root/{guildId}/{channelId}/info
//	root/{guildId}/{channelId}/messages
//	root/{guildId}/{channelId}/api/
//
// Every info file holds two lines, "ID: <id>" and "Name: <name>". Only text
// and announcement channels are represented.
//
// # Inbound
//
// [Bridge.HandleMessage] appends each message to its channel's messages log.
// The first content line is prefixed with "<id>/<username>: " and following
// lines are indented by the width of that prefix. Logs are append-only and
// survive restarts.
//
// # Outbound
//
// Creating a file inside a channel's api directory is a trigger: the file
// name is the operation and its content the payload. [Bridge.HandleTrigger]
// passes the operation to the injected [Requester] and then deletes the file,
// whatever the outcome. Triggers are consumed at most once and never retried.
package fsbridge
