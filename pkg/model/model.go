// Copyright 2024-2026 Aiku AI

// Package model holds the gateway and REST payload types shared by the
// session engine and the filesystem bridge.
package model

// ChannelType is the numeric kind of a channel as reported by the gateway.
type ChannelType int

const (
	ChannelTypeGuildText          ChannelType = 0
	ChannelTypeDM                 ChannelType = 1
	ChannelTypeGuildVoice         ChannelType = 2
	ChannelTypeGroupDM            ChannelType = 3
	ChannelTypeGuildCategory      ChannelType = 4
	ChannelTypeGuildAnnouncement  ChannelType = 5
	ChannelTypeAnnouncementThread ChannelType = 10
	ChannelTypePublicThread       ChannelType = 11
	ChannelTypePrivateThread      ChannelType = 12
	ChannelTypeGuildStageVoice    ChannelType = 13
	ChannelTypeGuildForum         ChannelType = 15
)

// IsRepresented reports whether channels of this kind get a directory in the
// local tree. Only plain text and announcement channels do.
func (t ChannelType) IsRepresented() bool {
	return t == ChannelTypeGuildText || t == ChannelTypeGuildAnnouncement
}

// User is a remote account.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Bot        bool   `json:"bot,omitempty"`
}

// Channel is a guild channel as delivered in the ready snapshot.
type Channel struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     ChannelType `json:"type"`
	GuildID  string      `json:"guild_id,omitempty"`
	ParentID string      `json:"parent_id,omitempty"`
}

// GuildProperties carries guild metadata that newer user-account snapshots
// nest instead of placing at the top level.
type GuildProperties struct {
	Name string `json:"name"`
}

// Guild is a server the user is a member of.
type Guild struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Channels   []Channel        `json:"channels"`
	Properties *GuildProperties `json:"properties,omitempty"`
}

// DisplayName returns the guild name, falling back to the nested properties.
func (g *Guild) DisplayName() string {
	if g.Name == "" && g.Properties != nil {
		return g.Properties.Name
	}
	return g.Name
}

// Ready is the initial snapshot delivered once identification succeeds.
type Ready struct {
	Version          int     `json:"v"`
	User             User    `json:"user"`
	SessionID        string  `json:"session_id"`
	ResumeGatewayURL string  `json:"resume_gateway_url,omitempty"`
	Guilds           []Guild `json:"guilds"`
}

// Message is a chat message, either from a MESSAGE_CREATE dispatch or from
// the REST API.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Author    User   `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Mentions  []User `json:"mentions,omitempty"`
}

// Hello is the payload of the first frame on a new gateway connection.
type Hello struct {
	// HeartbeatInterval is in milliseconds.
	HeartbeatInterval float64 `json:"heartbeat_interval"`
}
