// Copyright 2024-2026 Aiku AI

// Package discordfmt converts Discord message markup to the plain text written
// to channel logs, and cleans up trigger file payloads before they are sent.
package discordfmt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aiku/fbdc/pkg/model"
)

var (
	userMentionRe    = regexp.MustCompile(`<@!?(\d+)>`)
	channelMentionRe = regexp.MustCompile(`<#(\d+)>`)
	roleMentionRe    = regexp.MustCompile(`<@&(\d+)>`)
	customEmojiRe    = regexp.MustCompile(`<a?:(\w+):\d+>`)
	timestampRe      = regexp.MustCompile(`<t:(-?\d+)(?::[tTdDfFR])?>`)
	codeBlockRe      = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe     = regexp.MustCompile("`[^`\n]+`")
)

// Render returns the message content with mentions and custom emoji replaced
// by readable text. Mentions inside code spans are left alone. Users that are
// not listed in the message's mentions keep their raw form.
func Render(msg *model.Message) string {
	if msg == nil || msg.Content == "" {
		return ""
	}
	text := msg.Content
	if !strings.ContainsRune(text, '<') {
		return text
	}

	// Step 1: Park code spans in placeholders.
	var parked []string
	park := func(match string) string {
		idx := len(parked)
		parked = append(parked, match)
		return "\x00CODE" + strconv.Itoa(idx) + "\x00"
	}
	text = codeBlockRe.ReplaceAllStringFunc(text, park)
	text = inlineCodeRe.ReplaceAllStringFunc(text, park)

	// Step 2: Mentions.
	names := make(map[string]string, len(msg.Mentions))
	for _, u := range msg.Mentions {
		names[u.ID] = u.Username
	}
	text = userMentionRe.ReplaceAllStringFunc(text, func(match string) string {
		id := userMentionRe.FindStringSubmatch(match)[1]
		if name, ok := names[id]; ok && name != "" {
			return "@" + name
		}
		return match
	})
	text = channelMentionRe.ReplaceAllString(text, "#$1")
	text = roleMentionRe.ReplaceAllString(text, "@&$1")

	// Step 3: Custom emoji and timestamps.
	text = customEmojiRe.ReplaceAllString(text, ":$1:")
	text = timestampRe.ReplaceAllString(text, "<t:$1>")

	// Step 4: Restore code spans.
	for i, raw := range parked {
		text = strings.Replace(text, "\x00CODE"+strconv.Itoa(i)+"\x00", raw, 1)
	}
	return text
}

// FromTrigger turns raw trigger file content into a message body. A single
// trailing newline, as left by `echo`, is dropped.
func FromTrigger(content string) string {
	if strings.HasSuffix(content, "\r\n") {
		return content[:len(content)-2]
	}
	return strings.TrimSuffix(content, "\n")
}
