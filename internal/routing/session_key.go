package routing

import (
	"strings"

	"github.com/soyeahso/ragrelay/internal/domain"
)

// mentionSeparator follows the "@nick" token WeChat inserts for mentions.
const mentionSeparator = '\u2005'

// IdentityKey builds the store key for a conversation identity:
// "{prefix}:{scope}:{participant}".
func IdentityKey(prefix string, scope domain.Scope, participant string) string {
	return prefix + ":" + string(scope) + ":" + participant
}

// ResolveIdentityKey returns the identity key for an event. Group members
// each get their own key; the group id is never used.
func ResolveIdentityKey(prefix string, evt domain.InboundEvent) string {
	return IdentityKey(prefix, evt.Scope, evt.Participant())
}

// StripMention removes the leading mention from a group message: everything
// up to and including the first U+2005, then surrounding whitespace. Text
// without the separator is returned unchanged.
func StripMention(text string) string {
	i := strings.IndexRune(text, mentionSeparator)
	if i < 0 {
		return text
	}
	return strings.TrimSpace(text[i+len(string(mentionSeparator)):])
}
