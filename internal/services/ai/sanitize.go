package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/benvon/smart-planner/internal/logger"
)

type contextKey string

const conversationIDContextKey contextKey = "conversation_id"

// WithConversationID returns a context carrying the conversation id for log correlation
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationIDContextKey, id)
}

// ExtractConversationID returns the conversation id carried by ctx, if any
func ExtractConversationID(ctx context.Context) string {
	if id, ok := ctx.Value(conversationIDContextKey).(string); ok {
		return id
	}
	return ""
}

// PreviewLength bounds prompt and reply previews outside debug mode
const PreviewLength = 200

// SanitizeForLog makes backend prompts and replies safe to log. Debug mode
// keeps more of the text but still strips control characters.
func SanitizeForLog(s string, debug bool) string {
	if debug {
		return logger.SanitizeDebugContent(s)
	}
	return logger.SanitizeString(s, PreviewLength)
}

// HashConversationID returns a short stable digest of a conversation id.
// Conversation ids may carry a user subject, so logs only see the digest.
func HashConversationID(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:16]
}
