// Package request carries per-request identity through contexts.
package request

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	conversationContextKey contextKey = "conversation"
	subjectContextKey      contextKey = "subject"
)

// ConversationContextKey returns the context key used for the conversation id.
// Exposed for tests that inject non-string values.
func ConversationContextKey() contextKey { return conversationContextKey }

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithConversation returns a context carrying the conversation id
func WithConversation(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, conversationContextKey, conversationID)
}

// ConversationFromContext returns the conversation id of the request, or ""
func ConversationFromContext(r *http.Request) string {
	id, _ := r.Context().Value(conversationContextKey).(string)
	return id
}

// WithSubject returns a context carrying the authenticated token subject
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey, subject)
}

// SubjectFromContext returns the authenticated subject, or "" when the
// request was not authenticated.
func SubjectFromContext(r *http.Request) string {
	s, _ := r.Context().Value(subjectContextKey).(string)
	return s
}
