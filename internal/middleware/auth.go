package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	logpkg "github.com/benvon/smart-planner/internal/logger"
	"github.com/benvon/smart-planner/internal/models"
	"github.com/benvon/smart-planner/internal/request"
	"go.uber.org/zap"
)

const (
	// ConversationHeader selects a conversation for the request.
	ConversationHeader = "X-Conversation-ID"
	// DefaultConversationID is used when no header and no subject are present.
	DefaultConversationID = "default"
)

var conversationIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.TokenClaims, error)
}

// Auth requires a valid bearer token and stores its subject on the request.
func Auth(verifier TokenVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Missing Authorization header", logger)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid Authorization header format", logger)
				return
			}

			claims, err := verifier.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.Info("token_verification_failed",
					zap.String("error", logpkg.SanitizeError(err)),
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				)
				respondErrorJSON(w, r, http.StatusUnauthorized, "Unauthorized", "Invalid or expired token", logger)
				return
			}

			ctx := request.WithSubject(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Conversation resolves the conversation id for the request.
// Authenticated callers are confined to conversations under their subject.
func Conversation(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get(ConversationHeader))
			if header != "" && !conversationIDPattern.MatchString(header) {
				respondErrorJSON(w, r, http.StatusBadRequest, "Bad Request", "Invalid "+ConversationHeader+" header", logger)
				return
			}

			id := conversationID(request.SubjectFromContext(r), header)
			next.ServeHTTP(w, r.WithContext(request.WithConversation(r.Context(), id)))
		})
	}
}

func conversationID(subject, header string) string {
	switch {
	case subject != "" && header != "":
		return subject + "/" + header
	case subject != "":
		return subject
	case header != "":
		return header
	default:
		return DefaultConversationID
	}
}
