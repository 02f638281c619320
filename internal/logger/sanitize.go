package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPathLength is the maximum length for URL paths in logs
	MaxPathLength = 500
	// MaxUtteranceLength is how much of an utterance is kept in logs
	MaxUtteranceLength = 200
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the default limit of SanitizeString
	MaxGeneralStringLength = 2000
	// MaxDebugContentLength bounds backend prompts and replies in debug logs
	MaxDebugContentLength = 10000
)

// SanitizePath makes a URL path safe to log
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeString fixes invalid UTF-8, drops control characters other than
// whitespace and truncates to maxLength bytes. A non-positive maxLength
// means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = filterRunes(s)
	if len(s) > maxLength {
		s = strings.ToValidUTF8(s[:maxLength], "") + "..."
	}
	return s
}

func filterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeError makes an error message safe to log
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeUtterance flattens an utterance onto one line and truncates it.
// User text may carry newlines meant to forge log entries.
func SanitizeUtterance(text string) string {
	return SanitizeString(strings.Join(strings.Fields(filterRunes(text)), " "), MaxUtteranceLength)
}

// SanitizeDebugContent bounds prompts and replies logged in debug mode
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
