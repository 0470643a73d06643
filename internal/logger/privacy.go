package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// MinHashSaltLength is the shortest accepted LOG_HASH_SALT.
const MinHashSaltLength = 32

var hashSalt string

// InitHashSalt loads LOG_HASH_SALT. It panics when the salt is missing or
// shorter than MinHashSaltLength.
func InitHashSalt() {
	salt := os.Getenv("LOG_HASH_SALT")
	if salt == "" {
		panic("LOG_HASH_SALT must be set")
	}
	if len(salt) < MinHashSaltLength {
		panic(fmt.Sprintf("LOG_HASH_SALT must be at least %d characters", MinHashSaltLength))
	}
	hashSalt = salt
}

// InitHashSaltForTesting sets the salt without validation.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

func hash(data string) string {
	sum := sha256.Sum256([]byte(data + ":" + hashSalt))
	return hex.EncodeToString(sum[:])[:8]
}

// HashUserID returns a short salted hash of a Telegram user ID.
func HashUserID(userID int64) string {
	return hash(fmt.Sprintf("%d", userID))
}

// HashChatID returns a short salted hash of a chat ID.
func HashChatID(chatID int64) string {
	return hash(fmt.Sprintf("chat:%d", chatID))
}

// HashName returns a short salted hash of a worker name or a storage key
// derived from one.
func HashName(name string) string {
	return hash("name:" + name)
}

// SanitizeNote redacts an observation note, keeping only its shape.
func SanitizeNote(note string) string {
	if note == "" {
		return "<empty>"
	}
	lines := strings.Count(note, "\n") + 1
	return fmt.Sprintf("<redacted: %d words, %d chars, %d lines>",
		len(strings.Fields(note)), utf8.RuneCountInString(note), lines)
}

// SanitizeText is a general-purpose sanitizer for user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	n := utf8.RuneCountInString(text)
	if n <= 10 {
		return fmt.Sprintf("<%d chars>", n)
	}
	return fmt.Sprintf("%s...<%d chars>", string([]rune(text)[:3]), n)
}
