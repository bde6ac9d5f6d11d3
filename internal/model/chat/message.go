package chat

import (
	"time"
	"unicode/utf8"
)

// Message is one relayed chat line. Length is the rune count of the text as
// the participant typed it; Text may have been truncated.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Length    int       `json:"length"`
}

// NewMessage builds a message, keeping at most maxRunes runes of text.
func NewMessage(at time.Time, sender, text string, maxRunes int) Message {
	return Message{
		Timestamp: at,
		Sender:    sender,
		Text:      Truncate(text, maxRunes),
		Length:    utf8.RuneCountInString(text),
	}
}

// Truncate slices s to at most n runes. It never splits a rune and ignores
// word boundaries.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
