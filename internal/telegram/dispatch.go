package telegram

import (
	"strings"

	"github.com/kan140979/Proleum-Pro-Bot/internal/session"
)

type command int

const (
	cmdStart command = iota
	cmdSelectModel
	cmdGenerateImage
	cmdExit
	cmdChangeModel
	cmdChat
)

const (
	startCommand    = "/start"
	imageCommand    = "/generate_image"
	exitText        = "exit"
	changeModelText = "сменить модель"
)

// classify maps inbound text to a command, checked in fixed priority
// order. The returned arg is the model name for cmdSelectModel, the
// prompt for cmdGenerateImage, and the raw text for cmdChat. When
// images is false the /generate_image command is not recognized and
// falls through to a conversation turn.
func classify(text string, images bool) (command, string) {
	switch {
	case isCommand(text, startCommand):
		return cmdStart, ""
	case session.IsModel(text):
		return cmdSelectModel, text
	case images && isCommand(text, imageCommand):
		return cmdGenerateImage, commandArgs(text, imageCommand)
	case strings.EqualFold(text, exitText):
		return cmdExit, ""
	case strings.EqualFold(text, changeModelText):
		return cmdChangeModel, ""
	default:
		return cmdChat, text
	}
}

// isCommand reports whether text invokes cmd, accepting Telegram's
// group-chat form /cmd@botname and trailing arguments.
func isCommand(text, cmd string) bool {
	if !strings.HasPrefix(text, cmd) {
		return false
	}
	rest := text[len(cmd):]
	switch {
	case rest == "":
		return true
	case strings.HasPrefix(rest, " "):
		return true
	case strings.HasPrefix(rest, "@"):
		mention := rest[1:]
		if i := strings.IndexByte(mention, ' '); i >= 0 {
			mention = mention[:i]
		}
		return mention != ""
	default:
		return false
	}
}

// commandArgs strips the command and an optional @botname mention,
// returning whatever follows.
func commandArgs(text, cmd string) string {
	rest := strings.TrimPrefix(text, cmd)
	if strings.HasPrefix(rest, "@") {
		if i := strings.IndexByte(rest, ' '); i >= 0 {
			rest = rest[i:]
		} else {
			rest = ""
		}
	}
	return strings.TrimPrefix(rest, " ")
}

// splitMessage slices text into consecutive segments of at most max
// characters, with no regard for word boundaries. Telegram's message
// limit counts characters, not bytes, so splitting must never cut a
// rune in half. Concatenating the segments restores the input.
func splitMessage(text string, max int) []string {
	runes := []rune(text)
	var parts []string
	for i := 0; i < len(runes); i += max {
		end := i + max
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}
