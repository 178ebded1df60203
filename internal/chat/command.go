package chat

import "strings"

const (
	createPrefix = "/create "
	joinPrefix   = "/join "
)

// Command is one parsed inbound frame: CreateCommand, JoinCommand or ChatText.
type Command interface {
	command()
}

// CreateCommand asks for a room to exist without switching to it.
type CreateCommand struct {
	Name string
}

// JoinCommand switches the session to another room, creating it if needed.
type JoinCommand struct {
	Name string
}

// ChatText is a plain message for the current room.
type ChatText struct {
	Text string
}

func (CreateCommand) command() {}
func (JoinCommand) command()   {}
func (ChatText) command()      {}

// ParseCommand classifies a text frame. The first matching prefix wins and the
// remainder is taken verbatim as the room name.
func ParseCommand(text string) Command {
	switch {
	case strings.HasPrefix(text, createPrefix):
		return CreateCommand{Name: strings.TrimPrefix(text, createPrefix)}
	case strings.HasPrefix(text, joinPrefix):
		return JoinCommand{Name: strings.TrimPrefix(text, joinPrefix)}
	default:
		return ChatText{Text: text}
	}
}
