package api

import "errors"

// Validator - интерфейс, который могут реализовать DTO
type Validator interface {
	Validate() error
}

func (h Handshake) Validate() error {
	if h.MatchID == "" {
		return errors.New("matchId is required")
	}
	if h.PlayerID == "" {
		return errors.New("playerId is required")
	}
	return nil
}

func (c ClientCommand) Validate() error {
	if c.Command == "" {
		return errors.New("command is required")
	}
	if len(c.Command) > 64 {
		return errors.New("command name too long")
	}
	if len(c.Payload) > 16*1024 {
		return errors.New("payload too large")
	}
	return nil
}
