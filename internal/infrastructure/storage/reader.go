package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"boardgame-server/internal/engine"
)

// Load читает реплей из файла.
func (s *ReplayService) Load(path string) (*ReplaySession, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readBinary(f)
}

func readBinary(r io.Reader) (*ReplaySession, error) {
	var header replayHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicHeader {
		return nil, fmt.Errorf("invalid magic")
	}
	if header.Version != Version1 {
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", header.Version, Version1)
	}

	session := &ReplaySession{
		Seed:      header.Seed,
		Timestamp: header.Timestamp,
		Players:   make([]engine.PlayerID, header.PlayerCount),
		Commands:  make([]engine.Command, header.CommandCount),
	}

	gameID := make([]byte, header.GameIDLen)
	if _, err := io.ReadFull(r, gameID); err != nil {
		return nil, fmt.Errorf("failed to read game id: %w", err)
	}
	session.GameID = string(gameID)

	for i := range session.Players {
		var n uint8
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		session.Players[i] = engine.PlayerID(buf)
	}

	for i := 0; i < int(header.CommandCount); i++ {
		var ch commandHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			return nil, err
		}

		cmd := engine.Command{Timestamp: ch.Timestamp}

		typeBuf := make([]byte, ch.TypeLen)
		if _, err := io.ReadFull(r, typeBuf); err != nil {
			return nil, err
		}
		cmd.Type = engine.CommandType(typeBuf)

		playerBuf := make([]byte, ch.PlayerLen)
		if _, err := io.ReadFull(r, playerBuf); err != nil {
			return nil, err
		}
		cmd.PlayerID = engine.PlayerID(playerBuf)

		if ch.PayloadLen > 0 {
			cmd.Payload = make([]byte, ch.PayloadLen)
			if _, err := io.ReadFull(r, cmd.Payload); err != nil {
				return nil, err
			}
		} else {
			cmd.Payload = json.RawMessage{}
		}

		session.Commands[i] = cmd
	}

	return session, nil
}
