// Package storage - бинарная персистенция реплеев матчей.
//
// Реплей - это сид плюс упорядоченный список команд: благодаря
// детерминизму конвейера этого достаточно для побайтового
// восстановления любого состояния матча.
package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"boardgame-server/internal/engine"
)

const (
	MagicHeader string = `BGRP` // 4 байта
	Version1    uint32 = 1
)

// ReplaySession - все, что нужно для воспроизведения матча.
type ReplaySession struct {
	GameID    string
	Seed      int64
	Timestamp int64
	Players   []engine.PlayerID
	Commands  []engine.Command
}

// replayHeader - представление заголовка файла в памяти.
// Только числа и массивы: binary.Write пишет структуру целиком.
type replayHeader struct {
	Magic        [4]byte // 4 байта
	Version      uint32  // 4 байта
	Seed         int64   // 8 байт
	Timestamp    int64   // 8 байт
	GameIDLen    uint8   // 1 байт
	PlayerCount  uint8   // 1 байт
	CommandCount uint32  // 4 байта
}

// commandHeader - заголовок каждой записи команды.
type commandHeader struct {
	Timestamp  int64  // 8
	TypeLen    uint8  // 1
	PlayerLen  uint8  // 1
	PayloadLen uint16 // 2
}

// ReplayService пишет и читает реплеи в заданной директории.
type ReplayService struct {
	SaveDir string
}

func NewReplayService(dir string) *ReplayService {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		_ = os.MkdirAll(dir, 0755)
	}
	return &ReplayService{SaveDir: dir}
}

// Save сохраняет сессию в файл replay_<game>_<seed>_<ts>.bgrp.
func (s *ReplayService) Save(session *ReplaySession) (string, error) {
	filename := fmt.Sprintf("replay_%s_%d_%d.bgrp", session.GameID, session.Seed, session.Timestamp)
	path := filepath.Join(s.SaveDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := writeBinary(f, session); err != nil {
		return "", err
	}
	return path, nil
}

func writeBinary(w io.Writer, s *ReplaySession) error {
	if len(s.GameID) > 255 {
		return fmt.Errorf("game id too long: %d", len(s.GameID))
	}
	if len(s.Players) > 255 {
		return fmt.Errorf("too many players: %d", len(s.Players))
	}

	header := replayHeader{
		Version:      Version1,
		Seed:         s.Seed,
		Timestamp:    s.Timestamp,
		GameIDLen:    uint8(len(s.GameID)),
		PlayerCount:  uint8(len(s.Players)),
		CommandCount: uint32(len(s.Commands)),
	}
	copy(header.Magic[:], MagicHeader)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write([]byte(s.GameID)); err != nil {
		return err
	}

	// Состав матча: порядок игроков - часть детерминизма.
	for _, p := range s.Players {
		if len(p) > 255 {
			return fmt.Errorf("player id too long: %d", len(p))
		}
		if err := binary.Write(w, binary.LittleEndian, uint8(len(p))); err != nil {
			return err
		}
		if _, err := w.Write([]byte(p)); err != nil {
			return err
		}
	}

	for _, cmd := range s.Commands {
		typeBytes := []byte(cmd.Type)
		playerBytes := []byte(cmd.PlayerID)
		if len(typeBytes) > 255 {
			return fmt.Errorf("command type too long: %d", len(typeBytes))
		}
		if len(playerBytes) > 255 {
			return fmt.Errorf("player id too long: %d", len(playerBytes))
		}
		if len(cmd.Payload) > 65535 {
			return fmt.Errorf("payload too long: %d", len(cmd.Payload))
		}

		ch := commandHeader{
			Timestamp:  cmd.Timestamp,
			TypeLen:    uint8(len(typeBytes)),
			PlayerLen:  uint8(len(playerBytes)),
			PayloadLen: uint16(len(cmd.Payload)),
		}
		if err := binary.Write(w, binary.LittleEndian, &ch); err != nil {
			return err
		}
		if _, err := w.Write(typeBytes); err != nil {
			return err
		}
		if _, err := w.Write(playerBytes); err != nil {
			return err
		}
		if len(cmd.Payload) > 0 {
			if _, err := w.Write(cmd.Payload); err != nil {
				return err
			}
		}
	}

	return nil
}
