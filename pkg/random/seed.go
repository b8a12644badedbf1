package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed генерирует случайное зерно через crypto/rand.
// Используется при старте матча, когда явное зерно не задано;
// полученное значение сохраняется в реплей для воспроизведения партии.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
