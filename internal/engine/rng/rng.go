// Package rng детерминированный источник случайности для спина.
//
// Поток байт строится как HMAC-SHA256(serverSeed, "clientSeed:nonce:round"),
// по 32 байта на раунд. Одинаковый seed дает одинаковую последовательность.
package rng

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"infinity_stones/internal/model"
)

// Source равномерные числа в [0,1)
type Source interface {
	Draw() float64
}

// Stream HMAC поток, реализует Source
type Stream struct {
	serverSeed []byte
	clientSeed string
	nonce      int64
	round      uint64
	pos        int
	buf        [sha256.Size]byte
	draws      int
}

// New поток по seed спина
func New(seed model.Seed) *Stream {
	s := &Stream{
		serverSeed: []byte(seed.ServerSeed),
		clientSeed: seed.ClientSeed,
		nonce:      seed.Nonce,
	}
	s.generateRound()
	return s
}

func (s *Stream) generateRound() {
	h := hmac.New(sha256.New, s.serverSeed)
	fmt.Fprintf(h, "%s:%d:%d", s.clientSeed, s.nonce, s.round)
	copy(s.buf[:], h.Sum(nil))
	s.pos = 0
}

func (s *Stream) next() byte {
	if s.pos >= len(s.buf) {
		s.round++
		s.generateRound()
	}
	b := s.buf[s.pos]
	s.pos++
	return b
}

// Draw 53 бита из 8 байт потока
func (s *Stream) Draw() float64 {
	var b [8]byte
	for i := range b {
		b[i] = s.next()
	}
	s.draws++
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53)
}

// Draws сколько чисел уже выдано, для аудита
func (s *Stream) Draws() int {
	return s.draws
}

// IntN равномерное целое в [0,n)
func IntN(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	v := int(src.Draw() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Chance true с вероятностью p
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	return src.Draw() < p
}

// NewServerSeed 32 байта из crypto/rand в hex
func NewServerSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashSeed коммит на server seed, публикуется до раскрытия
func HashSeed(serverSeed string) string {
	h := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(h[:])
}
