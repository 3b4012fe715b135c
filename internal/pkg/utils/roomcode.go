package utils

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const (
	RoomCodeLength   = 6
	roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var roomCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// GenerateRoomCode returns a random 6-character uppercase base-36 code
func GenerateRoomCode() string {
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	var b strings.Builder
	b.Grow(RoomCodeLength)
	for i := 0; i < RoomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(err)
		}
		b.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return b.String()
}

// NormalizeRoomCode trims and uppercases user input
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode checks a code after normalization
func ValidRoomCode(code string) bool {
	return roomCodeRegex.MatchString(NormalizeRoomCode(code))
}
