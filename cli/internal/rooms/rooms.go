// Package rooms suggests and validates room names.
package rooms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pion/randutil"
)

const (
	MaxLength   = 64
	suffixRunes = "0123456789"
)

var ErrInvalidName = errors.New("invalid room name")

// Suggest returns a random memorable room name such as "sleepy-otter-ramen-42".
func Suggest() (string, error) {
	parts := make([]string, 0, 4)
	for _, list := range [][]string{adjectives, animals, things} {
		word, err := pick(list)
		if err != nil {
			return "", err
		}
		parts = append(parts, word)
	}

	suffix, err := randutil.GenerateCryptoRandomString(2, suffixRunes)
	if err != nil {
		return "", fmt.Errorf("generate room suffix: %w", err)
	}
	return strings.Join(append(parts, suffix), "-"), nil
}

func pick(list []string) (string, error) {
	n, err := randutil.CryptoUint64()
	if err != nil {
		return "", fmt.Errorf("pick room word: %w", err)
	}
	return list[n%uint64(len(list))], nil
}

// Normalize trims and lowercases name and checks that it only uses letters,
// digits, '-' and '_'.
func Normalize(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxLength)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", fmt.Errorf("%w: character %q not allowed", ErrInvalidName, r)
		}
	}
	return name, nil
}
