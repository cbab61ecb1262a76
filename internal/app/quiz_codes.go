package app

import (
	"context"
	"fmt"
	"math/rand"

	"quizcode-service/internal/domain"
)

// CodeUniqueness reports whether a candidate join code is free. Catalog
// implementations that support authoring provide it.
type CodeUniqueness interface {
	IsCodeUnique(ctx context.Context, code string) (bool, error)
}

const (
	minCodeLength     = 4
	maxCodeLength     = 10
	attemptsPerLength = 10
	codeDigits        = "0123456789"
	codeNonZeroDigits = "123456789"
)

// GenerateUniqueCode produces a numeric join code not yet present in the
// store. It tries a bounded number of candidates per length, escalating from
// four to ten digits, and fails hard once every length is exhausted rather
// than retrying forever.
func GenerateUniqueCode(ctx context.Context, store CodeUniqueness, rnd *rand.Rand) (string, error) {
	for length := minCodeLength; length <= maxCodeLength; length++ {
		for attempt := 0; attempt < attemptsPerLength; attempt++ {
			code := randomCode(rnd, length)
			unique, err := store.IsCodeUnique(ctx, code)
			if err != nil {
				return "", fmt.Errorf("check code uniqueness: %w", err)
			}
			if unique {
				return code, nil
			}
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}

// randomCode builds a numeric code whose first digit is never zero.
func randomCode(rnd *rand.Rand, length int) string {
	buf := make([]byte, length)
	buf[0] = codeNonZeroDigits[rnd.Intn(len(codeNonZeroDigits))]
	for i := 1; i < length; i++ {
		buf[i] = codeDigits[rnd.Intn(len(codeDigits))]
	}
	return string(buf)
}
