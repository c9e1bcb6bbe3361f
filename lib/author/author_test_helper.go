package author

import "github.com/brianvoe/gofakeit/v7"

// NewRandomAuthorName returns a unique looking display name for tests.
func NewRandomAuthorName() string {
	return gofakeit.Name() + " " + gofakeit.LetterN(6)
}
