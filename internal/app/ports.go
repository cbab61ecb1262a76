package app

import (
	"context"

	"quizcode-service/internal/domain"
)

// Catalog supplies quiz definitions. Authoring lives elsewhere; the engine and
// ranking service only read from it.
type Catalog interface {
	GetQuizByCode(ctx context.Context, code string) (domain.Quiz, error)
	GetQuizByID(ctx context.Context, id string) (domain.Quiz, error)
	GetAllQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// AttemptStore is append-only persistence for completed attempts.
type AttemptStore interface {
	Append(ctx context.Context, attempt domain.Attempt) (string, error)
	// TopByQuiz returns attempts for a quiz ordered by total points descending,
	// ties broken by earlier completion time.
	TopByQuiz(ctx context.Context, quizID string, limit int) ([]domain.Attempt, error)
	BestByQuizAndUser(ctx context.Context, quizID, userID string, limit int) ([]domain.Attempt, error)
	CountWithMorePoints(ctx context.Context, quizID string, points int) (int, error)
	// ByUser returns a user's attempts ordered by completion time descending.
	ByUser(ctx context.Context, userID string) ([]domain.Attempt, error)
}

// AuthContext identifies the caller. Real authentication is out of scope;
// transports supply an implementation bound to the connection.
type AuthContext interface {
	CurrentUserID() (string, bool)
	CurrentDisplayName() (string, bool)
	IsAuthenticated() bool
}

// StaticAuth is an AuthContext with fixed identity. A zero UserID means
// anonymous.
type StaticAuth struct {
	UserID      string
	DisplayName string
}

func (a StaticAuth) CurrentUserID() (string, bool) {
	return a.UserID, a.UserID != ""
}

func (a StaticAuth) CurrentDisplayName() (string, bool) {
	return a.DisplayName, a.DisplayName != ""
}

func (a StaticAuth) IsAuthenticated() bool {
	return a.UserID != ""
}
