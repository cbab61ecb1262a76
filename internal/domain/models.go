package domain

import "time"

// Question models an MCQ question. CorrectOption holds the correct answer by
// value so it survives option reordering.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption string   `json:"correctOption"`
}

// Quiz is an ordered collection of questions, joinable by a numeric code.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt,omitempty"`
	Code        string     `json:"codeNumber,omitempty"`
}

// Answer records the outcome for a single question of a finished attempt.
// SelectedOption is empty and TimeRemaining zero when the countdown expired
// without a selection.
type Answer struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption string `json:"selectedOption"`
	IsCorrect      bool   `json:"isCorrect"`
	PointsEarned   int    `json:"pointsEarned"`
	TimeRemaining  int    `json:"timeRemaining"`
}

// Attempt is the immutable record of one completed session.
type Attempt struct {
	ID                string    `json:"id"`
	QuizID            string    `json:"quizId"`
	UserID            string    `json:"userId"`
	UserName          string    `json:"userName"`
	Score             int       `json:"score"`
	TotalQuestions    int       `json:"totalQuestions"`
	CorrectAnswers    int       `json:"correctAnswers"`
	TotalPoints       int       `json:"totalPoints"`
	MaxPossiblePoints int       `json:"maxPossiblePoints"`
	CompletedAt       time.Time `json:"completedAt"`
	Answers           []Answer  `json:"answers"`
}

// QuizRanking is the fully resolved leaderboard for a quiz: the top attempts
// by total points plus, when the requester is known, their best attempt and
// 1-based rank.
type QuizRanking struct {
	QuizID          string    `json:"quizId"`
	QuizTitle       string    `json:"quizTitle"`
	TopAttempts     []Attempt `json:"topAttempts"`
	UserBestAttempt *Attempt  `json:"userBestAttempt,omitempty"`
	UserRank        int       `json:"userRank,omitempty"`
}

// HistoryItem is one row of a user's attempt history, newest first.
type HistoryItem struct {
	AttemptID         string    `json:"id"`
	QuizID            string    `json:"quizId"`
	QuizTitle         string    `json:"quizTitle"`
	Score             int       `json:"score"`
	TotalPoints       int       `json:"totalPoints"`
	MaxPossiblePoints int       `json:"maxPossiblePoints"`
	CorrectAnswers    int       `json:"correctAnswers"`
	TotalQuestions    int       `json:"totalQuestions"`
	CompletedAt       time.Time `json:"completedAt"`
}

// SessionPhase enumerates the lifecycle of a quiz session.
type SessionPhase string

const (
	PhaseIdle       SessionPhase = "idle"
	PhaseLoading    SessionPhase = "loading"
	PhaseInProgress SessionPhase = "inProgress"
	PhaseCompleted  SessionPhase = "completed"
	PhaseError      SessionPhase = "error"
)

// SessionState is an immutable snapshot of a quiz session. A fresh snapshot
// replaces the previous one on every mutation; maps are copied before publish
// so consumers never observe partial edits.
type SessionState struct {
	Phase             SessionPhase   `json:"phase"`
	Quiz              *Quiz          `json:"quiz,omitempty"`
	CurrentQuestion   int            `json:"currentQuestion"`
	SelectedAnswers   map[int]string `json:"selectedAnswers"`
	AnswerTimes       map[int]int    `json:"answerTimes"`
	Completed         bool           `json:"completed"`
	Score             int            `json:"score"`
	CorrectAnswers    int            `json:"correctAnswers"`
	TotalPoints       int            `json:"totalPoints"`
	MaxPossiblePoints int            `json:"maxPossiblePoints"`
	TimeRemaining     int            `json:"timeRemaining"`
	TimerRunning      bool           `json:"timerRunning"`
	Loading           bool           `json:"loading"`
	Err               string         `json:"error,omitempty"`
}
