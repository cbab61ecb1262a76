package app

import (
	"math"

	"quizcode-service/internal/domain"
)

// QuestionTimeLimit is the per-question countdown in seconds. Points for a
// correct answer equal the seconds remaining when it was selected, so this is
// also the per-question point ceiling.
const QuestionTimeLimit = 30

// ScoreAnswer scores a single selection. Correctness is value equality against
// the question's CorrectOption, never option position. A correct answer earns
// the remaining seconds; anything else (wrong, empty, or expired clock) earns
// zero.
func ScoreAnswer(q domain.Question, selected string, timeRemaining int) (correct bool, points int) {
	correct = selected != "" && selected == q.CorrectOption
	if correct && timeRemaining > 0 {
		points = timeRemaining
	}
	return correct, points
}

// MaxPossiblePoints is the attainable ceiling for a session.
func MaxPossiblePoints(questionCount, timeLimit int) int {
	return questionCount * timeLimit
}

// ScorePercent maps total points to a 0-100 score, rounded half away from
// zero. Zero when nothing was attainable.
func ScorePercent(totalPoints, maxPossiblePoints int) int {
	if maxPossiblePoints <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(totalPoints) / float64(maxPossiblePoints)))
}

// BuildAnswers resolves one Answer per question index, in order, from the
// recorded selections and selection times. Skipped questions resolve to an
// empty selection with no time left.
func BuildAnswers(questions []domain.Question, selected map[int]string, times map[int]int) (answers []domain.Answer, totalPoints, correctCount int) {
	answers = make([]domain.Answer, 0, len(questions))
	for i, q := range questions {
		option := selected[i]
		remaining := times[i]
		correct, points := ScoreAnswer(q, option, remaining)
		if correct {
			correctCount++
		}
		totalPoints += points
		answers = append(answers, domain.Answer{
			QuestionIndex:  i,
			SelectedOption: option,
			IsCorrect:      correct,
			PointsEarned:   points,
			TimeRemaining:  remaining,
		})
	}
	return answers, totalPoints, correctCount
}
