package app

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"quizcode-service/internal/domain"
)

// DefaultMaxQuestions caps how many questions a session draws from a quiz.
// Larger quizzes are sampled down to this many at load time.
const DefaultMaxQuestions = 10

// Engine owns a single quiz session: question navigation, the per-question
// countdown, answer capture, and completion. Callers never get return values;
// every effect is observable through state snapshots delivered to subscribers.
// Failures land in the snapshot's Err field and the session carries on.
type Engine struct {
	catalog  Catalog
	attempts AttemptStore
	auth     AuthContext

	timeLimit    int
	maxQuestions int
	tick         time.Duration
	now          func() time.Time
	rnd          *rand.Rand

	mu          sync.Mutex
	state       domain.SessionState
	subscribers map[chan domain.SessionState]struct{}
	timerStop   chan struct{}
	// generation invalidates in-flight loads and async persists after a reset
	generation uint64
}

func NewEngine(catalog Catalog, attempts AttemptStore, auth AuthContext) *Engine {
	return NewEngineWithClock(catalog, attempts, auth, time.Now, time.Second)
}

// NewEngineWithClock allows deterministic timestamps and a shortened tick in tests.
func NewEngineWithClock(catalog Catalog, attempts AttemptStore, auth AuthContext, now func() time.Time, tick time.Duration) *Engine {
	e := &Engine{
		catalog:      catalog,
		attempts:     attempts,
		auth:         auth,
		timeLimit:    QuestionTimeLimit,
		maxQuestions: DefaultMaxQuestions,
		tick:         tick,
		now:          now,
		rnd:          rand.New(rand.NewSource(now().UnixNano())),
		subscribers:  make(map[chan domain.SessionState]struct{}),
	}
	e.state = e.idleState()
	return e
}

func (e *Engine) idleState() domain.SessionState {
	return domain.SessionState{
		Phase:           domain.PhaseIdle,
		SelectedAnswers: make(map[int]string),
		AnswerTimes:     make(map[int]int),
		TimeRemaining:   e.timeLimit,
	}
}

// Subscribe returns a channel that receives the current snapshot immediately
// and every subsequent one in order. The caller must invoke the returned
// cancel function to avoid leaks.
func (e *Engine) Subscribe() (<-chan domain.SessionState, func()) {
	ch := make(chan domain.SessionState, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	initial := e.snapshotLocked()
	e.mu.Unlock()

	ch <- initial

	cancel := func() {
		e.mu.Lock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// State returns the current snapshot.
func (e *Engine) State() domain.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// LoadByCode looks up a quiz by its join code and starts a session on it.
// Oversized question sets are sampled down and every question's options are
// reshuffled; CorrectOption tracks the answer by value so the shuffle is safe.
func (e *Engine) LoadByCode(ctx context.Context, code string) {
	e.mu.Lock()
	e.stopTimerLocked()
	e.generation++
	gen := e.generation
	st := e.idleState()
	st.Phase = domain.PhaseLoading
	st.Loading = true
	e.state = st
	e.broadcastLocked()
	e.mu.Unlock()

	quiz, err := e.catalog.GetQuizByCode(ctx, code)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		// session was reset or reloaded while the catalog call was in flight
		return
	}
	if err != nil {
		e.state.Loading = false
		e.state.Phase = domain.PhaseError
		if errors.Is(err, domain.ErrQuizNotFound) {
			e.state.Err = "no quiz matches this code"
		} else {
			e.state.Err = "failed to load quiz: " + err.Error()
		}
		e.broadcastLocked()
		return
	}

	quiz.Questions = e.prepareQuestions(quiz.Questions)
	st = e.idleState()
	st.Phase = domain.PhaseInProgress
	st.Quiz = &quiz
	st.MaxPossiblePoints = MaxPossiblePoints(len(quiz.Questions), e.timeLimit)
	e.state = st
	e.startTimerLocked(true)
	e.broadcastLocked()
}

// prepareQuestions samples down oversized question sets and shuffles each
// question's options. The input slices are never mutated.
func (e *Engine) prepareQuestions(questions []domain.Question) []domain.Question {
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	e.rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	if len(qs) > e.maxQuestions {
		qs = qs[:e.maxQuestions]
	}
	for i := range qs {
		opts := make([]string, len(qs[i].Options))
		copy(opts, qs[i].Options)
		e.rnd.Shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
		qs[i].Options = opts
	}
	return qs
}

// SelectAnswer records a selection for a question at the live countdown value.
// Selecting again for the same index overwrites the previous choice.
func (e *Engine) SelectAnswer(questionIndex int, option string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selectAnswerLocked(questionIndex, option, e.state.TimeRemaining)
}

// SelectAnswerAt records a selection with an explicit time-remaining value.
func (e *Engine) SelectAnswerAt(questionIndex int, option string, timeRemaining int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if timeRemaining < 0 {
		timeRemaining = 0
	}
	e.selectAnswerLocked(questionIndex, option, timeRemaining)
}

func (e *Engine) selectAnswerLocked(questionIndex int, option string, timeRemaining int) {
	if e.state.Phase != domain.PhaseInProgress || e.state.Quiz == nil {
		return
	}
	if questionIndex < 0 || questionIndex >= len(e.state.Quiz.Questions) {
		return
	}
	e.state.SelectedAnswers[questionIndex] = option
	e.state.AnswerTimes[questionIndex] = timeRemaining
	e.broadcastLocked()
}

// NextQuestion advances to the next question and restarts the countdown.
func (e *Engine) NextQuestion() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.goToQuestionLocked(e.state.CurrentQuestion + 1)
}

// PreviousQuestion moves back one question and restarts the countdown.
func (e *Engine) PreviousQuestion() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.goToQuestionLocked(e.state.CurrentQuestion - 1)
}

// GoToQuestion jumps to a question directly. Out-of-range indexes clamp.
func (e *Engine) GoToQuestion(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.goToQuestionLocked(index)
}

func (e *Engine) goToQuestionLocked(index int) {
	if e.state.Phase != domain.PhaseInProgress || e.state.Quiz == nil {
		return
	}
	if index < 0 {
		index = 0
	}
	if max := len(e.state.Quiz.Questions) - 1; index > max {
		index = max
	}
	e.state.CurrentQuestion = index
	e.startTimerLocked(true)
	e.broadcastLocked()
}

// PauseTimer freezes the countdown at its current value.
func (e *Engine) PauseTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != domain.PhaseInProgress {
		return
	}
	e.stopTimerLocked()
	e.broadcastLocked()
}

// ResumeTimer restarts a paused countdown without resetting it.
func (e *Engine) ResumeTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != domain.PhaseInProgress || e.timerStop != nil {
		return
	}
	e.startTimerLocked(false)
	e.broadcastLocked()
}

// CompleteQuiz finishes the session: the countdown stops, every question
// resolves to exactly one answer, the attempt is scored and appended to the
// store asynchronously. Completion requires an identified user; anonymous
// callers get an error snapshot and no attempt is written.
func (e *Engine) CompleteQuiz(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completeLocked(ctx)
}

func (e *Engine) completeLocked(ctx context.Context) {
	e.stopTimerLocked()
	if e.state.Quiz == nil || e.state.Phase != domain.PhaseInProgress {
		e.state.Err = domain.ErrNoActiveSession.Error()
		e.broadcastLocked()
		return
	}
	if !e.auth.IsAuthenticated() {
		// Session stays in progress; the caller may sign in and retry.
		e.state.Err = domain.ErrNotAuthenticated.Error()
		e.broadcastLocked()
		return
	}

	userID, _ := e.auth.CurrentUserID()
	userName, ok := e.auth.CurrentDisplayName()
	if !ok {
		userName = "Anonymous player"
	}

	questions := e.state.Quiz.Questions
	answers, totalPoints, correctCount := BuildAnswers(questions, e.state.SelectedAnswers, e.state.AnswerTimes)
	maxPoints := MaxPossiblePoints(len(questions), e.timeLimit)

	attempt := domain.Attempt{
		QuizID:            e.state.Quiz.ID,
		UserID:            userID,
		UserName:          userName,
		Score:             ScorePercent(totalPoints, maxPoints),
		TotalQuestions:    len(questions),
		CorrectAnswers:    correctCount,
		TotalPoints:       totalPoints,
		MaxPossiblePoints: maxPoints,
		CompletedAt:       e.now(),
		Answers:           answers,
	}

	e.state.Phase = domain.PhaseCompleted
	e.state.Completed = true
	e.state.Score = attempt.Score
	e.state.CorrectAnswers = correctCount
	e.state.TotalPoints = totalPoints
	e.state.MaxPossiblePoints = maxPoints
	e.state.Err = ""
	e.broadcastLocked()

	// The session is complete regardless of the store outcome; a write failure
	// only surfaces as a non-fatal error on a later snapshot.
	go e.persistAttempt(context.WithoutCancel(ctx), attempt, e.generation)
}

func (e *Engine) persistAttempt(ctx context.Context, attempt domain.Attempt, gen uint64) {
	if _, err := e.attempts.Append(ctx, attempt); err != nil {
		log.Printf("append attempt for quiz %s: %v", attempt.QuizID, err)
		e.mu.Lock()
		if e.generation == gen {
			e.state.Err = domain.ErrAttemptStoreUnavailable.Error()
			e.broadcastLocked()
		}
		e.mu.Unlock()
	}
}

// ResetQuiz cancels the timer and returns the engine to idle.
func (e *Engine) ResetQuiz() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	e.generation++
	e.state = e.idleState()
	e.broadcastLocked()
}

// startTimerLocked cancels any running countdown and starts a fresh one.
// With reset, the countdown returns to the full question time limit.
func (e *Engine) startTimerLocked(reset bool) {
	e.stopTimerLocked()
	if reset {
		e.state.TimeRemaining = e.timeLimit
	}
	stop := make(chan struct{})
	e.timerStop = stop
	e.state.TimerRunning = true
	go e.runTimer(stop)
}

func (e *Engine) stopTimerLocked() {
	if e.timerStop != nil {
		close(e.timerStop)
		e.timerStop = nil
	}
	e.state.TimerRunning = false
}

func (e *Engine) runTimer(stop chan struct{}) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !e.tickOnce(stop) {
				return
			}
		}
	}
}

// tickOnce applies one countdown second. It reports whether this timer is
// still the live one and should keep ticking; a tick raced against a
// navigation or reset is discarded by the stop-channel identity check.
func (e *Engine) tickOnce(stop chan struct{}) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timerStop != stop {
		return false
	}

	if e.state.TimeRemaining > 0 {
		e.state.TimeRemaining--
		e.broadcastLocked()
		return true
	}

	// Countdown expired. An unanswered question resolves to an empty answer
	// with no time left, so a completed session always carries one answer per
	// question.
	idx := e.state.CurrentQuestion
	if _, answered := e.state.SelectedAnswers[idx]; !answered {
		e.state.SelectedAnswers[idx] = ""
		e.state.AnswerTimes[idx] = 0
	}

	if idx < len(e.state.Quiz.Questions)-1 {
		e.state.CurrentQuestion = idx + 1
		e.startTimerLocked(true)
		e.broadcastLocked()
	} else {
		e.completeLocked(context.Background())
	}
	return false
}

func (e *Engine) broadcastLocked() {
	snapshot := e.snapshotLocked()
	for ch := range e.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the oldest pending snapshot so slow readers never block
			// the session.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func (e *Engine) snapshotLocked() domain.SessionState {
	st := e.state
	selected := make(map[int]string, len(st.SelectedAnswers))
	for k, v := range st.SelectedAnswers {
		selected[k] = v
	}
	times := make(map[int]int, len(st.AnswerTimes))
	for k, v := range st.AnswerTimes {
		times[k] = v
	}
	st.SelectedAnswers = selected
	st.AnswerTimes = times
	return st
}
