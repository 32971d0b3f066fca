package practice

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/act-prep/backend/internal/catalog"
	"github.com/act-prep/backend/internal/models"
)

var (
	ErrInvalidTransition   = errors.New("action not allowed in the current session state")
	ErrNoChoice            = errors.New("no answer choice selected")
	ErrInvalidChoice       = errors.New("choice must be one of A, B, C, D")
	ErrQuestionUnavailable = errors.New("no question available")
	ErrStoreWrite          = errors.New("could not save progress")
	ErrSessionNotFound     = errors.New("practice session not found")
)

const (
	noticeUnavailable = "No question available right now."
	noticeExhausted   = "No more questions match your filters. Try selecting other standards or levels."
	noticeStoreWrite  = "Your answer could not be saved. Please try again later."
)

// State is the single state value of a practice session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateAwaitingAnswer
	StateSubmitted
	StateExhausted
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateSubmitted:
		return "submitted"
	case StateExhausted:
		return "exhausted"
	case StateUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ── Collaborators ───────────────────────────────────────

// ProgressStore persists attempt records and the resume pointer.
type ProgressStore interface {
	Load(ctx context.Context, userID int64, subject models.Subject) (*models.SubjectProgress, error)
	RecordAttempt(ctx context.Context, userID int64, subject models.Subject, rec models.AttemptRecord) (bool, error)
	AdvanceResumePointer(ctx context.Context, userID int64, subject models.Subject, to int) (int, error)
}

// QuestionSource reads question and passage documents.
type QuestionSource interface {
	GetQuestion(ctx context.Context, subject models.Subject, id int) (*models.Question, error)
	GetPassage(ctx context.Context, id int) (*models.Passage, error)
}

// CatalogSource hands out the current catalog snapshot.
type CatalogSource interface {
	Current() *catalog.Index
}

// TickerFunc starts a one-second tick source and returns its channel and a
// stop function.
type TickerFunc func() (<-chan time.Time, func())

func secondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

type Option func(*Controller)

// WithTicker replaces the per-question one-second ticker.
func WithTicker(f TickerFunc) Option {
	return func(c *Controller) { c.newTicker = f }
}

// WithClock replaces the clock used to stamp attempt records.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// ── Controller ──────────────────────────────────────────

// Controller drives one user's practice flow for one subject. All methods are
// safe for concurrent use; transitions run one at a time.
type Controller struct {
	userID    int64
	progress  ProgressStore
	questions QuestionSource
	catalog   CatalogSource
	newTicker TickerFunc
	now       func() time.Time

	mu        sync.Mutex
	state     State
	subject   models.Subject
	attempted map[int]bool
	pointer   int
	persisted int
	standards []string
	levels    []string

	question     *models.Question
	passage      *models.Passage
	passageCache *models.Passage
	choice       string
	correct      bool
	notice       string

	elapsed       int
	totalAnswered int
	totalCorrect  int

	timerGen  uint64
	stopTimer func()
}

func NewController(userID int64, progress ProgressStore, questions QuestionSource, cat CatalogSource, opts ...Option) *Controller {
	c := &Controller{
		userID:    userID,
		progress:  progress,
		questions: questions,
		catalog:   cat,
		newTicker: secondTicker,
		now:       time.Now,
		state:     StateIdle,
		pointer:   1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start loads the user's progress for subject, resets the filters to every
// standard and level of the subject, and selects the first question.
func (c *Controller) Start(ctx context.Context, subject models.Subject) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		return ErrInvalidTransition
	}
	if _, err := c.catalog.Current().Subject(subject); err != nil {
		return err
	}

	c.state = StateLoading
	progress, err := c.progress.Load(ctx, c.userID, subject)
	if err != nil {
		log.Printf("[practice] user %d: load %s progress error: %v", c.userID, subject, err)
		c.state = StateIdle
		return fmt.Errorf("load progress: %w", err)
	}

	c.subject = subject
	c.attempted = progress.AttemptedIDs()
	c.pointer = progress.ResumePointer
	if c.pointer < 1 {
		c.pointer = 1
	}
	c.persisted = c.pointer
	// a pointer naming an attempted question is left over from a lost write
	for c.attempted[c.pointer] {
		c.pointer++
	}
	if c.pointer > c.persisted {
		if err := c.syncPointer(ctx); err != nil {
			log.Printf("[practice] WARN: user %d: %s pointer repair deferred: %v", c.userID, subject, err)
		}
	}
	c.standards = append([]string(nil), models.Standards[subject]...)
	c.levels = make([]string, 0, len(models.DifficultyLevels))
	for _, lvl := range models.DifficultyLevels {
		c.levels = append(c.levels, string(lvl))
	}

	return c.load(ctx)
}

// Choose records a tentative answer. Nothing is persisted and the timer keeps
// running.
func (c *Controller) Choose(label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingAnswer {
		return ErrInvalidTransition
	}
	if !models.ValidChoice(label) {
		return ErrInvalidChoice
	}
	c.choice = label
	return nil
}

// Submit grades the chosen answer, updates the running totals and writes the
// attempt record. The resume pointer moves forward by one only when the
// submitted question is the one the pointer names.
//
// A failed write returns ErrStoreWrite; the session stays in Submitted with its
// totals intact. A failed attempt write is not retried. A failed pointer write
// is caught up by the next submit.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingAnswer {
		return ErrInvalidTransition
	}
	if c.choice == "" {
		return ErrNoChoice
	}

	c.haltTimer()
	q := c.question
	c.correct = c.choice == q.CorrectAnswer
	c.state = StateSubmitted
	c.totalAnswered++
	if c.correct {
		c.totalCorrect++
	}
	c.attempted[q.ID] = true

	rec := models.AttemptRecord{
		QuestionID:       q.ID,
		Selected:         c.choice,
		Correct:          c.correct,
		AnsweredAt:       c.now().UTC(),
		TimeSpentSeconds: c.elapsed,
	}
	created, err := c.progress.RecordAttempt(ctx, c.userID, c.subject, rec)
	if err != nil {
		log.Printf("[practice] user %d: record %s/%d error: %v", c.userID, c.subject, q.ID, err)
		c.notice = noticeStoreWrite
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if !created {
		log.Printf("[practice] WARN: user %d already has an attempt for %s/%d, kept the first one", c.userID, c.subject, q.ID)
	}

	if q.ID == c.pointer {
		c.pointer++
	}
	if c.pointer <= c.persisted {
		return nil
	}
	if err := c.syncPointer(ctx); err != nil {
		log.Printf("[practice] user %d: advance %s pointer error: %v", c.userID, c.subject, err)
		c.notice = noticeStoreWrite
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

// syncPointer writes the in-memory pointer to the store. A store that is
// already further along wins. Caller holds c.mu.
func (c *Controller) syncPointer(ctx context.Context) error {
	stored, err := c.progress.AdvanceResumePointer(ctx, c.userID, c.subject, c.pointer)
	if err != nil {
		return err
	}
	c.persisted = stored
	if stored > c.pointer {
		c.pointer = stored
	}
	return nil
}

// Next moves on from a submitted question.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSubmitted {
		return ErrInvalidTransition
	}
	return c.load(ctx)
}

// SetFilters replaces the selected standards and levels and reselects from
// the resume pointer. Attempts and totals are kept. An empty standards list
// matches nothing; an empty levels list disables the level filter.
func (c *Controller) SetFilters(ctx context.Context, standards, levels []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle || c.state == StateLoading {
		return ErrInvalidTransition
	}
	c.standards = append([]string{}, standards...)
	c.levels = append([]string{}, levels...)
	return c.load(ctx)
}

// Close cancels the timer. Whatever was on screen is dropped without writing
// an attempt.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.haltTimer()
	c.state = StateIdle
	c.question = nil
	c.passage = nil
	c.choice = ""
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of what the client should render.
func (c *Controller) Snapshot() models.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := models.SessionView{
		State:          c.state.String(),
		Subject:        c.subject,
		SelectedChoice: c.choice,
		Submitted:      c.state == StateSubmitted,
		ElapsedSeconds: c.elapsed,
		TotalAnswered:  c.totalAnswered,
		TotalCorrect:   c.totalCorrect,
		Accuracy:       Accuracy(c.totalCorrect, c.totalAnswered),
		ResumePointer:  c.pointer,
		Standards:      append([]string{}, c.standards...),
		Levels:         append([]string{}, c.levels...),
		Notice:         c.notice,
	}
	if c.question != nil {
		view.Question = c.question.Clone()
	}
	if c.passage != nil {
		view.Passage = c.passage.Clone()
	}
	if c.state == StateSubmitted {
		correct := c.correct
		view.Correct = &correct
	}
	return view
}

// ── Transitions ─────────────────────────────────────────

// load runs the selector from the resume pointer and fetches the chosen
// question. Caller holds c.mu.
func (c *Controller) load(ctx context.Context) error {
	c.haltTimer()
	c.state = StateLoading
	c.question = nil
	c.passage = nil
	c.choice = ""
	c.correct = false
	c.notice = ""
	c.elapsed = 0

	id, found := SelectNext(c.catalog.Current(), Query{
		Subject:   c.subject,
		StartID:   c.pointer,
		Attempted: c.attempted,
		Standards: c.standards,
		Levels:    c.levels,
	})
	if !found {
		c.state = StateExhausted
		c.notice = noticeExhausted
		return nil
	}

	q, err := c.questions.GetQuestion(ctx, c.subject, id)
	if err != nil {
		return c.unavailable(fmt.Sprintf("question %s/%d", c.subject, id), err)
	}

	if q.PassageID != nil {
		pid := *q.PassageID
		if c.passageCache == nil || c.passageCache.ID != pid {
			p, err := c.questions.GetPassage(ctx, pid)
			if err != nil {
				return c.unavailable(fmt.Sprintf("passage %d for question %s/%d", pid, c.subject, id), err)
			}
			c.passageCache = p
		}
		c.passage = c.passageCache
	}

	c.question = q
	c.state = StateAwaitingAnswer
	c.startTimer()
	return nil
}

func (c *Controller) unavailable(what string, err error) error {
	log.Printf("[practice] user %d: fetch %s error: %v", c.userID, what, err)
	c.state = StateUnavailable
	c.notice = noticeUnavailable
	return fmt.Errorf("%w: %s: %v", ErrQuestionUnavailable, what, err)
}

// startTimer cancels any running ticker and starts a fresh one. Ticks from an
// older generation are ignored. Caller holds c.mu.
func (c *Controller) startTimer() {
	c.haltTimer()
	ticks, stop := c.newTicker()
	done := make(chan struct{})
	c.timerGen++
	gen := c.timerGen

	c.stopTimer = func() {
		stop()
		close(done)
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticks:
				c.mu.Lock()
				if c.timerGen == gen && c.state == StateAwaitingAnswer {
					c.elapsed++
				}
				c.mu.Unlock()
			}
		}
	}()
}

// haltTimer stops the running ticker, if any. Caller holds c.mu.
func (c *Controller) haltTimer() {
	if c.stopTimer == nil {
		return
	}
	c.stopTimer()
	c.stopTimer = nil
	c.timerGen++
}
