package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"triage-sim/internal/catalog"
	"triage-sim/internal/llm"
	"triage-sim/pkg"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTurnFailed is returned when the AI collaborator errors out or returns no
// text for a turn.  The session's stored score is left untouched.
var ErrTurnFailed = errors.New("conversation turn failed")

// arrivalTimeLayout formats the arrival timestamp shown on the triage board.
const arrivalTimeLayout = "03:04:05 PM"

// Archiver receives completed sessions and turns for instructor review.
// Implementations must tolerate being called from short-lived goroutines.
type Archiver interface {
	RecordSession(ctx context.Context, sessionID string, profile *pkg.CaseProfile, startedAt time.Time) error
	RecordTurn(ctx context.Context, turn pkg.ArchivedTurn) error
}

// TurnNotifier broadcasts that a session's archive was updated.
type TurnNotifier interface {
	Notify(ctx context.Context, sessionID string) error
}

// Engine orchestrates the simulation: it builds the persona prompt, opens
// conversations with the AI collaborator, tracks sessions, and folds each
// parsed turn into the running score.
type Engine struct {
	catalog  *catalog.Catalog
	llm      llm.Client
	store    *Store
	archive  Archiver     // nil disables archiving
	notifier TurnNotifier // nil disables notifications
	logger   zerolog.Logger

	turnTimeout time.Duration
}

// NewEngine constructs an Engine.  archive and notifier may be nil.  A
// non-positive turnTimeout falls back to 60 seconds, the dominant latency
// being the network round trip to the AI service.
func NewEngine(cat *catalog.Catalog, client llm.Client, store *Store, archive Archiver, notifier TurnNotifier, logger zerolog.Logger, turnTimeout time.Duration) *Engine {
	if turnTimeout <= 0 {
		turnTimeout = 60 * time.Second
	}
	return &Engine{
		catalog:     cat,
		llm:         client,
		store:       store,
		archive:     archive,
		notifier:    notifier,
		logger:      logger,
		turnTimeout: turnTimeout,
	}
}

// Start opens a new simulation session for the given case.  The persona
// prompt is sent as the conversation's first turn to warm the dialogue; its
// reply is discarded.  The patient's first visible message is the profile's
// configured opening line.  No session is registered if anything fails.
func (e *Engine) Start(ctx context.Context, caseID string) (*pkg.StartResult, error) {
	profile, err := e.catalog.Lookup(caseID)
	if err != nil {
		return nil, err
	}

	conv, err := e.llm.NewConversation(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open conversation: %v", ErrTurnFailed, err)
	}

	tctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()
	if _, err := conv.Send(tctx, BuildPatientPrompt(profile)); err != nil {
		conv.Close()
		return nil, fmt.Errorf("%w: send instructions: %v", ErrTurnFailed, err)
	}

	now := time.Now()
	sess := &Session{
		ID:          uuid.NewString(),
		Profile:     profile,
		Conv:        conv,
		ArrivalTime: now,
	}
	if err := e.store.Create(sess); err != nil {
		conv.Close()
		return nil, err
	}

	// Recorded before returning: triage_turns references the session row, so
	// it must exist before the first turn can be archived.
	if e.archive != nil {
		e.archiveSession(sess.ID, profile, now)
	}

	e.logger.Info().
		Str("session_id", sess.ID).
		Str("case_id", caseID).
		Msg("session started")

	return &pkg.StartResult{
		SessionID:      sess.ID,
		PatientText:    profile.OpeningLine,
		CaseID:         profile.ID,
		PatientName:    profile.Name,
		ESIGoal:        profile.ESILevel,
		Age:            profile.Age,
		Sex:            profile.Sex,
		ChiefComplaint: profile.ChiefComplaint,
		ArrivalTime:    now.Format(arrivalTimeLayout),
		InitialScore:   0,
	}, nil
}

// Advance runs one student turn against an existing session and returns the
// patient narrative, the updated score, and the real-time feedback string.
// Turns within a session are serialized; the score is only mutated after a
// successful round trip.
func (e *Engine) Advance(ctx context.Context, sessionID, userMessage string) (*pkg.TurnResult, error) {
	sess, err := e.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, e.turnTimeout)
	defer cancel()
	raw, err := sess.Conv.Send(tctx, userMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrTurnFailed)
	}

	parsed := ParseReply(raw)
	sess.Score += parsed.Delta
	score := sess.Score

	if e.archive != nil {
		go e.archiveTurn(pkg.ArchivedTurn{
			SessionID:   sess.ID,
			StudentText: userMessage,
			PatientText: parsed.Narrative,
			ScoreDelta:  parsed.Delta,
			ScoreAfter:  score,
			Feedback:    parsed.Feedback,
		})
	}

	e.logger.Info().
		Str("session_id", sess.ID).
		Int("delta", parsed.Delta).
		Int("score", score).
		Msg("turn advanced")

	return &pkg.TurnResult{
		PatientText:      parsed.Narrative,
		CurrentScore:     score,
		RealTimeFeedback: parsed.Feedback,
	}, nil
}

// SessionExists reports whether a live session with the given id exists.  A
// positive lookup also counts as activity for TTL purposes.
func (e *Engine) SessionExists(sessionID string) bool {
	_, err := e.store.Get(sessionID)
	return err == nil
}

// Archive failures are logged and never affect the student's conversation.
// archiveTurn runs outside the request path; archiveSession runs inline
// during Start so archived turns always reference an existing session row.

func (e *Engine) archiveSession(sessionID string, profile *pkg.CaseProfile, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.archive.RecordSession(ctx, sessionID, profile, startedAt); err != nil {
		e.logger.Warn().Err(err).Str("session_id", sessionID).Msg("archive session")
	}
}

func (e *Engine) archiveTurn(turn pkg.ArchivedTurn) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.archive.RecordTurn(ctx, turn); err != nil {
		e.logger.Warn().Err(err).Str("session_id", turn.SessionID).Msg("archive turn")
		return
	}
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, turn.SessionID); err != nil {
			e.logger.Warn().Err(err).Str("session_id", turn.SessionID).Msg("notify turn")
		}
	}
}
