package parsing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/llm"
)

// Options is the immutable configuration of one engine instance. It is
// passed in at construction and never mutated by the engine; ambient
// process state is never consulted from extraction logic.
type Options struct {
	// ConfidenceThreshold is the single comparison point deciding whether
	// a generative result is accepted outright.
	ConfidenceThreshold float64

	// UseFewShot embeds worked examples into extraction prompts.
	UseFewShot bool

	// BatchConcurrency bounds how many emails a batch run processes at
	// once.
	BatchConcurrency int
}

// DefaultOptions mirror the recognized configuration defaults.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold: 0.6,
		UseFewShot:          true,
		BatchConcurrency:    5,
	}
}

// ruleExtractor is the deterministic fallback seam. Production wires the
// regex RuleParser; tests substitute a counting wrapper to assert the
// accept path never reaches it.
type ruleExtractor interface {
	Parse(email *domain.RawEmail) *domain.ExtractionCandidate
}

// Engine coordinates the generative path, the rule fallback and the
// collaborator sinks for one email at a time.
//
// Per item it walks a fixed state machine:
//
//	START → GENERATIVE_ATTEMPT → {ACCEPT | FALLBACK_ATTEMPT} → SELECT → DONE
//
// Every internal branch terminates in DONE with a candidate; only
// collaborator persistence failures propagate to the caller.
type Engine struct {
	opts     Options
	llm      *llm.Service
	rules    ruleExtractor
	source   EmailSource
	txns     TransactionStore
	attempts AttemptLog
	status   StatusUpdater
	log      zerolog.Logger

	totals statCounters
}

// NewEngine wires an engine from its collaborators.
func NewEngine(
	opts Options,
	svc *llm.Service,
	source EmailSource,
	txns TransactionStore,
	attempts AttemptLog,
	status StatusUpdater,
	log zerolog.Logger,
) *Engine {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultOptions().ConfidenceThreshold
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = DefaultOptions().BatchConcurrency
	}
	return &Engine{
		opts:     opts,
		llm:      svc,
		rules:    NewRuleParser(),
		source:   source,
		txns:     txns,
		attempts: attempts,
		status:   status,
		log:      log,
	}
}

// Stats returns cumulative engine-lifetime counters.
func (e *Engine) Stats() BatchStats {
	return e.totals.snapshot()
}

// ParseOne parses a single email. When the email was already parsed and
// forceReparse is false, the stored candidate is returned without invoking
// any provider. Only typed configuration or persistence errors are
// returned; extraction itself cannot fail.
func (e *Engine) ParseOne(ctx context.Context, emailID string, forceReparse bool) (*domain.ExtractionCandidate, error) {
	email, err := e.source.GetEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmailNotFound, emailID)
	}

	if email.Status == domain.EmailParsed && !forceReparse {
		stored, err := e.txns.FindByEmail(ctx, emailID)
		if err != nil {
			return nil, &PersistenceError{Op: "transaction", Err: err}
		}
		if stored != nil {
			e.log.Debug().Str("email_id", emailID).Msg("Returning stored parse result")
			return stored, nil
		}
	}

	return e.run(ctx, email, e.opts.ConfidenceThreshold)
}

// run executes one orchestration: extract, then apply the DONE side
// effects (persist candidate, write attempt record, mark email status).
func (e *Engine) run(ctx context.Context, email *domain.RawEmail, threshold float64) (*domain.ExtractionCandidate, error) {
	e.totals.fetched.Add(1)

	cand, attempt, err := e.extract(ctx, email, threshold)
	if err != nil {
		// Provider configuration errors are fatal at first use, never
		// silently substituted with another provider.
		e.totals.errors.Add(1)
		return nil, err
	}

	if cand.IsTransaction {
		if perr := e.txns.Persist(ctx, cand, email.EmailID); perr != nil {
			e.failRun(ctx, email.EmailID, attempt, perr)
			return nil, &PersistenceError{Op: "transaction", Err: perr}
		}
	}

	if aerr := e.attempts.PersistAttempt(ctx, attempt); aerr != nil {
		e.totals.errors.Add(1)
		_ = e.status.Mark(ctx, email.EmailID, domain.EmailFailed)
		return nil, &PersistenceError{Op: "attempt_log", Err: aerr}
	}

	finalStatus := domain.EmailParsed
	if !cand.IsTransaction {
		finalStatus = domain.EmailUnparseable
	}
	if serr := e.status.Mark(ctx, email.EmailID, finalStatus); serr != nil {
		e.totals.errors.Add(1)
		return nil, &PersistenceError{Op: "status", Err: serr}
	}

	e.recordOutcome(cand)

	e.log.Info().
		Str("email_id", email.EmailID).
		Str("method", string(cand.Method)).
		Bool("is_transaction", cand.IsTransaction).
		Float64("confidence", cand.Confidence).
		Str("band", string(domain.Band(cand.Confidence))).
		Msg("Email parsed")

	return cand, nil
}

func (e *Engine) failRun(ctx context.Context, emailID string, attempt *domain.AttemptRecord, cause error) {
	e.totals.errors.Add(1)
	attempt.Succeeded = false
	attempt.ErrorKind = "persistence"
	// Best effort: the attempt record is diagnostic, its loss must not
	// mask the original persistence failure.
	if aerr := e.attempts.PersistAttempt(ctx, attempt); aerr != nil {
		e.log.Warn().Err(aerr).Str("email_id", emailID).Msg("Failed to write attempt record")
	}
	if serr := e.status.Mark(ctx, emailID, domain.EmailFailed); serr != nil {
		e.log.Warn().Err(serr).Str("email_id", emailID).Msg("Failed to mark email failed")
	}
	e.log.Error().Err(cause).Str("email_id", emailID).Msg("Parse run failed on persistence")
}

func (e *Engine) recordOutcome(cand *domain.ExtractionCandidate) {
	e.totals.processed.Add(1)
	switch {
	case !cand.IsTransaction:
		e.totals.unparseable.Add(1)
	case cand.Method == domain.MethodGenerative:
		e.totals.generativeUsed.Add(1)
	case cand.Method == domain.MethodRule:
		e.totals.ruleUsed.Add(1)
	}
}

// parseState names the orchestration states. The transitions are encoded
// in extract; naming them keeps each branch independently testable by
// forcing it through the mock provider.
type parseState int

const (
	stateStart parseState = iota
	stateGenerativeAttempt
	stateAccept
	stateFallbackAttempt
	stateSelect
	stateDone
)

// extract runs the state machine for one email. It returns an error only
// for provider configuration failures; every other branch produces a
// candidate, possibly a non-transaction one.
func (e *Engine) extract(ctx context.Context, email *domain.RawEmail, threshold float64) (*domain.ExtractionCandidate, *domain.AttemptRecord, error) {
	var (
		genCand  *domain.ExtractionCandidate
		ruleCand *domain.ExtractionCandidate
		final    *domain.ExtractionCandidate
		rawText  string
		errKind  string
	)

	state := stateStart
	for state != stateDone {
		switch state {
		case stateStart:
			// Always attempted first; in test/offline mode the mock
			// provider still routes through this state.
			state = stateGenerativeAttempt

		case stateGenerativeAttempt:
			res, err := e.llm.Generate(ctx, buildPrompt(email, e.opts.UseFewShot))
			if err != nil {
				var pe *llm.ProviderError
				if errors.As(err, &pe) && !pe.Recoverable() {
					return nil, nil, err
				}
				errKind = string(llm.KindOf(err))
				if errKind == "" {
					errKind = string(llm.KindUnavailable)
				}
				e.log.Warn().Err(err).Str("email_id", email.EmailID).Msg("Generative attempt failed, falling back to rules")
				state = stateFallbackAttempt
				continue
			}

			rawText = res.Text
			cand, derr := decodeCandidate(res.Text)
			if derr != nil {
				errKind = errorKindResponseFormat
				e.log.Warn().Err(derr).Str("email_id", email.EmailID).Msg("Undecodable model output, falling back to rules")
				state = stateFallbackAttempt
				continue
			}

			genCand = cand
			if cand.Confidence >= threshold {
				state = stateAccept
			} else {
				state = stateFallbackAttempt
			}

		case stateAccept:
			// The rule extractor is deliberately not invoked here: a
			// confident generative result makes the extra pass pure cost.
			final = genCand
			state = stateDone

		case stateFallbackAttempt:
			// The rule extractor always runs to completion; it cannot
			// fail in a way that blocks selection.
			ruleCand = e.rules.Parse(email)
			state = stateSelect

		case stateSelect:
			// Higher confidence wins; an exact tie goes to the generative
			// result for its richer structured fields.
			if genCand == nil || ruleCand.Confidence > genCand.Confidence {
				final = ruleCand
			} else {
				final = genCand
			}
			state = stateDone
		}
	}

	attempt := &domain.AttemptRecord{
		AttemptID:   uuid.NewString(),
		EmailID:     email.EmailID,
		Method:      final.Method,
		Confidence:  final.Confidence,
		Succeeded:   true,
		ErrorKind:   errKind,
		RawResponse: rawText,
		Timestamp:   time.Now().UTC(),
	}
	if !final.IsTransaction && final.Method == domain.MethodRule && genCand == nil && errKind != "" {
		// Neither path produced anything usable.
		attempt.Method = domain.MethodNone
	}

	return final, attempt, nil
}
