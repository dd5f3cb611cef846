// Package gateway runs the chat pipeline: validate, classify, gather
// business context, pick a provider, call it with bounded failover, then
// post-process and persist the exchange.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartai_gateway/internal/bizdata"
	"smartai_gateway/internal/health"
	"smartai_gateway/internal/intent"
	"smartai_gateway/internal/logging"
	"smartai_gateway/internal/metrics"
	"smartai_gateway/internal/models"
	"smartai_gateway/internal/prompt"
	"smartai_gateway/internal/providers"
	"smartai_gateway/internal/ratelimit"
	"smartai_gateway/internal/usage"
	"smartai_gateway/internal/utils"
)

// SessionStore is implemented by storage.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, s *models.ChatSession) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Close(ctx context.Context, id uuid.UUID) error
	DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MessageStore is implemented by storage.MessageRepository.
type MessageStore interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

// CandidateSelector is implemented by selector.Selector.
type CandidateSelector interface {
	Candidates(ctx context.Context, limit int) ([]*models.ProviderConfig, error)
}

// AdapterResolver is implemented by providers.Registry.
type AdapterResolver interface {
	Resolve(cfg *models.ProviderConfig) providers.Adapter
}

// KeyDecrypter is implemented by storage.Encryption.
type KeyDecrypter interface {
	DecryptString(s string) (string, error)
}

// HealthRecorder is implemented by health.Tracker.
type HealthRecorder interface {
	RecordSuccess(provider string)
	RecordFailure(provider string, err error) health.FailureType
}

// UsageLogEnqueuer is implemented by storage.UsageLogWorker.
type UsageLogEnqueuer interface {
	Enqueue(ctx context.Context, l *models.UsageLog) error
}

// Dependencies groups the collaborators of the orchestrator. Sessions,
// Messages, Selector, Adapters and Keys are required; the rest default to
// no-op implementations.
type Dependencies struct {
	Sessions  SessionStore
	Messages  MessageStore
	Selector  CandidateSelector
	Adapters  AdapterResolver
	Keys      KeyDecrypter
	Limiter   ratelimit.Limiter
	Fetcher   bizdata.Fetcher
	Health    HealthRecorder
	Usage     usage.Tracker
	UsageLogs UsageLogEnqueuer
	Sink      logging.Sink
	Metrics   metrics.Recorder
}

type Options struct {
	MaxAttempts        int
	ContextCharLimit   int
	DefaultLanguage    string
	DefaultTemperature float64
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:        3,
		ContextCharLimit:   prompt.DefaultContextLimit,
		DefaultLanguage:    "English",
		DefaultTemperature: 0.7,
	}
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	now    func() time.Time
	logger *utils.Logger
}

func New(deps Dependencies, opts Options) *Orchestrator {
	defaults := DefaultOptions()
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.ContextCharLimit <= 0 {
		opts.ContextCharLimit = defaults.ContextCharLimit
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = defaults.DefaultLanguage
	}
	if opts.DefaultTemperature == 0 {
		opts.DefaultTemperature = defaults.DefaultTemperature
	}

	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewNoopLimiter()
	}
	if deps.Fetcher == nil {
		deps.Fetcher = bizdata.NoopFetcher{}
	}
	if deps.Health == nil {
		deps.Health = health.NewTracker(health.DefaultConfig())
	}
	if deps.Usage == nil {
		deps.Usage = usage.NewNoopTracker()
	}
	if deps.Sink == nil {
		deps.Sink = logging.NewNoopSink()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}

	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		now:    time.Now,
		logger: utils.NewLogger("gateway"),
	}
}

// Chat answers one message. It never returns nil and never panics.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (res *Result) {
	start := o.now()
	res = newResult(uuid.NewString())
	language := req.Language
	if language == "" {
		language = o.opts.DefaultLanguage
	}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Chat pipeline panicked", "request_id", res.RequestID, "panic", r, "stack", string(debug.Stack()))
			o.fail(res, CodeInternal, fmt.Errorf("internal error: %v", r))
		}
		o.audit(req, language, res, start)
		status := "success"
		if !res.Success {
			status = string(res.ErrorCode)
		}
		o.deps.Metrics.ObserveChat(status, string(res.Intent), o.now().Sub(start))
	}()

	// Validate
	if strings.TrimSpace(req.Message) == "" {
		return o.fail(res, CodeInvalidInput, ErrInvalidInput)
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return o.fail(res, CodeSessionNotFound, ErrSessionNotFound)
	}
	exists, err := o.deps.Sessions.Exists(ctx, sessionID)
	if err != nil {
		o.logger.Error("Failed to look up session", "request_id", res.RequestID, "session_id", sessionID, "error", err)
		return o.fail(res, CodeSessionNotFound, ErrSessionNotFound)
	}
	if !exists {
		return o.fail(res, CodeSessionNotFound, ErrSessionNotFound)
	}

	// Classify
	in := intent.Classify(req.Message)
	entities := intent.ExtractEntities(req.Message)
	res.Intent = in
	res.Entities = entities.Map()

	// Business context
	var bizCtx *bizdata.Context
	if intent.NeedsContext(in) {
		bizCtx, err = o.deps.Fetcher.FetchContext(ctx, entities, language)
		if err != nil {
			o.logger.Warn("Context fetch failed, continuing without context", "request_id", res.RequestID, "error", err)
			o.warn(res, WarnContextFetch, err)
			bizCtx = nil
		}
	}

	var promptData any
	if bizCtx != nil {
		promptData = bizCtx
	}
	systemPrompt := prompt.Build(language, promptData, o.opts.ContextCharLimit)

	// Select
	candidates, err := o.deps.Selector.Candidates(ctx, o.opts.MaxAttempts)
	if err != nil {
		o.logger.Error("Failed to load provider candidates", "request_id", res.RequestID, "error", err)
		return o.fail(res, CodeInternal, fmt.Errorf("failed to select provider: %w", err))
	}
	if len(candidates) == 0 {
		return o.fail(res, CodeNoProviderAvailable, ErrNoProviderAvailable)
	}

	// Invoke
	reply, used, err := o.invoke(ctx, res, candidates, systemPrompt, req.Message)
	if err != nil {
		var attemptsErr *AttemptsError
		code := CodeProviderError
		if errors.As(err, &attemptsErr) {
			code = attemptsErr.Code()
		}
		o.logger.Error("Chat failed", "request_id", res.RequestID, "attempts", len(res.Attempts), "error", err)
		o.fail(res, code, err)
		o.enqueueUsage(ctx, res, in, req.Message, nil, o.now().Sub(start))
		return res
	}

	res.Success = true
	res.Response = reply
	res.Provider = used.Name
	res.Model = used.Model()
	postProcess(res, in, bizCtx)
	res.ResponseTimeMS = o.now().Sub(start).Milliseconds()

	o.persist(ctx, res, sessionID, language, req.Message, in, entities, used)
	return res
}

// invoke tries candidates in order until one answers.
func (o *Orchestrator) invoke(ctx context.Context, res *Result, candidates []*models.ProviderConfig, systemPrompt, message string) (string, *models.ProviderConfig, error) {
	var last *providers.ProviderError
	for _, cfg := range candidates {
		if ctx.Err() != nil && last != nil {
			break
		}

		text, err := o.attempt(ctx, res, cfg, systemPrompt, message)
		if err == nil {
			return text, cfg, nil
		}
		last = err
	}
	return "", nil, &AttemptsError{Attempts: len(res.Attempts), Last: last}
}

// attempt makes one provider call and accounts for it exactly once.
func (o *Orchestrator) attempt(ctx context.Context, res *Result, cfg *models.ProviderConfig, systemPrompt, message string) (string, *providers.ProviderError) {
	started := o.now()
	text, err := o.callProvider(ctx, cfg, systemPrompt, message)
	elapsed := o.now().Sub(started)

	// The counter reflects attempted calls, whatever the outcome.
	if _, incErr := o.deps.Limiter.Increment(context.WithoutCancel(ctx), cfg.Name); incErr != nil {
		o.logger.Warn("Failed to increment rate counter", "provider", cfg.Name, "error", incErr)
		o.warn(res, WarnRateCounter, incErr)
	}

	record := logging.Attempt{
		Provider:  cfg.Name,
		Model:     cfg.Model(),
		LatencyMs: elapsed.Milliseconds(),
	}

	if err != nil {
		var pe *providers.ProviderError
		if !errors.As(err, &pe) {
			pe = providers.NewProviderError(cfg.Name, 0, err)
		}
		record.StatusCode = pe.StatusCode
		record.Error = pe.Error()
		res.Attempts = append(res.Attempts, record)

		failure := o.deps.Health.RecordFailure(cfg.Name, pe)
		o.deps.Metrics.ObserveAttempt(cfg.Name, metrics.OutcomeFailure, elapsed)
		o.logger.Warn("Provider attempt failed", "request_id", res.RequestID, "provider", cfg.Name, "failure", failure, "error", pe)
		return "", pe
	}

	record.StatusCode = 200
	res.Attempts = append(res.Attempts, record)
	o.deps.Health.RecordSuccess(cfg.Name)
	o.deps.Metrics.ObserveAttempt(cfg.Name, metrics.OutcomeSuccess, elapsed)
	return text, nil
}

func (o *Orchestrator) callProvider(ctx context.Context, cfg *models.ProviderConfig, systemPrompt, message string) (string, error) {
	apiKey := ""
	if cfg.EncryptedAPIKey != "" {
		key, err := o.deps.Keys.DecryptString(cfg.EncryptedAPIKey)
		if err != nil {
			return "", providers.NewProviderError(cfg.Name, 0, fmt.Errorf("failed to decrypt api key: %w", err))
		}
		apiKey = key
	}

	adapter := o.deps.Adapters.Resolve(cfg)
	req := providers.NewCanonicalRequest(cfg, systemPrompt, message, o.opts.DefaultTemperature)
	return adapter.Call(ctx, cfg, apiKey, req)
}

// persist writes the exchange. Failures become warnings.
func (o *Orchestrator) persist(ctx context.Context, res *Result, sessionID uuid.UUID, language, message string, in intent.Intent, entities intent.Entities, used *models.ProviderConfig) {
	ctx = context.WithoutCancel(ctx)
	now := o.now()
	intentName := string(in)

	userMsg := &models.ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   message,
		Language:  language,
		Intent:    &intentName,
		Entities:  models.JSONB(entities.Map()),
		CreatedAt: now,
	}
	if err := o.deps.Messages.Create(ctx, userMsg); err != nil {
		o.logger.Error("Failed to save user message", "request_id", res.RequestID, "session_id", sessionID, "error", err)
		o.warn(res, WarnPersistence, err)
	}

	assistantMsg := &models.ChatMessage{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Role:           models.RoleAssistant,
		Content:        res.Response,
		Language:       language,
		ResponseTimeMS: utils.Ptr(res.ResponseTimeMS),
		Provider:       utils.Ptr(res.Provider),
		Model:          utils.Ptr(res.Model),
		CreatedAt:      now.Add(time.Microsecond),
	}
	if err := o.deps.Messages.Create(ctx, assistantMsg); err != nil {
		o.logger.Error("Failed to save assistant message", "request_id", res.RequestID, "session_id", sessionID, "error", err)
		o.warn(res, WarnPersistence, err)
	}

	o.enqueueUsage(ctx, res, in, message, used, time.Duration(res.ResponseTimeMS)*time.Millisecond)

	cost := usage.EstimateCost(used.Name, len([]rune(message)), len([]rune(res.Response)))
	if err := o.deps.Usage.AddUsage(ctx, used.Name, cost); err != nil {
		o.logger.Warn("Failed to record usage cost", "provider", used.Name, "error", err)
		o.warn(res, WarnPersistence, err)
	}
}

// enqueueUsage records one usage log per call that reached a provider.
func (o *Orchestrator) enqueueUsage(ctx context.Context, res *Result, in intent.Intent, message string, used *models.ProviderConfig, elapsed time.Duration) {
	if o.deps.UsageLogs == nil || len(res.Attempts) == 0 {
		return
	}

	last := res.Attempts[len(res.Attempts)-1]
	entry := &models.UsageLog{
		ID:             uuid.New(),
		Provider:       last.Provider,
		Model:          last.Model,
		Intent:         string(in),
		InputLength:    len([]rune(message)),
		ResponseTimeMS: elapsed.Milliseconds(),
		Success:        used != nil,
		ErrorMessage:   last.Error,
		CreatedAt:      o.now(),
	}
	if requestID, err := uuid.Parse(res.RequestID); err == nil {
		entry.RequestID = requestID
	}

	if err := o.deps.UsageLogs.Enqueue(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.Error("Failed to enqueue usage log", "request_id", res.RequestID, "error", err)
		o.warn(res, WarnPersistence, err)
	}
}

// audit hands one record per call to the sink.
func (o *Orchestrator) audit(req ChatRequest, language string, res *Result, start time.Time) {
	rec := &logging.LogRecord{
		Timestamp:   o.now().UTC(),
		RequestID:   res.RequestID,
		SessionID:   req.SessionID,
		UserRef:     req.UserRef,
		Language:    language,
		Intent:      string(res.Intent),
		Provider:    res.Provider,
		Model:       res.Model,
		Attempts:    res.Attempts,
		InputLength: len([]rune(req.Message)),
		GatewayMs:   o.now().Sub(start).Milliseconds(),
		Success:     res.Success,
		ErrorCode:   string(res.ErrorCode),
		Error:       res.Error,
	}
	for _, a := range res.Attempts {
		rec.ProviderMs += a.LatencyMs
	}
	if res.Success {
		rec.CostUSD = usage.EstimateCost(res.Provider, rec.InputLength, len([]rune(res.Response)))
	}

	if err := o.deps.Sink.Enqueue(rec); err != nil {
		o.logger.Warn("Failed to emit audit record", "request_id", res.RequestID, "error", err)
		o.warn(res, WarnAudit, err)
	}
}

func (o *Orchestrator) fail(res *Result, code ErrorCode, err error) *Result {
	res.Success = false
	res.Response = ""
	res.ErrorCode = code
	res.Error = err.Error()
	res.FallbackMessage = FallbackMessage
	res.err = err
	return res
}

func (o *Orchestrator) warn(res *Result, code WarningCode, err error) {
	res.Warnings = append(res.Warnings, Warning{Code: code, Message: err.Error()})
	o.deps.Metrics.IncWarning(string(code))
}
