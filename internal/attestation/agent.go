package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"notary/internal/config"
	"notary/internal/eventlog"
	"notary/internal/logging"
	"notary/internal/model"
	"notary/internal/repository"
	"notary/internal/storage"
)

var tracer = otel.Tracer("notary/internal/attestation")

// Notifier receives every event the agent observes.
type Notifier interface {
	Publish(ev model.Event)
}

// Deps are the collaborators of the agent.
type Deps struct {
	Log     eventlog.Log
	Store   storage.ImmutableStore
	Repo    repository.NotaryRepository
	Signer  *Signer
	Feed    Notifier
	Logger  *logging.Logger
	Metrics *Metrics
}

// Agent consumes the event log and attests every notarized document.
type Agent struct {
	Deps
	cfg     config.AgentConfig
	timeout time.Duration
	now     func() time.Time

	lastSeq int64
}

// NewAgent returns an Agent. timeout bounds the work done for one event.
func NewAgent(deps Deps, cfg config.AgentConfig, timeout time.Duration) *Agent {
	if cfg.ReadyAttempts < 1 {
		cfg.ReadyAttempts = 1
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = logging.New(time.UTC)
	}
	return &Agent{Deps: deps, cfg: cfg, timeout: timeout, now: time.Now}
}

// Run blocks until ctx is done. It waits for the topic to become readable,
// then keeps one subscription alive, restarting it with backoff on failure.
func (a *Agent) Run(ctx context.Context) error {
	topic, err := a.waitReady(ctx)
	if err != nil {
		return fmt.Errorf("event log not ready: %w", err)
	}

	from := eventlog.ParseStartPosition(a.cfg.StartFrom)
	a.Logger.Info("agent_started", map[string]any{
		"topic_id": topic,
		"start":    a.cfg.StartFrom,
		"signer":   a.Signer.PublicKeyHex(),
	})

	restart := backoff.NewExponentialBackOff()
	restart.InitialInterval = a.cfg.ReadyInterval
	restart.MaxInterval = 30 * time.Second
	restart.MaxElapsedTime = 0
	restart.Reset()

	for {
		seen := a.lastSeq
		err := a.Log.Subscribe(ctx, topic, from, a.handle)
		if ctx.Err() != nil {
			a.Logger.Info("agent_stopped", map[string]any{"last_sequence": a.lastSeq})
			return nil
		}
		if a.lastSeq > seen {
			restart.Reset()
		}
		wait := restart.NextBackOff()
		a.Logger.Error("subscription_failed", err, map[string]any{
			"topic_id":      topic,
			"last_sequence": a.lastSeq,
			"retry_in_ms":   wait.Milliseconds(),
		})
		if a.lastSeq > 0 {
			// Replays up to lastSeq are skipped by handle.
			from = eventlog.FromBeginning
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (a *Agent) waitReady(ctx context.Context) (string, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.cfg.ReadyInterval), uint64(a.cfg.ReadyAttempts-1)),
		ctx,
	)
	return backoff.RetryWithData(func() (string, error) {
		topic, err := a.Log.EnsureTopic(ctx)
		if err != nil {
			return "", err
		}
		if err := a.Log.Ready(ctx, topic); err != nil {
			return "", err
		}
		return topic, nil
	}, b)
}

func (a *Agent) handle(ctx context.Context, msg eventlog.Message) {
	if msg.Sequence <= a.lastSeq {
		return
	}
	a.lastSeq = msg.Sequence

	var ev model.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		a.Logger.Warn("event_decode_failed", map[string]any{"sequence": msg.Sequence, "error": err.Error()})
		return
	}
	ev.Source = model.SourceLog
	ev.Sequence = msg.Sequence
	if a.Feed != nil {
		a.Feed.Publish(ev)
	}

	if ev.Type != model.EventNotarized {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	outcome, err := a.attest(ctx, ev)
	a.Metrics.observe(outcome)
	if err != nil {
		a.Logger.Error("attestation_failed", err, map[string]any{
			"hash":      ev.Hash,
			"object_id": ev.ObjectID,
			"sequence":  msg.Sequence,
		})
	}
}

func (a *Agent) attest(ctx context.Context, ev model.Event) (string, error) {
	ctx, span := tracer.Start(ctx, "attestation.attest", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	hash := strings.TrimPrefix(strings.ToLower(ev.Hash), "0x")
	ev.Hash = hash
	span.SetAttributes(attribute.String("notary.hash", hash))
	signer := a.Signer.PublicKeyHex()

	done, err := a.Repo.HasAttestation(ctx, hash, ev.ObjectID, signer)
	if err != nil {
		return outcomeFailed, fmt.Errorf("check attestation: %w", err)
	}
	if done {
		return outcomeReplay, nil
	}

	raw, err := a.Store.Fetch(ctx, ev.ObjectID)
	if err != nil {
		return outcomeFailed, fmt.Errorf("fetch metadata: %w", err)
	}
	var meta model.NotarizationMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return outcomeFailed, fmt.Errorf("decode metadata: %w", err)
	}

	now := a.now().UTC().Truncate(time.Millisecond)
	st, err := a.Signer.Sign(Statement{
		Kind:      StatementKind,
		DocHash:   hash,
		ObjectID:  ev.ObjectID,
		TokenID:   ev.TokenID,
		Timestamp: now.UnixMilli(),
		Fields:    meta.Fields,
		Checks:    RunChecks(ev, meta),
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("sign statement: %w", err)
	}
	body, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return outcomeFailed, fmt.Errorf("encode statement: %w", err)
	}

	attObject, err := a.Store.Publish(ctx, body)
	if err != nil {
		return outcomeFailed, fmt.Errorf("publish statement: %w", err)
	}

	err = a.Repo.AppendAttestation(ctx, model.Attestation{
		DocumentHash:    hash,
		ObjectID:        attObject,
		SourceObjectID:  ev.ObjectID,
		TokenID:         ev.TokenID,
		SignerPublicKey: signer,
		Signature:       st.Signature,
		CreatedAt:       now,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return outcomeReplay, nil
	}
	if err != nil {
		return outcomeFailed, fmt.Errorf("record attestation: %w", err)
	}

	attested := model.Event{
		Type:                model.EventAttested,
		Hash:                hash,
		TokenID:             ev.TokenID,
		AttestationObjectID: attObject,
		Timestamp:           now.UnixMilli(),
	}
	if err := a.announce(ctx, attested); err != nil {
		a.Logger.Error("event_publish_failed", err, map[string]any{"hash": hash, "type": string(attested.Type)})
	}

	a.Logger.Info("attested", map[string]any{
		"hash":           hash,
		"object_id":      ev.ObjectID,
		"attestation_id": attObject,
		"checks":         len(st.Checks),
	})
	return outcomeAttested, nil
}

func (a *Agent) announce(ctx context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic, err := a.Log.EnsureTopic(ctx)
	if err != nil {
		return err
	}
	if _, err := a.Log.Publish(ctx, topic, payload); err != nil {
		return err
	}
	if a.Feed != nil {
		ev.Source = model.SourceLocal
		a.Feed.Publish(ev)
	}
	return nil
}

const (
	outcomeAttested = "attested"
	outcomeReplay   = "replay"
	outcomeFailed   = "failed"
)

// Metrics counts processed notarized events. A nil *Metrics records nothing.
type Metrics struct {
	events *prometheus.CounterVec
}

// NewMetrics registers the agent metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notary_attestations_total",
				Help: "Notarized events handled by the attestation agent, by outcome.",
			},
			[]string{"outcome"},
		),
	}
	if err := reg.Register(m.events); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}
