package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"notary/internal/content"
	"notary/internal/eventlog"
	"notary/internal/fanout"
	"notary/internal/logging"
	"notary/internal/model"
	"notary/internal/repository"
	"notary/internal/storage"
	"notary/internal/token"
)

var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrConflict                  = errors.New("notarization already in progress")
	ErrPaymentReused             = errors.New("payment reference already consumed")
	ErrPaymentInvalid            = errors.New("payment transaction invalid")
	ErrInsufficientOperatorFunds = errors.New("operator balance low")
	ErrServiceError              = errors.New("external service failed")
	ErrServiceTimeout            = errors.New("external service timed out")
)

// MetadataKind tags notarization metadata objects.
const MetadataKind = "notary.notarization"

var tracer = otel.Tracer("notary/internal/service")

// PaymentVerifier checks payments and the operator account on the ledger.
type PaymentVerifier interface {
	Verify(ctx context.Context, ref, expectedFrom, expectedTo string, minAmount *big.Int) (bool, error)
	OperatorBalance(ctx context.Context) (*big.Int, error)
}

// Notifier receives events for live listeners.
type Notifier interface {
	Publish(ev model.Event)
}

// NotarizeInput is one notarization request.
type NotarizeInput struct {
	File       []byte
	Filename   string
	Payer      string
	PaymentRef string
}

// NotaryService defines the notarization use cases.
type NotaryService interface {
	// Config returns the client-facing payment settings and the current topic.
	Config(ctx context.Context) (*model.PublicConfig, error)

	// Exists reports whether a document with the given content hash is notarized.
	Exists(ctx context.Context, hash string) (bool, error)

	// Notarize records a document on first submission and returns the existing
	// record, tagged as duplicate, on every later one.
	Notarize(ctx context.Context, in NotarizeInput) (*model.NotarizeResult, error)

	// Verify looks up a document by content. No match is a result, not an error.
	Verify(ctx context.Context, file []byte) (*model.VerifyResult, error)
}

// Deps are the collaborators of the notary service.
type Deps struct {
	Repo       repository.NotaryRepository
	Store      storage.ImmutableStore
	Tokens     token.Issuer
	Log        eventlog.Log
	Payments   PaymentVerifier
	Summarizer content.Summarizer
	Feed       Notifier
	Logger     *logging.Logger
	Metrics    *Metrics
}

// Options are the payment and timeout settings of the notary service.
type Options struct {
	Recipient          string
	Price              *big.Int
	MinOperatorBalance *big.Int
	ExternalTimeout    time.Duration
}

type notaryService struct {
	Deps
	opts Options
	now  func() time.Time
}

// NewNotaryService constructs a NotaryService.
func NewNotaryService(deps Deps, opts Options) NotaryService {
	if deps.Summarizer == nil {
		deps.Summarizer = content.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.New(time.UTC)
	}
	if deps.Feed == nil {
		deps.Feed = fanout.New()
	}
	if opts.Price == nil {
		opts.Price = new(big.Int)
	}
	if opts.MinOperatorBalance == nil {
		opts.MinOperatorBalance = new(big.Int)
	}
	if opts.ExternalTimeout <= 0 {
		opts.ExternalTimeout = 60 * time.Second
	}
	opts.Recipient = strings.ToLower(opts.Recipient)
	return &notaryService{Deps: deps, opts: opts, now: time.Now}
}

// ContentHash returns the lower-case hex SHA-256 of b.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NormalizeHash accepts a content hash in either case, with or without 0x.
func NormalizeHash(s string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(s))
	h = strings.TrimPrefix(h, "0x")
	if len(h) != sha256.Size*2 {
		return "", false
	}
	if _, err := hex.DecodeString(h); err != nil {
		return "", false
	}
	return h, true
}

func (s *notaryService) Config(_ context.Context) (*model.PublicConfig, error) {
	cfg := &model.PublicConfig{
		Recipient: s.opts.Recipient,
		PriceWei:  s.opts.Price.String(),
	}
	if id := s.Log.TopicID(); id != "" {
		cfg.TopicID = &id
	}
	return cfg, nil
}

func (s *notaryService) Exists(ctx context.Context, hash string) (bool, error) {
	h, ok := NormalizeHash(hash)
	if !ok {
		return false, fmt.Errorf("%w: malformed content hash", ErrInvalidInput)
	}
	doc, err := s.findDocument(ctx, h)
	if err != nil {
		return false, err
	}
	return doc != nil, nil
}

func (s *notaryService) Notarize(ctx context.Context, in NotarizeInput) (res *model.NotarizeResult, err error) {
	ctx, span := tracer.Start(ctx, "notary.Notarize")
	defer span.End()
	started := time.Now()
	defer func() {
		s.Metrics.observe(outcomeOf(res, err), time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if len(in.File) == 0 {
		return nil, fmt.Errorf("%w: no file", ErrInvalidInput)
	}
	filename := in.Filename
	if filename == "" {
		filename = "document"
	}
	payer := strings.ToLower(strings.TrimSpace(in.Payer))
	ref := strings.ToLower(strings.TrimSpace(in.PaymentRef))

	hash := ContentHash(in.File)
	span.SetAttributes(attribute.String("notary.hash", hash))
	s.Logger.Info("notarize_request", map[string]any{
		"request_id":  logging.RequestID(ctx),
		"hash":        hash,
		"filename":    filename,
		"payer":       payer,
		"payment_ref": ref,
	})

	existing, err := s.findDocument(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.duplicate(existing), nil
	}

	acquired, err := s.Repo.AcquirePending(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("acquire pending: %w", err)
	}
	if !acquired {
		return nil, ErrConflict
	}
	defer s.releasePending(ctx, hash)

	// A concurrent attempt may have committed between the lookup and the acquire.
	if existing, err = s.findDocument(ctx, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return s.duplicate(existing), nil
	}

	if ref == "" {
		return nil, fmt.Errorf("%w: payment reference missing", ErrInvalidInput)
	}
	used, err := s.Repo.IsPaymentUsed(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("check payment reference: %w", err)
	}
	if used {
		return nil, ErrPaymentReused
	}

	var paid bool
	if err := s.external(ctx, "payment.verify", func(ctx context.Context) (err error) {
		paid, err = s.Payments.Verify(ctx, ref, payer, s.opts.Recipient, s.opts.Price)
		return err
	}); err != nil {
		return nil, err
	}
	if !paid {
		return nil, ErrPaymentInvalid
	}

	var balance *big.Int
	if err := s.external(ctx, "ledger.operator_balance", func(ctx context.Context) (err error) {
		balance, err = s.Payments.OperatorBalance(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	if balance.Cmp(s.opts.MinOperatorBalance) < 0 {
		return nil, fmt.Errorf("%w: %s wei", ErrInsufficientOperatorFunds, balance)
	}

	createdAt := s.now().UTC().Truncate(time.Millisecond)
	meta := s.describe(ctx, in.File, filename)
	meta.Hash = hash
	meta.Payer = payer
	meta.PaymentRef = ref
	meta.Timestamp = createdAt.UnixMilli()

	body, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	var objectID string
	if err := s.external(ctx, "store.publish", func(ctx context.Context) (err error) {
		objectID, err = s.Store.Publish(ctx, body)
		return err
	}); err != nil {
		return nil, err
	}

	tokenMeta, err := json.Marshal(map[string]string{"objectId": objectID})
	if err != nil {
		return nil, fmt.Errorf("encode token metadata: %w", err)
	}
	var tokenID string
	if err := s.external(ctx, "token.mint", func(ctx context.Context) (err error) {
		tokenID, err = s.Tokens.Mint(ctx, tokenMeta)
		return err
	}); err != nil {
		return nil, err
	}

	doc := &model.DocumentRecord{
		Hash:       hash,
		ObjectID:   objectID,
		TokenID:    tokenID,
		Summary:    meta.Summary,
		Filename:   filename,
		PaymentRef: ref,
		Payer:      payer,
		CreatedAt:  createdAt,
	}
	if err := s.Repo.CommitDocument(ctx, doc, model.UsedPayment{Ref: ref, Payer: payer, UsedAt: createdAt}); err != nil {
		switch {
		case errors.Is(err, repository.ErrPaymentUsed):
			return nil, ErrPaymentReused
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrConflict
		default:
			return nil, fmt.Errorf("commit document: %w", err)
		}
	}

	s.announce(ctx, model.Event{
		Type:      model.EventNotarized,
		Hash:      hash,
		ObjectID:  objectID,
		TokenID:   tokenID,
		Timestamp: createdAt.UnixMilli(),
	})

	s.Logger.Info("notarized", map[string]any{
		"request_id": logging.RequestID(ctx),
		"hash":       hash,
		"object_id":  objectID,
		"token_id":   tokenID,
		"ms":         time.Since(started).Milliseconds(),
	})

	return &model.NotarizeResult{
		Hash:      hash,
		ObjectID:  objectID,
		TokenID:   tokenID,
		Summary:   meta.Summary,
		CreatedAt: createdAt,
	}, nil
}

func (s *notaryService) Verify(ctx context.Context, file []byte) (*model.VerifyResult, error) {
	if len(file) == 0 {
		return nil, fmt.Errorf("%w: no file", ErrInvalidInput)
	}
	hash := ContentHash(file)
	doc, err := s.findDocument(ctx, hash)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return &model.VerifyResult{Hash: hash}, nil
	}

	atts, err := s.Repo.ListAttestations(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("list attestations: %w", err)
	}
	createdAt := doc.CreatedAt
	return &model.VerifyResult{
		Matched:      true,
		Hash:         hash,
		ObjectID:     doc.ObjectID,
		TokenID:      doc.TokenID,
		Summary:      doc.Summary,
		Filename:     doc.Filename,
		CreatedAt:    &createdAt,
		Attestations: atts,
	}, nil
}

func (s *notaryService) findDocument(ctx context.Context, hash string) (*model.DocumentRecord, error) {
	doc, err := s.Repo.FindDocument(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

func (s *notaryService) duplicate(doc *model.DocumentRecord) *model.NotarizeResult {
	s.Feed.Publish(model.Event{
		Type:      model.EventDuplicate,
		Source:    model.SourceLocal,
		Hash:      doc.Hash,
		Timestamp: s.now().UnixMilli(),
	})
	return &model.NotarizeResult{
		Duplicate: true,
		Hash:      doc.Hash,
		ObjectID:  doc.ObjectID,
		TokenID:   doc.TokenID,
		Summary:   doc.Summary,
		CreatedAt: doc.CreatedAt,
	}
}

// releasePending runs on every exit path after the pending entry was taken,
// including when the request context is already cancelled.
func (s *notaryService) releasePending(ctx context.Context, hash string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Repo.ReleasePending(rctx, hash); err != nil {
		s.Logger.Error("release_pending_failed", err, map[string]any{"hash": hash})
	}
}

// describe runs the best-effort content pipeline. Nothing here can fail the request.
func (s *notaryService) describe(ctx context.Context, file []byte, filename string) model.NotarizationMetadata {
	text := content.ExtractText(file, filename)
	meta := model.NotarizationMetadata{
		Kind:        MetadataKind,
		Filename:    filename,
		Fields:      content.ExtractFields(text),
		TextSnippet: content.Truncate(text, content.SnippetRunes),
	}

	sctx, span := tracer.Start(ctx, "content.summarize")
	defer span.End()
	sctx, cancel := context.WithTimeout(sctx, s.opts.ExternalTimeout)
	defer cancel()
	summary, err := s.Summarizer.Summarize(sctx, text)
	if err != nil {
		span.RecordError(err)
		s.Logger.Warn("summarize_failed", map[string]any{"error": err.Error()})
		return meta
	}
	meta.Summary = summary
	return meta
}

// announce publishes ev on the event log and to local listeners. The record
// is already durable, so a log failure is only logged.
func (s *notaryService) announce(ctx context.Context, ev model.Event) {
	payload, err := json.Marshal(ev)
	if err == nil {
		err = s.external(ctx, "eventlog.publish", func(ctx context.Context) error {
			topic, err := s.Log.EnsureTopic(ctx)
			if err != nil {
				return err
			}
			_, err = s.Log.Publish(ctx, topic, payload)
			return err
		})
	}
	if err != nil {
		s.Logger.Error("event_publish_failed", err, map[string]any{"hash": ev.Hash, "type": string(ev.Type)})
	}

	ev.Source = model.SourceLocal
	s.Feed.Publish(ev)
}

// external runs one call to an outside service under its own deadline and
// classifies the failure.
func (s *notaryService) external(ctx context.Context, step string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, step)
	defer span.End()

	cctx, cancel := context.WithTimeout(ctx, s.opts.ExternalTimeout)
	defer cancel()

	err := fn(cctx)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrServiceTimeout, step, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrServiceError, step, err)
}
