package model

import "time"

// DocumentRecord is the notarization record of one distinct document content.
// It is keyed by the SHA-256 content hash and is never mutated after creation.
type DocumentRecord struct {
	Hash       string    `json:"hash"`
	ObjectID   string    `json:"fileId"`
	TokenID    string    `json:"tokenId"`
	Summary    string    `json:"summary"`
	Filename   string    `json:"filename"`
	PaymentRef string    `json:"txHash"`
	Payer      string    `json:"wallet"`
	CreatedAt  time.Time `json:"timestamp"`
}

// UsedPayment records that a payment reference funded a notarization.
type UsedPayment struct {
	Ref    string    `json:"txHash"`
	Payer  string    `json:"by"`
	UsedAt time.Time `json:"at"`
}

// Attestation is one signed statement about a published document record.
type Attestation struct {
	DocumentHash    string    `json:"-"`
	ObjectID        string    `json:"fileId"`
	SourceObjectID  string    `json:"sourceFileId"`
	TokenID         string    `json:"tokenId"`
	SignerPublicKey string    `json:"signerPubKey"`
	Signature       string    `json:"sigBase64"`
	CreatedAt       time.Time `json:"timestamp"`
}

// Fields are values extracted deterministically from document text.
type Fields struct {
	Amounts []string `json:"amounts"`
	Dates   []string `json:"dates"`
	IBANs   []string `json:"ibans"`
}

// NotarizationMetadata is the JSON document published to the immutable store
// for every first-time notarization.
type NotarizationMetadata struct {
	Kind        string `json:"kind"`
	Hash        string `json:"hash"`
	Filename    string `json:"filename"`
	Payer       string `json:"wallet"`
	PaymentRef  string `json:"txHash"`
	Timestamp   int64  `json:"timestamp"`
	Summary     string `json:"summary"`
	Fields      Fields `json:"deterministic"`
	TextSnippet string `json:"textSnippet"`
}

// NotarizeResult is returned by a notarization attempt.
type NotarizeResult struct {
	Duplicate bool      `json:"duplicate"`
	Hash      string    `json:"hash"`
	ObjectID  string    `json:"fileId"`
	TokenID   string    `json:"tokenId"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"timestamp"`
}

// VerifyResult reports whether a document content has been notarized.
type VerifyResult struct {
	Matched      bool          `json:"matched"`
	Hash         string        `json:"hash"`
	ObjectID     string        `json:"fileId,omitempty"`
	TokenID      string        `json:"tokenId,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	Filename     string        `json:"filename,omitempty"`
	CreatedAt    *time.Time    `json:"timestamp,omitempty"`
	Attestations []Attestation `json:"attestations,omitempty"`
}

// PublicConfig is the client-facing configuration.
type PublicConfig struct {
	Recipient string  `json:"treasury"`
	PriceWei  string  `json:"priceWei"`
	TopicID   *string `json:"hcsTopicId"`
}

// Upload phases of the immutable publish protocol.
const (
	UploadCreated  = "created"
	UploadAppended = "appended"
	UploadSealed   = "sealed"
)

// Upload is the journal entry of one immutable publish in progress.
// ChunkVersions holds the backend version id of every chunk written so far.
type Upload struct {
	ID            string    `json:"id"`
	Phase         string    `json:"phase"`
	Payload       []byte    `json:"-"`
	ChunkVersions []string  `json:"chunkVersions"`
	ObjectID      string    `json:"objectId,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
