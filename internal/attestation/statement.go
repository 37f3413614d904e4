package attestation

import (
	"notary/internal/model"
)

// StatementKind tags attestation objects.
const StatementKind = "notary.attestation"

// Check levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Check is one finding about a notarization record.
type Check struct {
	ID      string `json:"id"`
	Level   string `json:"lvl"`
	Message string `json:"msg"`
}

// Statement is the signed attestation published as an immutable object.
type Statement struct {
	Kind         string       `json:"kind"`
	DocHash      string       `json:"docHash"`
	ObjectID     string       `json:"fileId"`
	TokenID      string       `json:"tokenId"`
	Timestamp    int64        `json:"timestamp"`
	Fields       model.Fields `json:"deterministic"`
	Checks       []Check      `json:"checks"`
	SignerPubKey string       `json:"signerPubKey"`
	Signature    string       `json:"signature,omitempty"`
}

type checkFunc func(ev model.Event, meta model.NotarizationMetadata) *Check

var checks = []checkFunc{
	func(_ model.Event, meta model.NotarizationMetadata) *Check {
		if meta.Summary == "" {
			return &Check{ID: "no_summary", Level: LevelInfo, Message: "No summary"}
		}
		return nil
	},
	func(ev model.Event, meta model.NotarizationMetadata) *Check {
		if meta.Hash != ev.Hash {
			return &Check{ID: "hash_mismatch", Level: LevelError, Message: "Metadata hash differs from the notarized hash"}
		}
		return nil
	},
}

// RunChecks returns every finding for meta. It never returns nil.
func RunChecks(ev model.Event, meta model.NotarizationMetadata) []Check {
	out := make([]Check, 0, len(checks))
	for _, c := range checks {
		if r := c(ev, meta); r != nil {
			out = append(out, *r)
		}
	}
	return out
}
