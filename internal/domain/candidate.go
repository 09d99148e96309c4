package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType classifies the direction of money movement.
type TransactionType string

const (
	TransactionDebit   TransactionType = "debit"
	TransactionCredit  TransactionType = "credit"
	TransactionUnknown TransactionType = "unknown"
)

// ParseMethod identifies which extraction path produced a candidate.
type ParseMethod string

const (
	MethodGenerative ParseMethod = "generative"
	MethodRule       ParseMethod = "rule"
	MethodNone       ParseMethod = "none"
)

// Well-known keys of ExtractionCandidate.Fields.
const (
	FieldCardLast4       = "card_last_4"
	FieldCategory        = "category"
	FieldLocation        = "location"
	FieldReferenceNumber = "reference_number"
)

// ExtractionCandidate is the structured result of one extraction attempt,
// regardless of which path produced it. When IsTransaction is false the
// transaction fields carry no meaning and downstream consumers ignore them.
type ExtractionCandidate struct {
	IsTransaction bool            `json:"is_transaction"`
	Type          TransactionType `json:"transaction_type,omitempty"`

	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Currency string           `json:"currency,omitempty"`
	Merchant string           `json:"merchant,omitempty"`

	Description string      `json:"description,omitempty"`
	Date        *civil.Date `json:"transaction_date,omitempty"`

	// Confidence is an estimate of extraction correctness in [0.0, 1.0],
	// comparable across the generative and rule paths.
	Confidence float64 `json:"confidence"`

	// Fields holds auxiliary attributes (card last 4, category, location,
	// reference number). Keys are optional and absent when not extracted.
	Fields map[string]string `json:"extracted_fields,omitempty"`

	Method ParseMethod `json:"method"`
}

// ConfidenceBand is a descriptive interpretation of a confidence value.
// Bands are not enforced anywhere; the single comparison point is the
// configured threshold.
type ConfidenceBand string

const (
	BandHigh       ConfidenceBand = "high"       // >= 0.8
	BandMedium     ConfidenceBand = "medium"     // 0.6 - 0.79
	BandLow        ConfidenceBand = "low"        // 0.4 - 0.59
	BandNegligible ConfidenceBand = "negligible" // < 0.4
)

// Band maps a confidence value onto its descriptive band.
func Band(confidence float64) ConfidenceBand {
	switch {
	case confidence >= 0.8:
		return BandHigh
	case confidence >= 0.6:
		return BandMedium
	case confidence >= 0.4:
		return BandLow
	default:
		return BandNegligible
	}
}

// ClampConfidence forces a confidence value into the valid [0.0, 1.0] range.
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
