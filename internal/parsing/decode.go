package parsing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/mailparse/internal/domain"
)

// modelOutput mirrors the JSON object providers are prompted to return.
// Pointers distinguish absent keys from zero values: a missing confidence
// is a format error, never a silently-assumed default.
type modelOutput struct {
	IsTransaction *bool             `json:"is_transaction"`
	Type          string            `json:"transaction_type"`
	Amount        json.RawMessage   `json:"amount"`
	Currency      string            `json:"currency"`
	Merchant      string            `json:"merchant"`
	Description   string            `json:"description"`
	Date          string            `json:"transaction_date"`
	Confidence    *float64          `json:"confidence"`
	Fields        map[string]string `json:"extracted_fields"`
}

// decodeCandidate turns raw provider text into an ExtractionCandidate.
// It strips Markdown code fences, parses the JSON object, validates
// required keys and normalizes amount and date representations.
func decodeCandidate(raw string) (*domain.ExtractionCandidate, error) {
	clean := cleanModelJSON(raw)

	var out modelOutput
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return nil, &ResponseFormatError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}

	if out.IsTransaction == nil {
		return nil, &ResponseFormatError{Reason: "missing required key is_transaction", Raw: raw}
	}
	if out.Confidence == nil {
		return nil, &ResponseFormatError{Reason: "missing required key confidence", Raw: raw}
	}

	cand := &domain.ExtractionCandidate{
		IsTransaction: *out.IsTransaction,
		Description:   out.Description,
		Confidence:    domain.ClampConfidence(*out.Confidence),
		Method:        domain.MethodGenerative,
	}

	if !cand.IsTransaction {
		return cand, nil
	}

	cand.Type = normalizeType(out.Type)
	cand.Currency = strings.ToUpper(strings.TrimSpace(out.Currency))

	if merchant := strings.TrimSpace(out.Merchant); merchant != "" {
		cand.Merchant = merchant
	}

	if len(out.Amount) > 0 && string(out.Amount) != "null" {
		amount, err := normalizeAmount(string(out.Amount))
		if err != nil {
			return nil, &ResponseFormatError{Reason: fmt.Sprintf("bad amount: %v", err), Raw: raw}
		}
		cand.Amount = amount
	}

	if out.Date != "" {
		if date, ok := normalizeDate(out.Date); ok {
			cand.Date = &date
		}
	}

	if len(out.Fields) > 0 {
		cand.Fields = make(map[string]string, len(out.Fields))
		for k, v := range out.Fields {
			if v = strings.TrimSpace(v); v != "" {
				cand.Fields[k] = v
			}
		}
	}

	// Providers sometimes claim a transaction but omit core fields; the
	// claim is kept, the confidence is not.
	if cand.Amount == nil || cand.Merchant == "" || cand.Currency == "" || cand.Type == domain.TransactionUnknown {
		if cand.Confidence > 0.5 {
			cand.Confidence = 0.5
		}
	}

	return cand, nil
}

// cleanModelJSON strips Markdown code fences and surrounding junk that
// models emit despite instructions, keeping the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// normalizeAmount accepts both JSON numbers and quoted strings with
// currency symbols or thousands separators ("$1,234.56") and returns an
// exact decimal value.
func normalizeAmount(raw string) (*decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)

	// Strip currency symbols and separators.
	replacer := strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "")
	s = replacer.Replace(s)

	// Trailing or leading ISO currency codes ("49.99USD").
	s = strings.TrimFunc(s, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	})

	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, err)
	}
	return &d, nil
}

// dateLayouts are tried in order: ISO first, then US numeric, then written
// month forms.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// normalizeDate parses a date representation into a canonical civil date.
func normalizeDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func normalizeType(s string) domain.TransactionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit":
		return domain.TransactionDebit
	case "credit":
		return domain.TransactionCredit
	default:
		return domain.TransactionUnknown
	}
}
