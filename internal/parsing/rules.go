package parsing

import (
	"regexp"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/mailparse/internal/domain"
)

// ruleConfidenceCap bounds every rule-path candidate. The rule path can
// compete with a low-confidence generative result but never out-rank a
// high-confidence one.
const ruleConfidenceCap = 0.7

// Surface patterns for merchant names: "at MERCHANT", "from MERCHANT",
// "payment AT MERCHANT", "MERCHANT charged".
var merchantPatterns = []*regexp.Regexp{
	// Case-insensitivity is scoped to the surrounding keywords; the
	// capture itself must start with a capital or it is prose, not a name.
	regexp.MustCompile(`(?i:at|from|to)\s+([A-Z][A-Za-z0-9\s&'-]+?)(?:\s+(?i:on|for)\b|\s*\$|\s*(?i:USD)|\.|\n|$)`),
	regexp.MustCompile(`(?i:purchase|payment|transaction)(?i:\s+at)?\s+([A-Z][A-Za-z0-9\s&'-]+?)\s+(?i:on|for)`),
	regexp.MustCompile(`([A-Z][A-Z0-9\s&'-]{2,30})(?:\s+charged|\s+transaction)`),
}

// Amount patterns, each with the currency its notation implies. Group 1
// always captures the numeric part; a second group, when present, captures
// an ISO currency code.
type amountPattern struct {
	re       *regexp.Regexp
	currency string // fixed currency, empty when captured by group 2
}

var amountPatterns = []amountPattern{
	{re: regexp.MustCompile(`\$\s*(\d{1,10}(?:,\d{3})*(?:\.\d{2})?)`), currency: "USD"},
	{re: regexp.MustCompile(`£\s*(\d{1,10}(?:,\d{3})*(?:\.\d{2})?)`), currency: "GBP"},
	{re: regexp.MustCompile(`€\s*(\d{1,10}(?:,\d{3})*(?:\.\d{2})?)`), currency: "EUR"},
	{re: regexp.MustCompile(`(\d{1,10}(?:,\d{3})*(?:\.\d{2})?)\s*(USD|EUR|GBP)`)},
	{re: regexp.MustCompile(`(?i)(USD|EUR|GBP)\s*(\d{1,10}(?:,\d{3})*(?:\.\d{2})?)`)},
	{re: regexp.MustCompile(`(?i)(?:total|amount|charged|paid)[\s:]+\$?\s*(\d{1,10}(?:,\d{3})*(?:\.\d{2})?)`), currency: "USD"},
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4}[-/]\d{1,2}[-/]\d{1,2})`),
	regexp.MustCompile(`(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	regexp.MustCompile(`(?i)((?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4})`),
}

var cardPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)card\s+(?:ending\s+(?:in\s+)?|#)?(\d{4})`),
	regexp.MustCompile(`(?i)x+(\d{4})`),
	regexp.MustCompile(`\*+(\d{4})`),
}

var debitKeywords = []string{
	"purchase", "charged", "debited", "payment", "paid", "spent", "bought",
	"withdrawal", "debit", "order", "invoice",
}

var creditKeywords = []string{
	"refund", "credit", "credited", "deposit", "received", "reimbursement",
	"cashback", "reversal",
}

var nonTransactionKeywords = []string{
	"newsletter", "welcome", "verify", "confirm your email",
	"reset password", "unsubscribe", "privacy policy", "terms of service",
	"marketing", "promotional", "survey",
}

var financialSenderDomains = []string{
	"paypal", "venmo", "chase", "bankofamerica", "wellsfargo",
	"citi", "amex", "discover", "capitalone", "amazon", "stripe",
	"square", "shopify", "ebay",
}

// RuleParser is the deterministic fallback extractor. It is a pure function
// of the input text: no external calls, no shared mutable state, fully
// reproducible.
type RuleParser struct{}

// NewRuleParser creates the rule-based extractor.
func NewRuleParser() *RuleParser {
	return &RuleParser{}
}

// Parse extracts a candidate from the email using ordered pattern rules.
// It cannot fail: an email with no financial indicators resolves to a
// non-transaction candidate, never an error.
func (p *RuleParser) Parse(email *domain.RawEmail) *domain.ExtractionCandidate {
	fullText := email.Subject + "\n" + email.Body

	if !isTransactionText(fullText, email.Sender) {
		return &domain.ExtractionCandidate{
			IsTransaction: false,
			Confidence:    0.0,
			Method:        domain.MethodRule,
		}
	}

	amount, currency := extractAmount(fullText)
	merchant := extractMerchant(fullText, email.Sender)
	txType := extractType(fullText)
	date := extractDate(fullText)
	cardLast4 := extractCardLast4(fullText)

	cand := &domain.ExtractionCandidate{
		IsTransaction: true,
		Type:          txType,
		Amount:        amount,
		Currency:      currency,
		Merchant:      merchant,
		Confidence:    ruleConfidence(amount, merchant, txType, date),
		Method:        domain.MethodRule,
	}
	if date != nil {
		cand.Date = date
	}
	if merchant != "" {
		cand.Description = "Transaction at " + merchant
	} else {
		cand.Description = "Transaction"
	}
	if cardLast4 != "" {
		cand.Fields = map[string]string{domain.FieldCardLast4: cardLast4}
	}
	return cand
}

// isTransactionText applies the non-transaction filter: no financial-domain
// indicator and no amount match means no transaction.
func isTransactionText(text, sender string) bool {
	lower := strings.ToLower(text)

	for _, kw := range nonTransactionKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}

	hasAmount := false
	for _, p := range amountPatterns {
		if p.re.MatchString(text) {
			hasAmount = true
			break
		}
	}
	if !hasAmount {
		return false
	}

	if containsAny(lower, debitKeywords) || containsAny(lower, creditKeywords) {
		return true
	}

	senderLower := strings.ToLower(sender)
	for _, d := range financialSenderDomains {
		if strings.Contains(senderLower, d) {
			return true
		}
	}
	return false
}

func extractAmount(text string) (*decimal.Decimal, string) {
	for _, p := range amountPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		numeric, currency := m[1], p.currency
		if currency == "" && len(m) > 2 {
			// Code-captured notation: one group is the code, one the number.
			if isNumericGroup(m[1]) {
				currency = strings.ToUpper(m[2])
			} else {
				currency = strings.ToUpper(m[1])
				numeric = m[2]
			}
		}

		d, err := decimal.NewFromString(strings.ReplaceAll(numeric, ",", ""))
		if err != nil {
			continue
		}
		// Reject implausible amounts rather than guess.
		if d.IsPositive() && d.LessThan(decimal.New(1_000_000, 0)) {
			return &d, currency
		}
	}
	return nil, ""
}

func isNumericGroup(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
		if r == ',' || r == '.' {
			continue
		}
		return false
	}
	return len(s) > 0
}

func extractMerchant(text, sender string) string {
	for _, re := range merchantPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			merchant := strings.TrimSpace(m[1])
			if len(merchant) > 2 && len(merchant) < 50 {
				return merchant
			}
		}
	}

	// Fall back to the sender domain: "alerts@chase.com" → "Chase".
	if at := strings.Index(sender, "@"); at != -1 {
		domainPart := sender[at+1:]
		if dot := strings.Index(domainPart, "."); dot > 0 {
			domainPart = domainPart[:dot]
		}
		if len(domainPart) > 2 {
			return strings.ToUpper(domainPart[:1]) + domainPart[1:]
		}
	}
	return ""
}

// extractType infers direction from keyword presence. Absence of both
// debit- and credit-indicating keywords yields unknown.
func extractType(text string) domain.TransactionType {
	lower := strings.ToLower(text)
	// Credit keywords first, they are the more specific signal.
	if containsAny(lower, creditKeywords) {
		return domain.TransactionCredit
	}
	if containsAny(lower, debitKeywords) {
		return domain.TransactionDebit
	}
	return domain.TransactionUnknown
}

func extractDate(text string) *civil.Date {
	for _, re := range datePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if d, ok := normalizeDate(m[1]); ok {
				return &d
			}
		}
	}
	return nil
}

func extractCardLast4(text string) string {
	for _, re := range cardPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ruleConfidence scores a rule candidate: a base for having identified a
// transaction at all, plus a share per extracted field, hard-capped so the
// rule path never reaches the high band.
func ruleConfidence(amount *decimal.Decimal, merchant string, txType domain.TransactionType, date *civil.Date) float64 {
	score := 0.3
	if amount != nil {
		score += 0.25
	}
	if merchant != "" {
		score += 0.25
	}
	if txType != domain.TransactionUnknown {
		score += 0.1
	}
	if date != nil {
		score += 0.1
	}
	if score > ruleConfidenceCap {
		return ruleConfidenceCap
	}
	return score
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
