package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/mailparse/internal/domain"
)

// EmailRow mirrors the raw_emails table.
type EmailRow struct {
	EmailID   string `bigquery:"email_id"`   // REQUIRED
	MessageID string `bigquery:"message_id"` // NULLABLE

	Subject string `bigquery:"subject"` // NULLABLE
	Sender  string `bigquery:"sender"`  // NULLABLE

	Body    string              `bigquery:"body"`     // NULLABLE
	BodyURI bigquery.NullString `bigquery:"body_uri"` // NULLABLE

	ReceivedAt time.Time `bigquery:"received_at"` // REQUIRED
	Status     string    `bigquery:"status"`      // REQUIRED
}

// TransactionRow mirrors the transactions table. One row per email that
// parsed into a transaction; non-transaction outcomes produce no row.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	EmailID       string `bigquery:"email_id"`       // REQUIRED

	TransactionType string `bigquery:"transaction_type"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // NULLABLE NUMERIC
	Currency string   `bigquery:"currency"` // NULLABLE

	Merchant    string `bigquery:"merchant"`    // NULLABLE
	Description string `bigquery:"description"` // NULLABLE

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE

	Confidence float64 `bigquery:"confidence"` // REQUIRED
	Method     string  `bigquery:"method"`     // REQUIRED

	CardLast4       bigquery.NullString `bigquery:"card_last_4"`      // NULLABLE
	Category        bigquery.NullString `bigquery:"category"`         // NULLABLE
	Location        bigquery.NullString `bigquery:"location"`         // NULLABLE
	ReferenceNumber bigquery.NullString `bigquery:"reference_number"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// AttemptRow mirrors the parse_attempts table. Append-only.
type AttemptRow struct {
	AttemptID string `bigquery:"attempt_id"` // REQUIRED
	EmailID   string `bigquery:"email_id"`   // REQUIRED

	Method     string  `bigquery:"method"`     // REQUIRED
	Confidence float64 `bigquery:"confidence"` // REQUIRED
	Succeeded  bool    `bigquery:"succeeded"`  // REQUIRED

	ErrorKind   bigquery.NullString `bigquery:"error_kind"`   // NULLABLE
	RawResponse bigquery.NullString `bigquery:"raw_response"` // NULLABLE

	Timestamp time.Time `bigquery:"ts"` // REQUIRED
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func emailFromRow(row *EmailRow) *domain.RawEmail {
	return &domain.RawEmail{
		EmailID:    row.EmailID,
		MessageID:  row.MessageID,
		Subject:    row.Subject,
		Sender:     row.Sender,
		Body:       row.Body,
		BodyURI:    row.BodyURI.StringVal,
		ReceivedAt: row.ReceivedAt,
		Status:     domain.EmailStatus(row.Status),
	}
}

func transactionToRow(cand *domain.ExtractionCandidate, emailID, transactionID string, now time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   transactionID,
		EmailID:         emailID,
		TransactionType: string(cand.Type),
		Currency:        cand.Currency,
		Merchant:        cand.Merchant,
		Description:     cand.Description,
		Confidence:      cand.Confidence,
		Method:          string(cand.Method),
		CardLast4:       nullString(cand.Fields[domain.FieldCardLast4]),
		Category:        nullString(cand.Fields[domain.FieldCategory]),
		Location:        nullString(cand.Fields[domain.FieldLocation]),
		ReferenceNumber: nullString(cand.Fields[domain.FieldReferenceNumber]),
		CreatedTS:       now,
	}
	if cand.Amount != nil {
		row.Amount = cand.Amount.Rat()
	}
	if cand.Date != nil {
		row.TransactionDate = bigquery.NullDate{Date: *cand.Date, Valid: true}
	}
	return row
}

func candidateFromRow(row *TransactionRow) *domain.ExtractionCandidate {
	cand := &domain.ExtractionCandidate{
		IsTransaction: true,
		Type:          domain.TransactionType(row.TransactionType),
		Currency:      row.Currency,
		Merchant:      row.Merchant,
		Description:   row.Description,
		Confidence:    row.Confidence,
		Method:        domain.ParseMethod(row.Method),
	}
	if row.Amount != nil {
		amt := decimal.NewFromBigRat(row.Amount, 2)
		cand.Amount = &amt
	}
	if row.TransactionDate.Valid {
		d := row.TransactionDate.Date
		cand.Date = &d
	}
	fields := map[string]string{}
	for key, v := range map[string]bigquery.NullString{
		domain.FieldCardLast4:       row.CardLast4,
		domain.FieldCategory:        row.Category,
		domain.FieldLocation:        row.Location,
		domain.FieldReferenceNumber: row.ReferenceNumber,
	} {
		if v.Valid {
			fields[key] = v.StringVal
		}
	}
	if len(fields) > 0 {
		cand.Fields = fields
	}
	return cand
}
