package domain

import "time"

// EmailStatus tracks where a raw email is in its parsing lifecycle.
type EmailStatus string

const (
	// EmailPending means the email has been ingested but not yet parsed.
	EmailPending EmailStatus = "pending"
	// EmailParsed means parsing produced a transaction candidate.
	EmailParsed EmailStatus = "parsed"
	// EmailUnparseable means parsing completed but found no transaction.
	EmailUnparseable EmailStatus = "unparseable"
	// EmailFailed means parsing or persistence failed hard.
	EmailFailed EmailStatus = "failed"
)

// RawEmail is one ingested email as handed over by the ingestion service.
// Large bodies may be archived to object storage, in which case BodyURI
// points at the archived object and Body is empty until resolved.
type RawEmail struct {
	EmailID    string
	MessageID  string
	Subject    string
	Sender     string
	Body       string
	BodyURI    string
	ReceivedAt time.Time
	Status     EmailStatus
}
