package model

// MailRecord is one persisted mailbox message and its delivery status.
// Rows are inserted once, flipped to delivered after a confirmed
// notification, and never deleted.
type MailRecord struct {
	UID       uint32 `db:"uid"`
	Thread    string `db:"thread"`
	Date      string `db:"date"`
	Sender    string `db:"sender"`
	Body      string `db:"body"`
	Delivered bool   `db:"delivered"`
}

// DecodedMessage is the normalized form of a raw mailbox message
// produced by the decoder: decoded subject, formatted timestamp,
// return-path sender, and extracted body text.
type DecodedMessage struct {
	Thread string
	Date   string
	Sender string
	Body   string
}

// Content returns the record's decoded fields, used when comparing a
// stored row against a freshly fetched candidate.
func (r MailRecord) Content() DecodedMessage {
	return DecodedMessage{
		Thread: r.Thread,
		Date:   r.Date,
		Sender: r.Sender,
		Body:   r.Body,
	}
}
