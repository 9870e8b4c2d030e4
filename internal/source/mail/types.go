package mail

// Config carries the settings a fetcher needs to open one mailbox
// session: where to dial, how to authenticate, and what to search for.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Mailbox is the folder selected each cycle, normally INBOX.
	Mailbox string

	// Criterion is "UNSEEN" (only messages never flagged seen by the
	// server) or "ALL".
	Criterion string
}

const (
	// CriterionUnseen restricts the search to messages without \Seen.
	CriterionUnseen = "UNSEEN"

	// CriterionAll matches every message in the mailbox.
	CriterionAll = "ALL"
)
