package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// requiredKeys must all be present in the environment for the process
// to start; a missing one is the only fatal condition in the system.
var requiredKeys = []string{
	"EMAIL_IMAP_SERVER",
	"EMAIL_LOGIN",
	"EMAIL_PASSWORD",
	"TELEGRAM_TOKEN",
	"TELEGRAM_CHAT_ID",
}

// AppConfig is the full runtime configuration, resolved from the
// environment at startup.
type AppConfig struct {
	// IMAPServer is the mailbox host to poll.
	IMAPServer string

	// IMAPPort is the IMAPS port on the mailbox host.
	IMAPPort int

	// Login and Password authenticate the mailbox session.
	Login    string
	Password string

	// TelegramToken authenticates against the Bot API.
	TelegramToken string

	// TelegramChatID is the fixed chat every notification goes to.
	TelegramChatID int64

	// Mailbox is the folder selected each cycle.
	Mailbox string

	// SearchCriterion is either "UNSEEN" or "ALL".
	SearchCriterion string

	// FeedbackSubject is the subject line identifying feedback-form
	// messages whose HTML body gets re-flowed into label/value lines.
	FeedbackSubject string

	// TimeOffsetHours shifts parsed message dates before formatting.
	TimeOffsetHours int

	// PollInterval is the fixed wait between cycles.
	PollInterval time.Duration

	// DBPath is the SQLite file holding the ingested-mail records.
	DBPath string
}

// LoadConfig resolves configuration from the environment via Viper.
// The returned error names every missing required key at once so the
// operator can fix them in one pass.
func LoadConfig() (*AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()

	keys := append([]string{}, requiredKeys...)
	keys = append(keys,
		"IMAP_PORT",
		"MAILBOX",
		"SEARCH_CRITERION",
		"FEEDBACK_SUBJECT",
		"TIME_OFFSET_HOURS",
		"POLL_INTERVAL",
		"DB_PATH",
	)
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	v.SetDefault("IMAP_PORT", 993)
	v.SetDefault("MAILBOX", "INBOX")
	v.SetDefault("SEARCH_CRITERION", "UNSEEN")
	v.SetDefault("FEEDBACK_SUBJECT", "Форма обратной связи")
	v.SetDefault("TIME_OFFSET_HOURS", 3)
	v.SetDefault("POLL_INTERVAL", 60)
	v.SetDefault("DB_PATH", "mailnotify.sqlite3")

	var missing []string
	for _, key := range requiredKeys {
		if v.GetString(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"missing required environment variables: %s",
			strings.Join(missing, ", "),
		)
	}

	criterion := strings.ToUpper(v.GetString("SEARCH_CRITERION"))
	if criterion != "UNSEEN" && criterion != "ALL" {
		return nil, fmt.Errorf(
			"SEARCH_CRITERION must be UNSEEN or ALL, got %q",
			v.GetString("SEARCH_CRITERION"),
		)
	}

	interval := v.GetInt("POLL_INTERVAL")
	if interval <= 0 {
		interval = 60
	}

	return &AppConfig{
		IMAPServer:      v.GetString("EMAIL_IMAP_SERVER"),
		IMAPPort:        v.GetInt("IMAP_PORT"),
		Login:           v.GetString("EMAIL_LOGIN"),
		Password:        v.GetString("EMAIL_PASSWORD"),
		TelegramToken:   v.GetString("TELEGRAM_TOKEN"),
		TelegramChatID:  v.GetInt64("TELEGRAM_CHAT_ID"),
		Mailbox:         v.GetString("MAILBOX"),
		SearchCriterion: criterion,
		FeedbackSubject: v.GetString("FEEDBACK_SUBJECT"),
		TimeOffsetHours: v.GetInt("TIME_OFFSET_HOURS"),
		PollInterval:    time.Duration(interval) * time.Second,
		DBPath:          v.GetString("DB_PATH"),
	}, nil
}
