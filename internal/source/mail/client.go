package mail

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/model"
	"github.com/nhle/mailnotify/internal/source"
)

// imapClient is the narrow slice of imapclient.Client the fetcher
// needs. Wrapping it lets tests inject a fake server session.
type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
}

// Fetcher opens one mailbox session per call: connect, authenticate,
// select, search, fetch, decode, tear down. It holds no state between
// calls.
type Fetcher struct {
	cfg         Config
	decoder     *Decoder
	log         *zap.SugaredLogger
	dialTimeout time.Duration
	newClient   func() (imapClient, error)
}

// FetcherOption customizes fetcher behavior.
type FetcherOption func(*Fetcher)

// WithDialTimeout overrides the socket dial timeout.
func WithDialTimeout(timeout time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.dialTimeout = timeout
		}
	}
}

func withClientFactory(factory func() (imapClient, error)) FetcherOption {
	return func(f *Fetcher) {
		f.newClient = factory
	}
}

// NewFetcher returns a mailbox fetcher ready for cycle polling.
func NewFetcher(
	cfg Config,
	decoder *Decoder,
	log *zap.SugaredLogger,
	opts ...FetcherOption,
) *Fetcher {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	f := &Fetcher{
		cfg:         cfg,
		decoder:     decoder,
		log:         log,
		dialTimeout: 30 * time.Second,
	}
	f.newClient = f.defaultClientFactory
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll drains the configured mailbox once and returns decoded
// messages keyed by server uid. A search with zero matches returns
// (nil, nil) after clean teardown, distinct from a failed fetch.
//
// A message that fails to decode is logged with its uid and skipped;
// the rest of the batch proceeds. Command-level failures abort with a
// ProtocolError.
func (f *Fetcher) FetchAll(ctx context.Context) (map[uint32]model.DecodedMessage, error) {
	client, err := f.newClient()
	if err != nil {
		addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
		return nil, &source.TransportError{Addr: addr, Err: err}
	}
	defer f.safeClose(client)

	if err := client.Login(f.cfg.Username, f.cfg.Password).Wait(); err != nil {
		return nil, &source.ProtocolError{Op: "login", Err: err}
	}
	// The session is authenticated from here on; log out even when a
	// later command fails so no server-side session leaks.
	defer func() {
		if err := client.Logout().Wait(); err != nil {
			f.log.Debugw("imap logout", "error", err)
		}
	}()

	selectData, err := client.Select(f.cfg.Mailbox, nil).Wait()
	if err != nil {
		return nil, &source.ProtocolError{
			Op:  fmt.Sprintf("select %s", f.cfg.Mailbox),
			Err: err,
		}
	}
	f.log.Infow("mailbox selected",
		"mailbox", f.cfg.Mailbox,
		"total", selectData.NumMessages,
	)

	criteria := &imap.SearchCriteria{}
	if f.cfg.Criterion != CriterionAll {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &source.ProtocolError{Op: "search", Err: err}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		f.log.Info("no new mail")
		return nil, nil
	}
	f.log.Infow("messages matched", "count", len(uids))

	// Peek leaves \Seen untouched: a message whose notification fails
	// must still match the next cycle's UNSEEN search, or it would
	// never be offered for retry.
	bodySection := &imap.FetchItemBodySection{Peek: true}

	uidSet := imap.UIDSetNum(uids...)
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}
	buffers, err := client.Fetch(uidSet, fetchOpts).Collect()
	if err != nil {
		return nil, &source.ProtocolError{Op: "fetch", Err: err}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	decoded := make(map[uint32]model.DecodedMessage, len(buffers))
	for _, buf := range buffers {
		uid := uint32(buf.UID)
		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			f.log.Warnw("message without body section, skipped", "uid", uid)
			continue
		}
		msg, err := f.decoder.Decode(uid, raw)
		if err != nil {
			f.log.Warnw("undecodable message skipped", "uid", uid, "error", err)
			continue
		}
		decoded[uid] = msg
	}

	return decoded, nil
}

func (f *Fetcher) safeClose(client imapClient) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		f.log.Debugw("imap close", "error", err)
	}
}

func (f *Fetcher) defaultClientFactory() (imapClient, error) {
	addr := fmt.Sprintf("%s:%d", f.cfg.Host, f.cfg.Port)
	opts := &imapclient.Options{Dialer: &net.Dialer{Timeout: f.dialTimeout}}
	client, err := imapclient.DialTLS(addr, opts)
	if err != nil {
		return nil, err
	}
	return &imapClientWrapper{Client: client}, nil
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
