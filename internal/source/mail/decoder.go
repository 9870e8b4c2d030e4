package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"golang.org/x/net/html"

	"github.com/nhle/mailnotify/internal/model"
	"github.com/nhle/mailnotify/internal/source"
)

// dateLayout is the canonical timestamp rendering for stored records.
const dateLayout = "2006-01-02 15:04"

// Decoder normalizes raw RFC 822 messages into DecodedMessage values.
// It is pure: no I/O, no state beyond its configuration.
type Decoder struct {
	feedbackSubject string
	offset          time.Duration
}

// NewDecoder returns a decoder that re-flows messages whose subject
// equals feedbackSubject and shifts parsed dates by offsetHours.
func NewDecoder(feedbackSubject string, offsetHours int) *Decoder {
	return &Decoder{
		feedbackSubject: feedbackSubject,
		offset:          time.Duration(offsetHours) * time.Hour,
	}
}

// Decode parses one raw message into its normalized form. Failures are
// wrapped in a DecodeError scoped to the given uid so the caller can
// skip the message without abandoning the batch.
func (d *Decoder) Decode(uid uint32, raw []byte) (model.DecodedMessage, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return model.DecodedMessage{}, &source.DecodeError{
			UID: uid,
			Err: fmt.Errorf("parsing message: %w", err),
		}
	}
	defer mr.Close()

	subject, err := mr.Header.Subject()
	if err != nil {
		// Keep the raw header when the encoded word is malformed.
		subject = mr.Header.Get("Subject")
	}

	date, err := mr.Header.Date()
	if err != nil {
		return model.DecodedMessage{}, &source.DecodeError{
			UID: uid,
			Err: fmt.Errorf("parsing date header: %w", err),
		}
	}

	sender := mr.Header.Get("Return-Path")

	payload, err := firstInlineText(mr)
	if err != nil {
		return model.DecodedMessage{}, &source.DecodeError{
			UID: uid,
			Err: err,
		}
	}

	body := payload
	if subject == d.feedbackSubject {
		body, err = reflowFeedbackHTML(payload)
		if err != nil {
			return model.DecodedMessage{}, &source.DecodeError{
				UID: uid,
				Err: err,
			}
		}
	}

	return model.DecodedMessage{
		Thread: subject,
		Date:   date.Add(d.offset).Format(dateLayout),
		Sender: sender,
		Body:   body,
	}, nil
}

// firstInlineText returns the first inline part's text, which for both
// single-part and multipart messages is the displayed payload.
func firstInlineText(mr *gomail.Reader) (string, error) {
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading message part: %w", err)
		}
		if _, ok := part.Header.(*gomail.InlineHeader); !ok {
			continue
		}
		b, err := io.ReadAll(part.Body)
		if err != nil {
			return "", fmt.Errorf("reading part body: %w", err)
		}
		return string(b), nil
	}
	return "", errors.New("message has no inline part")
}

// reflowFeedbackHTML turns a feedback-form HTML payload into plain
// text: the first <div>'s visible text is split into non-blank lines,
// line 0 is kept as a heading, and each following pair of lines becomes
// one "label: value" line. A trailing unpaired line is dropped.
func reflowFeedbackHTML(payload string) (string, error) {
	doc, err := html.Parse(strings.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("parsing feedback html: %w", err)
	}

	div := findFirstElement(doc, "div")
	if div == nil {
		return "", errors.New("feedback message has no div container")
	}

	var lines []string
	for _, line := range strings.Split(collectText(div), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return "", errors.New("feedback container is empty")
	}

	var b strings.Builder
	b.WriteString(lines[0])
	b.WriteString("\n")
	for i := 1; i+1 < len(lines); i += 2 {
		b.WriteString(lines[i])
		b.WriteString(": ")
		b.WriteString(lines[i+1])
		b.WriteString("\n")
	}
	return b.String(), nil
}

// findFirstElement walks the parse tree depth-first and returns the
// first element node with the given tag.
func findFirstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// collectText concatenates the visible text under a node. Line breaks
// and block boundaries become newlines so line-oriented splitting works
// on markup that doesn't carry literal newlines.
func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteString("\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "div", "p", "li", "tr":
				b.WriteString("\n")
			}
		}
	}
	walk(n)
	return b.String()
}
