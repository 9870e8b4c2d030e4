package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailnotify/internal/source"
)

const feedbackSubject = "Форма обратной связи"

// rawMessage assembles an RFC 822 message with CRLF line endings.
func rawMessage(headers []string, body string) []byte {
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}

func TestDecodePlainMessage(t *testing.T) {
	d := NewDecoder(feedbackSubject, 3)

	raw := rawMessage([]string{
		"Return-Path: <sender@example.com>",
		"From: sender@example.com",
		"Subject: Hello",
		"Date: Mon, 02 Sep 2024 10:00:00 +0000",
		"Content-Type: text/plain; charset=utf-8",
	}, "Hi there")

	msg, err := d.Decode(102, raw)
	require.NoError(t, err)

	assert.Equal(t, "Hello", msg.Thread)
	assert.Equal(t, "2024-09-02 13:00", msg.Date)
	assert.Equal(t, "<sender@example.com>", msg.Sender)
	assert.Equal(t, "Hi there", msg.Body)
}

func TestDecodeEncodedSubject(t *testing.T) {
	d := NewDecoder(feedbackSubject, 0)

	raw := rawMessage([]string{
		"Return-Path: <forms@example.com>",
		"Subject: =?UTF-8?B?0KTQvtGA0LzQsCDQvtCx0YDQsNGC0L3QvtC5INGB0LLRj9C30Lg=?=",
		"Date: Mon, 02 Sep 2024 10:00:00 +0000",
		"Content-Type: text/html; charset=utf-8",
	}, "<html><body><div>\nЗаголовок\nИмя\nИван\n</div></body></html>")

	msg, err := d.Decode(101, raw)
	require.NoError(t, err)
	assert.Equal(t, feedbackSubject, msg.Thread)
	assert.Equal(t, "Заголовок\nИмя: Иван\n", msg.Body)
}

func TestDecodeFeedbackFormReflow(t *testing.T) {
	d := NewDecoder(feedbackSubject, 3)

	body := "<html><body><div>\n" +
		feedbackSubject + "\n\n" +
		"Имя\nИван\n" +
		"Email\nivan@example.com\n" +
		"</div></body></html>"

	raw := rawMessage([]string{
		"Return-Path: <forms@example.com>",
		"Subject: " + feedbackSubject,
		"Date: Mon, 02 Sep 2024 10:00:00 +0300",
		"Content-Type: text/html; charset=utf-8",
	}, body)

	msg, err := d.Decode(101, raw)
	require.NoError(t, err)

	assert.Equal(t, feedbackSubject, msg.Thread)
	assert.Equal(t, "2024-09-02 13:00", msg.Date)
	assert.Equal(t,
		feedbackSubject+"\nИмя: Иван\nEmail: ivan@example.com\n",
		msg.Body,
	)
}

// An odd number of lines after the heading leaves one label without a
// value; the trailing line is dropped rather than read past the end.
func TestDecodeFeedbackFormDropsUnpairedLine(t *testing.T) {
	d := NewDecoder(feedbackSubject, 0)

	body := "<html><body><div>\n" +
		"Заголовок\n" +
		"Имя\nИван\n" +
		"Телефон\n" +
		"</div></body></html>"

	raw := rawMessage([]string{
		"Return-Path: <forms@example.com>",
		"Subject: " + feedbackSubject,
		"Date: Mon, 02 Sep 2024 10:00:00 +0000",
		"Content-Type: text/html; charset=utf-8",
	}, body)

	msg, err := d.Decode(101, raw)
	require.NoError(t, err)
	assert.Equal(t, "Заголовок\nИмя: Иван\n", msg.Body)
}

func TestDecodeFeedbackFormWithBrMarkup(t *testing.T) {
	d := NewDecoder(feedbackSubject, 0)

	body := "<html><body><div>Заголовок<br>Имя<br>Иван</div></body></html>"

	raw := rawMessage([]string{
		"Return-Path: <forms@example.com>",
		"Subject: " + feedbackSubject,
		"Date: Mon, 02 Sep 2024 10:00:00 +0000",
		"Content-Type: text/html; charset=utf-8",
	}, body)

	msg, err := d.Decode(101, raw)
	require.NoError(t, err)
	assert.Equal(t, "Заголовок\nИмя: Иван\n", msg.Body)
}

func TestDecodeMissingDateHeader(t *testing.T) {
	d := NewDecoder(feedbackSubject, 3)

	raw := rawMessage([]string{
		"Return-Path: <sender@example.com>",
		"Subject: Hello",
		"Content-Type: text/plain; charset=utf-8",
	}, "Hi")

	_, err := d.Decode(55, raw)
	require.Error(t, err)
	assert.True(t, source.IsDecodeError(err))
	assert.Contains(t, err.Error(), "uid=55")
}

func TestDecodeFeedbackWithoutContainer(t *testing.T) {
	d := NewDecoder(feedbackSubject, 3)

	raw := rawMessage([]string{
		"Return-Path: <forms@example.com>",
		"Subject: " + feedbackSubject,
		"Date: Mon, 02 Sep 2024 10:00:00 +0000",
		"Content-Type: text/plain; charset=utf-8",
	}, "no markup at all")

	_, err := d.Decode(56, raw)
	require.Error(t, err)
	assert.True(t, source.IsDecodeError(err))
}

func TestDecodeNonFeedbackHTMLPassesThrough(t *testing.T) {
	d := NewDecoder(feedbackSubject, 0)

	body := "<html><body><div>kept verbatim</div></body></html>"
	raw := rawMessage([]string{
		"Return-Path: <sender@example.com>",
		"Subject: Newsletter",
		"Date: Mon, 02 Sep 2024 10:00:00 +0000",
		"Content-Type: text/html; charset=utf-8",
	}, body)

	msg, err := d.Decode(57, raw)
	require.NoError(t, err)
	assert.Equal(t, body, msg.Body)
}
