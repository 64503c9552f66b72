package mailer

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"testing"

	"github.com/printwell/orderflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderShipped(t *testing.T) {
	msg, err := Render(KindShipped, TemplateData{
		OrderID:        "#42",
		UserName:       "asha rao",
		ChildName:      "mira",
		ShippingOption: "Bluedart In Domestic",
		TrackingCode:   "AWB123",
		TrackingURL:    TrackingLink("Bluedart In Domestic", "AWB123"),
		ShippedAt:      "01 May 2024",
	})
	require.NoError(t, err)
	assert.Equal(t, "Your order #42 has shipped!", msg.Subject)
	assert.Contains(t, msg.HTML, "Hi Asha Rao,")
	assert.Contains(t, msg.HTML, "Mira")
	assert.Contains(t, msg.HTML, "https://track.aftership.com/bluedart-in-domestic/AWB123")
}

func TestRenderEscapesData(t *testing.T) {
	msg, err := Render(KindProduction, TemplateData{OrderID: "<script>x</script>"})
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "Hi there,")
}

func TestRenderEveryKind(t *testing.T) {
	for _, kind := range []Kind{KindShipped, KindProduction, KindFeedback, KindNudge} {
		assert.True(t, kind.Valid())
		msg, err := Render(kind, TemplateData{OrderID: "#1", ChildName: "leo", FeedbackURL: "https://review.test", PreviewURL: "https://preview.test/1"})
		require.NoError(t, err, kind)
		assert.NotEmpty(t, msg.Subject)
		assert.NotEmpty(t, msg.HTML)
	}

	_, err := Render(Kind("invoice"), TemplateData{})
	assert.Error(t, err)
	assert.False(t, Kind("invoice").Valid())
}

func TestTrackingLink(t *testing.T) {
	assert.Equal(t, "", TrackingLink("", "AWB1"))
	assert.Equal(t, "", TrackingLink("delhivery", " "))
	assert.Equal(t, "https://track.aftership.com/delhivery/AWB1", TrackingLink(" Delhivery ", "AWB1"))
}

func TestRecipientOverride(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{SMTPHost: "smtp.test"})
	assert.Equal(t, "parent@example.com", m.Recipient(" parent@example.com "))
	assert.Equal(t, "465", m.port)

	m = NewSMTPMailer(config.EmailConfig{SMTPHost: "smtp.test", OverrideRecipient: "qa@example.com"})
	assert.Equal(t, "qa@example.com", m.Recipient("parent@example.com"))
}

func TestSendRequiresHostAndRecipient(t *testing.T) {
	err := NewSMTPMailer(config.EmailConfig{}).Send(context.Background(), Message{To: "a@b.c"})
	assert.Error(t, err)

	err = NewSMTPMailer(config.EmailConfig{SMTPHost: "smtp.test"}).Send(context.Background(), Message{To: " "})
	assert.Error(t, err)
}

func TestNewMsgMultipart(t *testing.T) {
	message, err := newMsg("shop@example.com", "parent@example.com", Message{
		Subject: "Order shipped ✓",
		Text:    "Hi Anaïs, your book is on its way.",
		HTML:    "<p>Hi Anaïs</p>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = message.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "<parent@example.com>", parsed.Header.Get("To"))
	assert.NotEmpty(t, parsed.Header.Get("Date"))
	assert.NotEmpty(t, parsed.Header.Get("Message-ID"))

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Order shipped ✓", subject)

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types, encodings []string
	var bodies []string
	for {
		p, err := mr.NextRawPart()
		if err != nil {
			break
		}
		types = append(types, strings.Split(p.Header.Get("Content-Type"), ";")[0])
		encodings = append(encodings, p.Header.Get("Content-Transfer-Encoding"))
		raw, err := io.ReadAll(quotedprintable.NewReader(p))
		require.NoError(t, err)
		bodies = append(bodies, string(raw))
	}
	assert.Equal(t, []string{"text/plain", "text/html"}, types)
	assert.Equal(t, []string{"quoted-printable", "quoted-printable"}, encodings)
	assert.Equal(t, []string{"Hi Anaïs, your book is on its way.", "<p>Hi Anaïs</p>"}, bodies)
}

func TestNewMsgRejectsBadAddresses(t *testing.T) {
	_, err := newMsg("", "parent@example.com", Message{Subject: "x"})
	assert.Error(t, err)

	_, err = newMsg("shop@example.com", "not an address", Message{Subject: "x"})
	assert.Error(t, err)
}

func TestSendRejectsBadPort(t *testing.T) {
	m := NewSMTPMailer(config.EmailConfig{SMTPHost: "smtp.test", SMTPPort: "smtp", From: "shop@example.com"})
	err := m.Send(context.Background(), Message{To: "parent@example.com", Subject: "x", HTML: "<p>x</p>"})
	assert.ErrorContains(t, err, "invalid smtp port")
}
