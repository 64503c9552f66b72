/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package mailer renders and delivers milestone emails.
package mailer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/printwell/orderflow/config"
	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"
)

const dialTimeout = 20 * time.Second

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers over SMTP. Port 465 uses implicit TLS, any other port
// upgrades with STARTTLS when the server offers it.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	override string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	port := cfg.SMTPPort
	if port == "" {
		port = "465"
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		from:     from,
		override: strings.TrimSpace(cfg.OverrideRecipient),
	}
}

// Recipient returns where a message addressed to to is actually delivered.
func (m *SMTPMailer) Recipient(to string) string {
	if m.override != "" {
		return m.override
	}
	return strings.TrimSpace(to)
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.host == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	to := m.Recipient(msg.To)
	if to == "" {
		return fmt.Errorf("empty recipient")
	}

	message, err := newMsg(m.from, to, msg)
	if err != nil {
		return err
	}
	client, err := m.client()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}

	logrus.WithFields(logrus.Fields{"to": to, "subject": msg.Subject}).Info("email sent")
	return nil
}

func (m *SMTPMailer) client() (*mail.Client, error) {
	port, err := strconv.Atoi(m.port)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp port %q: %w", m.port, err)
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(dialTimeout),
	}
	if port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	return mail.NewClient(m.host, opts...)
}

// newMsg builds a multipart/alternative message with a text and an HTML part.
func newMsg(from, to string, msg Message) (*mail.Msg, error) {
	message := mail.NewMsg()
	if err := message.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := message.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	message.Subject(msg.Subject)
	message.SetDate()
	message.SetMessageID()

	text := msg.Text
	if text == "" {
		text = "This email contains HTML content."
	}
	message.SetBodyString(mail.TypeTextPlain, text)
	message.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	return message, nil
}
