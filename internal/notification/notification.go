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

package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/request"
	"github.com/printwell/orderflow/model"
	"github.com/sirupsen/logrus"
)

// maxListedIDs caps how many NA ids are printed in one Slack message.
const maxListedIDs = 50

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func header(text string) slackBlock {
	return slackBlock{Type: "header", Text: &slackText{Type: "plain_text", Text: text, Emoji: true}}
}

func field(label string, value interface{}) slackBlock {
	return slackBlock{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%v", label, value)}}}
}

func postToSlack(ctx context.Context, webhookURL string, msg slackMessage) error {
	payload, err := request.ToJsonReq(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, payload)
	if err != nil {
		return err
	}
	_, err = request.Call(req, nil)
	return err
}

// SlackNotification sends an error message to the configured Slack webhook.
func SlackNotification(err error) {
	conf, cerr := config.Fetch()
	if cerr != nil {
		log.Println(cerr)
		return
	}

	msg := slackMessage{Blocks: []slackBlock{
		header(fmt.Sprintf("Error From %s 🐞", conf.ProjectName)),
		field("Error", err.Error()),
		field("Time", time.Now().Format(time.RFC822)),
	}}
	if perr := postToSlack(context.Background(), conf.Notification.Slack.WebhookUrl, msg); perr != nil {
		log.Println(perr)
	}
}

// NotifyError logs systemError and forwards it to Slack when configured.
// It runs in its own goroutine so callers are never delayed.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}
		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification(systemError)
		}
	}(systemError)
}

// NotifyNAReport posts a summary of unmatched payments. It is synchronous so
// the sweep can report delivery failures, and is a no-op when Slack is not
// configured.
func NotifyNAReport(ctx context.Context, report *model.NAReport) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return nil
	}
	return postToSlack(ctx, conf.Notification.Slack.WebhookUrl, naReportMessage(conf.ProjectName, report))
}

func naReportMessage(project string, report *model.NAReport) slackMessage {
	s := report.Summary
	ids := report.NAPaymentIDs
	more := ""
	if len(ids) > maxListedIDs {
		more = fmt.Sprintf("\n…and %d more", len(ids)-maxListedIDs)
		ids = ids[:maxListedIDs]
	}
	return slackMessage{Blocks: []slackBlock{
		header(fmt.Sprintf("%s: %d unmatched %s payments", project, s.NACount, s.NAStatusFilter)),
		field("Window", s.DateWindow.FromDate+" → "+s.DateWindow.ToDate),
		field("Payments fetched", s.TotalPaymentsRows),
		field("Matched", s.MatchedDistinctPaymentIDs),
		field("Payment ids", "`"+strings.Join(ids, "`, `")+"`"+more),
	}}
}
