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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slackURL = "https://hooks.slack.test/services/T000/B000/XXX"

func testReport(n int) *model.NAReport {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("pay_%03d", i)
	}
	return &model.NAReport{
		Summary: model.NASummary{
			TotalPaymentsRows:         n + 10,
			MatchedDistinctPaymentIDs: 10,
			NACount:                   n,
			NAStatusFilter:            "captured",
			DateWindow:                model.DateWindow{FromDate: "2024-05-01", ToDate: "2024-05-04"},
		},
		NAPaymentIDs: ids,
	}
}

func TestNotifyNAReport(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	config.MockConfig(&config.Configuration{
		ProjectName:  "orderflow",
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: slackURL}},
	})

	var body string
	httpmock.RegisterResponder("POST", slackURL, func(req *http.Request) (*http.Response, error) {
		var msg slackMessage
		require.NoError(t, json.NewDecoder(req.Body).Decode(&msg))
		for _, b := range msg.Blocks {
			if b.Text != nil {
				body += b.Text.Text + "\n"
			}
			for _, f := range b.Fields {
				body += f.Text + "\n"
			}
		}
		return httpmock.NewStringResponse(200, "ok"), nil
	})

	require.NoError(t, NotifyNAReport(context.Background(), testReport(2)))
	assert.Contains(t, body, "2 unmatched captured payments")
	assert.Contains(t, body, "`pay_000`, `pay_001`")
	assert.Contains(t, body, "2024-05-01 → 2024-05-04")
}

func TestNotifyNAReportTruncatesLongLists(t *testing.T) {
	msg := naReportMessage("orderflow", testReport(maxListedIDs+5))
	last := msg.Blocks[len(msg.Blocks)-1].Fields[0].Text
	assert.Equal(t, maxListedIDs, strings.Count(last, "pay_"))
	assert.Contains(t, last, "and 5 more")
}

func TestNotifyNAReportWithoutSlack(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	config.MockConfig(&config.Configuration{})

	require.NoError(t, NotifyNAReport(context.Background(), testReport(1)))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestNotifyNAReportSurfacesDeliveryFailure(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	config.MockConfig(&config.Configuration{
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: slackURL}},
	})
	httpmock.RegisterResponder("POST", slackURL, httpmock.NewStringResponder(404, "no_service"))

	assert.Error(t, NotifyNAReport(context.Background(), testReport(1)))
}

func TestSlackNotificationEscapesErrorText(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	config.MockConfig(&config.Configuration{
		ProjectName:  "orderflow",
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: slackURL}},
	})

	var valid bool
	httpmock.RegisterResponder("POST", slackURL, func(req *http.Request) (*http.Response, error) {
		var msg slackMessage
		valid = json.NewDecoder(req.Body).Decode(&msg) == nil && len(msg.Blocks) == 3
		return httpmock.NewStringResponse(200, "ok"), nil
	})

	SlackNotification(fmt.Errorf(`order "#42" failed: {"bad":true}`))
	assert.True(t, valid)
}
