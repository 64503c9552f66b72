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

package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Kind selects an email template.
type Kind string

const (
	KindShipped    Kind = "shipped"
	KindProduction Kind = "production"
	KindFeedback   Kind = "feedback"
	KindNudge      Kind = "nudge"
)

func (k Kind) Valid() bool {
	switch k {
	case KindShipped, KindProduction, KindFeedback, KindNudge:
		return true
	}
	return false
}

// TemplateData is everything a milestone template may print.
type TemplateData struct {
	OrderID        string `json:"order_id"`
	JobID          string `json:"job_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	ChildName      string `json:"child_name,omitempty"`
	ShippingOption string `json:"shipping_option,omitempty"`
	TrackingCode   string `json:"tracking_code,omitempty"`
	TrackingURL    string `json:"tracking_url,omitempty"`
	ShippedAt      string `json:"shipped_at,omitempty"`
	PreviewURL     string `json:"preview_url,omitempty"`
	FeedbackURL    string `json:"feedback_url,omitempty"`
	ApprovedAt     string `json:"approved_at,omitempty"`
}

const layout = `<html><body style="font-family: Arial, sans-serif;">
<p>Hi {{.DisplayName}},</p>
{{block "content" .}}{{end}}
<p>Thanks,<br/>The team</p>
</body></html>`

var contents = map[Kind]string{
	KindShipped: `{{define "content"}}<p>The storybook for {{.Child}} has been <strong>shipped</strong>.</p>
<ul>
<li><strong>Order:</strong> {{.OrderID}}</li>
<li><strong>Carrier:</strong> {{.ShippingOption}}</li>
<li><strong>Tracking:</strong> {{.TrackingCode}}</li>
<li><strong>Shipped at:</strong> {{.ShippedAt}}</li>
</ul>
{{if .TrackingURL}}<p><a href="{{.TrackingURL}}" style="background:#5784ba;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none">Track your package</a></p>{{end}}{{end}}`,

	KindProduction: `{{define "content"}}<p>The storybook for {{.Child}} is now <strong>in production</strong> with our printer.</p>
<p>Order reference: {{.OrderID}}. We will email you again with tracking details once it ships.</p>{{end}}`,

	KindFeedback: `{{define "content"}}<p>We hope {{.Child}} is enjoying their storybook! Your feedback means the world to us.</p>
{{if .FeedbackURL}}<p><a href="{{.FeedbackURL}}" style="background:#5784ba;color:#fff;padding:10px 20px;border-radius:20px;text-decoration:none;font-weight:bold">Leave a Review</a></p>{{end}}
<p style="font-size:12px">Order reference ID: {{.OrderID}}{{if .ApprovedAt}} · Ordered: {{.ApprovedAt}}{{end}}</p>{{end}}`,

	KindNudge: `{{define "content"}}<p>The preview for {{.Child}}'s storybook is ready and waiting for your approval.</p>
{{if .PreviewURL}}<p><a href="{{.PreviewURL}}" style="background:#5784ba;color:#fff;padding:10px 16px;border-radius:6px;text-decoration:none">Review your book</a></p>{{end}}{{end}}`,
}

var templates = func() map[Kind]*template.Template {
	out := make(map[Kind]*template.Template, len(contents))
	for kind, content := range contents {
		t := template.Must(template.New(string(kind)).Parse(layout))
		out[kind] = template.Must(t.Parse(content))
	}
	return out
}()

type view struct {
	TemplateData
	DisplayName string
	Child       string
}

// Render builds the message for kind. To is left for the caller.
func Render(kind Kind, data TemplateData) (Message, error) {
	t, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}

	v := view{
		TemplateData: data,
		DisplayName:  titleOr(data.UserName, "there"),
		Child:        titleOr(data.ChildName, "your child"),
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return Message{}, err
	}
	return Message{Subject: subject(kind, data, v.Child), HTML: buf.String()}, nil
}

func subject(kind Kind, data TemplateData, child string) string {
	switch kind {
	case KindShipped:
		return fmt.Sprintf("Your order %s has shipped!", data.OrderID)
	case KindProduction:
		return fmt.Sprintf("Your order %s is being printed", data.OrderID)
	case KindFeedback:
		return fmt.Sprintf("We'd love your feedback on %s's Storybook!", child)
	default:
		return fmt.Sprintf("%s's storybook is waiting for you", child)
	}
}

// CarrierSlug turns a shipping option such as "Bluedart In Domestic" into a tracking-site slug.
func CarrierSlug(shippingOption string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(shippingOption)), " ", "-")
}

// TrackingLink is empty unless both parts are known.
func TrackingLink(shippingOption, tracking string) string {
	if strings.TrimSpace(shippingOption) == "" || strings.TrimSpace(tracking) == "" {
		return ""
	}
	return "https://track.aftership.com/" + CarrierSlug(shippingOption) + "/" + strings.TrimSpace(tracking)
}

func titleOr(s, fallback string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return fallback
	}
	for i, w := range words {
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[:1])) + strings.ToLower(string(r[1:]))
	}
	return strings.Join(words, " ")
}
