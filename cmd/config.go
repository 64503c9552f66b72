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

package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/printwell/orderflow/config"
)

const redacted = "********"

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactedCopy blanks every credential so the output is safe to paste into an issue.
func redactedCopy(cfg *config.Configuration) config.Configuration {
	out := *cfg
	redact(&out.Server.SecretKey)
	redact(&out.TelemetryKey)
	redact(&out.DataSource.Dns)
	redact(&out.Redis.Dns)
	redact(&out.Gateway.KeySecret)
	redact(&out.PrintVendor.APIKey)
	redact(&out.PrintVendor.WebhookKey)
	redact(&out.PrintVendor.BasicPass)
	redact(&out.Carrier.WebhookToken)
	redact(&out.Email.Password)
	redact(&out.Archive.AwsSecretAccessKey)
	redact(&out.Notification.Slack.WebhookUrl)
	return out
}

func configCommands() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "config outputs your instance's computed configuration",
		Annotations: noEngine,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error getting config: %v\n", err)
			}

			data, err := json.MarshalIndent(redactedCopy(cfg), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
