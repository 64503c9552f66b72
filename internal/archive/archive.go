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

// Package archive stores sweep reports in S3 so they can be diffed over time.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/model"
)

const reportPrefix = "reports/na/"

// Archiver persists NA reports.
type Archiver interface {
	ArchiveNAReport(ctx context.Context, report *model.NAReport) (string, error)
}

type S3Archiver struct {
	client s3iface.S3API
	bucket string
}

func NewS3Archiver(client s3iface.S3API, bucket string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket}
}

// NewS3ArchiverFromConfig returns nil, nil when no bucket is configured.
func NewS3ArchiverFromConfig(cfg config.ArchiveConfig) (*S3Archiver, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.S3Region)
	if cfg.AwsAccessKeyId != "" && cfg.AwsSecretAccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AwsAccessKeyId, cfg.AwsSecretAccessKey, ""))
	}
	if cfg.S3Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.S3Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("creating s3 session: %w", err)
	}
	return NewS3Archiver(s3.New(sess), cfg.S3Bucket), nil
}

// ReportKey is the object key for a report generated at the report's time.
func ReportKey(report *model.NAReport) string {
	return reportPrefix + report.GeneratedAt.UTC().Format("20060102T150405Z") + ".json"
}

func (a *S3Archiver) ArchiveNAReport(ctx context.Context, report *model.NAReport) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}

	key := ReportKey(report)
	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	return key, nil
}
