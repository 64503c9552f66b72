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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	DefaultMaxFetch           = 200000
	MinMaxFetch               = 1
	MaxMaxFetch               = 1000000
	DefaultOrdersBatchSize    = 50000
	MinOrdersBatchSize        = 1000
	MaxOrdersBatchSize        = 200000
	DefaultNAStatus           = "captured"
	DefaultGatewayPageSize    = 100
	DefaultGatewayTimeoutSec  = 60
	DefaultDetailsTimeoutSec  = 20
	DefaultSweepCron          = "@every 6h"
	DefaultSweepLookbackHours = 72
	DefaultSweepLockTTLSec    = 1800
	DefaultPageCount          = 35
	DefaultShippingLevel      = "cp_saver"
	DefaultTimezone           = "Asia/Kolkata"
	DefaultEmailQueue         = "emails"
	DefaultSweepQueue         = "sweeps"
	DefaultMonitoringPort     = "5004"
	DefaultMaxRetryAttempts   = 3
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"ORDERFLOW_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"ORDERFLOW_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"ORDERFLOW_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"ORDERFLOW_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"ORDERFLOW_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"ORDERFLOW_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"ORDERFLOW_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"ORDERFLOW_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"ORDERFLOW_REDIS_SKIP_TLS_VERIFY"`
}

// GatewayConfig holds the payment gateway credential pair and paging limits.
// KeySecret doubles as the signing key for manual payment claims.
type GatewayConfig struct {
	BaseURL           string `json:"base_url" envconfig:"ORDERFLOW_GATEWAY_BASE_URL"`
	KeyID             string `json:"key_id" envconfig:"ORDERFLOW_GATEWAY_KEY_ID"`
	KeySecret         string `json:"key_secret" envconfig:"ORDERFLOW_GATEWAY_KEY_SECRET"`
	PageSize          int    `json:"page_size" envconfig:"ORDERFLOW_GATEWAY_PAGE_SIZE"`
	TimeoutSec        int    `json:"timeout_sec" envconfig:"ORDERFLOW_GATEWAY_TIMEOUT_SEC"`
	DetailsTimeoutSec int    `json:"details_timeout_sec" envconfig:"ORDERFLOW_GATEWAY_DETAILS_TIMEOUT_SEC"`
}

type PrintVendorConfig struct {
	APIURL           string `json:"api_url" envconfig:"ORDERFLOW_PRINT_VENDOR_API_URL"`
	APIKey           string `json:"api_key" envconfig:"ORDERFLOW_PRINT_VENDOR_API_KEY"`
	WebhookKey       string `json:"webhook_key" envconfig:"ORDERFLOW_PRINT_VENDOR_WEBHOOK_KEY"`
	BasicUser        string `json:"basic_user" envconfig:"ORDERFLOW_PRINT_VENDOR_BASIC_USER"`
	BasicPass        string `json:"basic_pass" envconfig:"ORDERFLOW_PRINT_VENDOR_BASIC_PASS"`
	ContactEmail     string `json:"contact_email" envconfig:"ORDERFLOW_PRINT_VENDOR_CONTACT_EMAIL"`
	ShippingLevel    string `json:"shipping_level" envconfig:"ORDERFLOW_PRINT_VENDOR_SHIPPING_LEVEL"`
	DefaultPageCount int    `json:"default_page_count" envconfig:"ORDERFLOW_PRINT_VENDOR_DEFAULT_PAGE_COUNT"`
	TimeoutSec       int    `json:"timeout_sec" envconfig:"ORDERFLOW_PRINT_VENDOR_TIMEOUT_SEC"`
}

type CarrierConfig struct {
	WebhookToken string `json:"webhook_token" envconfig:"ORDERFLOW_CARRIER_WEBHOOK_TOKEN"`
}

type ReconciliationConfig struct {
	OrdersBatchSize    int    `json:"orders_batch_size" envconfig:"ORDERFLOW_RECONCILIATION_ORDERS_BATCH_SIZE"`
	MaxFetch           int    `json:"max_fetch" envconfig:"ORDERFLOW_RECONCILIATION_MAX_FETCH"`
	NAStatus           string `json:"na_status" envconfig:"ORDERFLOW_RECONCILIATION_NA_STATUS"`
	CaseInsensitiveIDs bool   `json:"case_insensitive_ids" envconfig:"ORDERFLOW_RECONCILIATION_CASE_INSENSITIVE_IDS"`
	SweepCron          string `json:"sweep_cron" envconfig:"ORDERFLOW_RECONCILIATION_SWEEP_CRON"`
	SweepLookbackHours int    `json:"sweep_lookback_hours" envconfig:"ORDERFLOW_RECONCILIATION_SWEEP_LOOKBACK_HOURS"`
	SweepLockTTLSec    int    `json:"sweep_lock_ttl_sec" envconfig:"ORDERFLOW_RECONCILIATION_SWEEP_LOCK_TTL_SEC"`
}

type EmailConfig struct {
	SMTPHost          string `json:"smtp_host" envconfig:"ORDERFLOW_EMAIL_SMTP_HOST"`
	SMTPPort          string `json:"smtp_port" envconfig:"ORDERFLOW_EMAIL_SMTP_PORT"`
	Username          string `json:"username" envconfig:"ORDERFLOW_EMAIL_USERNAME"`
	Password          string `json:"password" envconfig:"ORDERFLOW_EMAIL_PASSWORD"`
	From              string `json:"from" envconfig:"ORDERFLOW_EMAIL_FROM"`
	OverrideRecipient string `json:"override_recipient" envconfig:"ORDERFLOW_EMAIL_OVERRIDE_RECIPIENT"`
	PreviewBaseURL    string `json:"preview_base_url" envconfig:"ORDERFLOW_EMAIL_PREVIEW_BASE_URL"`
	FeedbackURL       string `json:"feedback_url" envconfig:"ORDERFLOW_EMAIL_FEEDBACK_URL"`
}

type QueueConfig struct {
	EmailQueue       string `json:"email_queue" envconfig:"ORDERFLOW_QUEUE_EMAIL"`
	SweepQueue       string `json:"sweep_queue" envconfig:"ORDERFLOW_QUEUE_SWEEP"`
	MonitoringPort   string `json:"monitoring_port" envconfig:"ORDERFLOW_QUEUE_MONITORING_PORT"`
	MaxRetryAttempts int    `json:"max_retry_attempts" envconfig:"ORDERFLOW_QUEUE_MAX_RETRY_ATTEMPTS"`
}

type ArchiveConfig struct {
	S3Bucket           string `json:"s3_bucket" envconfig:"ORDERFLOW_ARCHIVE_S3_BUCKET"`
	S3Region           string `json:"s3_region" envconfig:"ORDERFLOW_ARCHIVE_S3_REGION"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"ORDERFLOW_ARCHIVE_S3_ENDPOINT"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"ORDERFLOW_ARCHIVE_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"ORDERFLOW_ARCHIVE_AWS_SECRET_ACCESS_KEY"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"ORDERFLOW_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"ORDERFLOW_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"ORDERFLOW_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"ORDERFLOW_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string               `json:"project_name" envconfig:"ORDERFLOW_PROJECT_NAME"`
	Timezone        string               `json:"timezone" envconfig:"ORDERFLOW_TIMEZONE"`
	EnableTelemetry bool                 `json:"enable_telemetry" envconfig:"ORDERFLOW_ENABLE_TELEMETRY"`
	TelemetryKey    string               `json:"telemetry_key" envconfig:"ORDERFLOW_TELEMETRY_KEY"`
	Server          ServerConfig         `json:"server"`
	DataSource      DataSourceConfig     `json:"data_source"`
	Redis           RedisConfig          `json:"redis"`
	Gateway         GatewayConfig        `json:"gateway"`
	PrintVendor     PrintVendorConfig    `json:"print_vendor"`
	Carrier         CarrierConfig        `json:"carrier"`
	Reconciliation  ReconciliationConfig `json:"reconciliation"`
	Email           EmailConfig          `json:"email"`
	Queue           QueueConfig          `json:"queue"`
	Archive         ArchiveConfig        `json:"archive"`
	Notification    Notification         `json:"notification"`
	RateLimit       RateLimitConfig      `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("orderflow", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called orderflow.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Orderflow Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Gateway.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Gateway.BaseURL), "/")

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Timezone == "" {
		cnf.Timezone = DefaultTimezone
	}

	cnf.addGatewayDefaults()
	cnf.addPrintVendorDefaults()
	if err := cnf.addReconciliationDefaults(); err != nil {
		return err
	}
	cnf.addQueueDefaults()

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (cnf *Configuration) addGatewayDefaults() {
	if cnf.Gateway.BaseURL == "" {
		cnf.Gateway.BaseURL = "https://api.razorpay.com"
	}
	// the gateway caps a page at 100 records
	if cnf.Gateway.PageSize <= 0 || cnf.Gateway.PageSize > 100 {
		cnf.Gateway.PageSize = DefaultGatewayPageSize
	}
	if cnf.Gateway.TimeoutSec <= 0 {
		cnf.Gateway.TimeoutSec = DefaultGatewayTimeoutSec
	}
	if cnf.Gateway.DetailsTimeoutSec <= 0 {
		cnf.Gateway.DetailsTimeoutSec = DefaultDetailsTimeoutSec
	}
}

func (cnf *Configuration) addPrintVendorDefaults() {
	if cnf.PrintVendor.APIURL == "" {
		cnf.PrintVendor.APIURL = "https://api.cloudprinter.com/cloudcore/1.0"
	}
	if cnf.PrintVendor.ShippingLevel == "" {
		cnf.PrintVendor.ShippingLevel = DefaultShippingLevel
	}
	if cnf.PrintVendor.DefaultPageCount <= 0 {
		cnf.PrintVendor.DefaultPageCount = DefaultPageCount
	}
	if cnf.PrintVendor.TimeoutSec <= 0 {
		cnf.PrintVendor.TimeoutSec = 30
	}
}

func (cnf *Configuration) addReconciliationDefaults() error {
	r := &cnf.Reconciliation
	if r.OrdersBatchSize == 0 {
		r.OrdersBatchSize = DefaultOrdersBatchSize
	}
	if r.OrdersBatchSize < MinOrdersBatchSize || r.OrdersBatchSize > MaxOrdersBatchSize {
		return errors.New("reconciliation orders batch size must be between 1000 and 200000")
	}
	if r.MaxFetch == 0 {
		r.MaxFetch = DefaultMaxFetch
	}
	if r.MaxFetch < MinMaxFetch || r.MaxFetch > MaxMaxFetch {
		return errors.New("reconciliation max fetch must be between 1 and 1000000")
	}
	r.NAStatus = strings.ToLower(strings.TrimSpace(r.NAStatus))
	if r.NAStatus == "" {
		r.NAStatus = DefaultNAStatus
	}
	if r.SweepCron == "" {
		r.SweepCron = DefaultSweepCron
	}
	if r.SweepLookbackHours <= 0 {
		r.SweepLookbackHours = DefaultSweepLookbackHours
	}
	if r.SweepLockTTLSec <= 0 {
		r.SweepLockTTLSec = DefaultSweepLockTTLSec
	}
	return nil
}

func (cnf *Configuration) addQueueDefaults() {
	if cnf.Queue.EmailQueue == "" {
		cnf.Queue.EmailQueue = DefaultEmailQueue
	}
	if cnf.Queue.SweepQueue == "" {
		cnf.Queue.SweepQueue = DefaultSweepQueue
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DefaultMonitoringPort
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (cnf *Configuration) Location() *time.Location {
	loc, err := time.LoadLocation(cnf.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MockConfig sets a mock configuration for testing purposes.
// Optional sections are defaulted; required fields are left as given.
func MockConfig(mockConfig *Configuration) {
	if mockConfig.Timezone == "" {
		mockConfig.Timezone = DefaultTimezone
	}
	mockConfig.addGatewayDefaults()
	mockConfig.addPrintVendorDefaults()
	_ = mockConfig.addReconciliationDefaults()
	mockConfig.addQueueDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
