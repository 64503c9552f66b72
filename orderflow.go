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

package orderflow

import (
	"context"
	"embed"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/database"
	"github.com/printwell/orderflow/internal/archive"
	"github.com/printwell/orderflow/internal/cache"
	"github.com/printwell/orderflow/internal/gateway"
	"github.com/printwell/orderflow/internal/mailer"
	"github.com/printwell/orderflow/internal/notification"
	"github.com/printwell/orderflow/internal/printvendor"
	redis_db "github.com/printwell/orderflow/internal/redis-db"
	"github.com/printwell/orderflow/model"
)

var tracer = otel.Tracer("orderflow")

//go:embed sql/*.sql
var SQLFiles embed.FS

// PaymentGateway is the part of the gateway client the engine depends on.
type PaymentGateway interface {
	ListPayments(ctx context.Context, params gateway.ListParams) ([]model.Payment, error)
	GetPayment(ctx context.Context, id string) (*model.Payment, error)
}

// PrintVendor is the part of the print-vendor client the engine depends on.
type PrintVendor interface {
	Checksum(ctx context.Context, url string) (string, error)
	SubmitOrder(ctx context.Context, order printvendor.OrderRequest) (*printvendor.OrderResponse, error)
}

// EmailQueue accepts milestone emails for delivery after the caller returns.
type EmailQueue interface {
	EnqueueEmail(ctx context.Context, task EmailTask) error
}

// Orderflow represents the main struct for the fulfilment engine.
type Orderflow struct {
	datasource database.IDataSource
	gateway    PaymentGateway
	vendor     PrintVendor
	dedup      cache.Deduper
	queue      EmailQueue
	mailer     mailer.Mailer
	archiver   archive.Archiver
	redis      redis.UniversalClient
	notify     func(ctx context.Context, report *model.NAReport) error
	now        func() time.Time
}

// NewOrderflow initializes a new instance of Orderflow with the provided database datasource.
// It fetches the configuration, connects to Redis and builds the gateway, print vendor,
// dedup store, queue, mailer and optional report archiver.
//
// Parameters:
// - db database.IDataSource: The datasource for order operations.
//
// Returns:
// - *Orderflow: A pointer to the newly created Orderflow instance.
// - error: An error if any of the initialization steps fail.
func NewOrderflow(db database.IDataSource) (*Orderflow, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewClientFromConfig()
	if err != nil {
		return nil, err
	}

	newQueue, err := NewQueue(configuration)
	if err != nil {
		return nil, err
	}

	o := &Orderflow{
		datasource: db,
		gateway:    gateway.NewClient(configuration.Gateway),
		vendor:     printvendor.NewClient(configuration.PrintVendor),
		dedup:      cache.NewFingerprintStore(redisClient.Client(), cache.DefaultTTL),
		queue:      newQueue,
		mailer:     mailer.NewSMTPMailer(configuration.Email),
		redis:      redisClient.Client(),
		notify:     notification.NotifyNAReport,
		now:        time.Now,
	}

	archiver, err := archive.NewS3ArchiverFromConfig(configuration.Archive)
	if err != nil {
		logrus.WithError(err).Warn("report archive disabled")
	} else if archiver != nil {
		o.archiver = archiver
	}
	return o, nil
}

func (o *Orderflow) clock() time.Time {
	if o.now == nil {
		return time.Now()
	}
	return o.now()
}
