package orderflow

import (
	"context"
	"sync"
	"time"

	"github.com/printwell/orderflow/config"
	"github.com/printwell/orderflow/internal/apierror"
	"github.com/printwell/orderflow/internal/cache"
	"github.com/printwell/orderflow/internal/gateway"
	"github.com/printwell/orderflow/internal/mailer"
	"github.com/printwell/orderflow/internal/printvendor"
	"github.com/printwell/orderflow/model"
)

// memStore is an in-memory IDataSource with the same guarded update and
// claim semantics as the Postgres implementation.
type memStore struct {
	mu        sync.Mutex
	orders    []*model.Order
	applyErr  error
	scanErr   error
	scanCalls int
}

func newMemStore(orders ...model.Order) *memStore {
	s := &memStore{}
	for i := range orders {
		o := orders[i]
		o.ID = int64(i + 1)
		s.orders = append(s.orders, &o)
	}
	return s
}

func (s *memStore) find(ref model.OrderRef) *model.Order {
	for _, o := range s.orders {
		var v string
		switch ref.Kind {
		case model.RefOrderID:
			v = o.OrderID
		case model.RefJobID:
			v = o.JobID
		case model.RefTrackingCode:
			v = o.TrackingCode
		}
		if v != "" && v == ref.Value {
			return o
		}
	}
	return nil
}

func (s *memStore) order(orderID string) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.find(model.ByOrderID(orderID))
}

func (s *memStore) GetOrder(_ context.Context, ref model.OrderRef) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.find(ref)
	if o == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "order not found", nil)
	}
	c := *o
	return &c, nil
}

func (s *memStore) GetOrderByTransactionID(_ context.Context, transactionID string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.TransactionID != "" && o.TransactionID == transactionID {
			c := *o
			return &c, nil
		}
	}
	return nil, apierror.NewAPIError(apierror.ErrNotFound, "order not found", nil)
}

func (s *memStore) ScanOrderCursor(_ context.Context, afterID int64, limit int) ([]model.OrderCursorRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanCalls++
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	rows := make([]model.OrderCursorRow, 0, limit)
	for _, o := range s.orders {
		if o.ID <= afterID {
			continue
		}
		rows = append(rows, model.OrderCursorRow{ID: o.ID, OrderID: o.OrderID, TransactionID: o.TransactionID})
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

func (s *memStore) ApplyOrderUpdate(_ context.Context, ref model.OrderRef, u model.OrderUpdate) (*model.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	o := s.find(ref)
	if o == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "order not found", nil)
	}
	prev := o.PrintStatus
	if next := model.Next(prev, u.Event); u.Status != nil && next != prev {
		o.PrintStatus = next
		if u.PrintSentAt != nil {
			o.PrintSentAt = u.PrintSentAt
		}
		if u.ProducedAt != nil {
			o.ProducedAt = u.ProducedAt
		}
		if u.ShippedAt != nil {
			o.ShippedAt = u.ShippedAt
		}
		if u.DeliveredAt != nil {
			o.DeliveredAt = u.DeliveredAt
		}
	}
	if u.PrinterReference != nil {
		o.PrinterReference = *u.PrinterReference
	}
	if u.TrackingCode != nil {
		o.TrackingCode = *u.TrackingCode
	}
	if u.ShippingOption != nil {
		o.ShippingOption = *u.ShippingOption
	}
	if u.CourierPartner != nil {
		o.CourierPartner = *u.CourierPartner
	}
	if u.CarrierStatus != nil {
		o.CarrierStatus = u.CarrierStatus
	}
	if len(u.PrinterEvent) > 0 {
		o.PrinterEvent = u.PrinterEvent
	}
	return &model.ApplyResult{
		OrderID:  o.OrderID,
		JobID:    o.JobID,
		Email:    o.Email,
		Name:     o.Name,
		UserName: o.UserName,
		Previous: prev,
		Current:  o.PrintStatus,
	}, nil
}

func (s *memStore) ClaimFlag(_ context.Context, ref model.OrderRef, flag model.ClaimFlag) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.find(ref)
	if o == nil {
		return false, nil
	}
	var field *bool
	switch flag {
	case model.ClaimShippedEmail:
		field = &o.ShippedEmailSent
	case model.ClaimProductionEmail:
		field = &o.ProductionEmailSent
	case model.ClaimFeedbackEmail:
		field = &o.FeedbackEmail
	case model.ClaimNudge:
		field = &o.NudgeSent
	default:
		return false, apierror.NewAPIError(apierror.ErrInvalidInput, "unknown claim flag", nil)
	}
	if *field {
		return false, nil
	}
	*field = true
	return true, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	payments []model.Payment
	listErr  error
	getErrs  map[string]error
	listed   []gateway.ListParams
}

func (g *fakeGateway) ListPayments(_ context.Context, params gateway.ListParams) ([]model.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listed = append(g.listed, params)
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]model.Payment, 0, len(g.payments))
	for i, p := range g.payments {
		if params.MaxFetch > 0 && i >= params.MaxFetch {
			break
		}
		if params.Status != "" && p.NormalizedStatus() != params.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*model.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.getErrs[id]; ok {
		return nil, err
	}
	for _, p := range g.payments {
		if p.ID == id {
			c := p
			return &c, nil
		}
	}
	return nil, gateway.ErrNotFound
}

type fakeVendor struct {
	mu          sync.Mutex
	sums        map[string]string
	checksumErr error
	submitErr   error
	reference   string
	submitted   []printvendor.OrderRequest
}

func (v *fakeVendor) Checksum(_ context.Context, url string) (string, error) {
	if v.checksumErr != nil {
		return "", v.checksumErr
	}
	return v.sums[url], nil
}

func (v *fakeVendor) SubmitOrder(_ context.Context, order printvendor.OrderRequest) (*printvendor.OrderResponse, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.submitErr != nil {
		return nil, v.submitErr
	}
	v.submitted = append(v.submitted, order)
	return &printvendor.OrderResponse{Reference: v.reference}, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []EmailTask
	err   error
}

func (q *fakeQueue) EnqueueEmail(_ context.Context, task EmailTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) sent() []EmailTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]EmailTask(nil), q.tasks...)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeArchiver struct {
	reports []*model.NAReport
	err     error
}

func (a *fakeArchiver) ArchiveNAReport(_ context.Context, report *model.NAReport) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.reports = append(a.reports, report)
	return "reports/na/test.json", nil
}

var fixedNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func mockTestConfig() *config.Configuration {
	cnf := &config.Configuration{
		ProjectName: "orderflow-test",
		Timezone:    "UTC",
		Gateway: config.GatewayConfig{
			KeyID:     "rzp_test_key",
			KeySecret: "gateway-secret",
		},
		PrintVendor: config.PrintVendorConfig{
			WebhookKey:   "vendor-webhook-key",
			ContactEmail: "support@example.com",
		},
		Carrier: config.CarrierConfig{
			WebhookToken: "carrier-token",
		},
		Email: config.EmailConfig{
			PreviewBaseURL: "https://app.example.com/preview",
			FeedbackURL:    "https://example.com/review",
		},
	}
	config.MockConfig(cnf)
	return cnf
}

type testEngine struct {
	*Orderflow
	store  *memStore
	gw     *fakeGateway
	vendor *fakeVendor
	queue  *fakeQueue
	mail   *fakeMailer
}

func newTestEngine(store *memStore) *testEngine {
	mockTestConfig()
	e := &testEngine{
		store:  store,
		gw:     &fakeGateway{},
		vendor: &fakeVendor{sums: map[string]string{}, reference: "CP-1001"},
		queue:  &fakeQueue{},
		mail:   &fakeMailer{},
	}
	e.Orderflow = &Orderflow{
		datasource: store,
		gateway:    e.gw,
		vendor:     e.vendor,
		dedup:      cache.NewFingerprintStore(nil, cache.DefaultTTL),
		queue:      e.queue,
		mailer:     e.mail,
		now:        func() time.Time { return fixedNow },
	}
	return e
}
