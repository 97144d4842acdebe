package ordersync

import (
	"context"
	"sync"
	"time"

	"github.com/erp/odoosync/internal/domain/ordersync"
)

// fakeRepo is an in-memory order repository that records every write
type fakeRepo struct {
	mu       sync.Mutex
	orders   map[int64]*ordersync.Order
	notes    map[int64][]string
	statuses map[int64][]ordersync.SyncStatus
	metas    map[int64][]ordersync.SyncMetadata
	failed   []int64
}

func newFakeRepo(orders ...*ordersync.Order) *fakeRepo {
	r := &fakeRepo{
		orders:   map[int64]*ordersync.Order{},
		notes:    map[int64][]string{},
		statuses: map[int64][]ordersync.SyncStatus{},
		metas:    map[int64][]ordersync.SyncMetadata{},
	}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeRepo) FindByID(_ context.Context, id int64) (*ordersync.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ordersync.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) SaveSyncMetadata(_ context.Context, id int64, meta ordersync.SyncMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metas[id] = append(r.metas[id], meta)
	r.statuses[id] = append(r.statuses[id], meta.Status)
	if o, ok := r.orders[id]; ok {
		o.Sync = meta
	}
	return nil
}

func (r *fakeRepo) SetSyncStatus(_ context.Context, id int64, status ordersync.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = append(r.statuses[id], status)
	if o, ok := r.orders[id]; ok {
		o.Sync.Status = status
	}
	return nil
}

func (r *fakeRepo) AddNote(_ context.Context, id int64, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[id] = append(r.notes[id], note)
	return nil
}

func (r *fakeRepo) ListFailed(_ context.Context, limit int) ([]int64, error) {
	if limit > 0 && len(r.failed) > limit {
		return r.failed[:limit], nil
	}
	return r.failed, nil
}

func (r *fakeRepo) lastNote(id int64) string {
	notes := r.notes[id]
	if len(notes) == 0 {
		return ""
	}
	return notes[len(notes)-1]
}

// scriptedGateway replays one TransportResult per SendOrders call; the last
// one repeats
type scriptedGateway struct {
	mu        sync.Mutex
	responses []ordersync.TransportResult
	calls     [][]ordersync.OrderPayload
	cancels   []int64
	validates []int64
	lifecycle ordersync.TransportResult
}

func (g *scriptedGateway) SendOrders(_ context.Context, _ string, orders []ordersync.OrderPayload) ordersync.TransportResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.calls)
	g.calls = append(g.calls, orders)
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i]
}

func (g *scriptedGateway) CancelOrder(_ context.Context, _ string, erpOrderID int64) ordersync.TransportResult {
	g.cancels = append(g.cancels, erpOrderID)
	return g.lifecycle
}

func (g *scriptedGateway) ValidateDelivery(_ context.Context, _ string, erpOrderID int64, _ time.Time) ordersync.TransportResult {
	g.validates = append(g.validates, erpOrderID)
	return g.lifecycle
}

type stubTokens struct {
	err     error
	calls   int
	cleared int
}

func (s *stubTokens) Token(context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "tok", nil
}

func (s *stubTokens) Clear(context.Context) error {
	s.cleared++
	return nil
}

type recordingResyncer struct {
	skus []string
}

func (r *recordingResyncer) Resync(_ context.Context, items []ordersync.LineItem) {
	for _, item := range items {
		r.skus = append(r.skus, item.SKU)
	}
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []ordersync.ActivityEntry
}

func (m *memoryRecorder) Append(_ context.Context, entry ordersync.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryRecorder) ofType(t ordersync.ActivityType) []ordersync.ActivityEntry {
	var out []ordersync.ActivityEntry
	for _, e := range m.entries {
		if e.ActivityType == t {
			out = append(out, e)
		}
	}
	return out
}

func httpOK(body string) ordersync.TransportResult {
	return ordersync.TransportResult{Body: []byte(body), StatusCode: 200}
}

func timeout() ordersync.TransportResult {
	return ordersync.TransportResult{Err: &ordersync.TransportError{Code: "timeout", Message: "deadline exceeded"}}
}

func testOrder(id int64) *ordersync.Order {
	return &ordersync.Order{
		ID:      id,
		Status:  ordersync.OrderStatusProcessing,
		Billing: ordersync.BillingAddress{Country: "SA", FirstName: "Sara"},
		Items: []ordersync.LineItem{
			{SKU: "SKU-1", Name: "Perfume", Quantity: 1},
		},
	}
}

const partialReply = `{"result":{"Code":200,"Data":[
	{"woo_commerce_id":101,"ID":555,"Number":"SO555"},
	{"woo_commerce_id":102,"ID":false,"StatusDescription":"Failed","EnglishMessage":"bad SKU","ArabicMessage":"رمز خاطئ"}
]}}`
