package services

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	"sku-service/models"
	"sku-service/repository"
	"sku-service/store"

	"go.uber.org/zap"
)

// --- Mock Repository ---

type mockRepo struct {
	products map[int64]*models.Product

	// unique rejects a Save whose SKU another product already holds.
	unique bool
	// rejectNext fails that many upcoming Saves as write-time duplicates.
	rejectNext int
	loadErr    map[int64]error
	saveErr    map[int64]error

	saves   int
	fetches int
}

func newMockRepo(products ...*models.Product) *mockRepo {
	m := &mockRepo{
		products: make(map[int64]*models.Product),
		loadErr:  make(map[int64]error),
		saveErr:  make(map[int64]error),
	}
	for _, p := range products {
		m.add(p)
	}
	return m
}

func (m *mockRepo) add(p *models.Product) {
	if p.Status == "" {
		p.Status = models.StatusPublish
	}
	if p.Type == "" {
		p.Type = models.ProductSimple
	}
	m.products[p.ID] = p
}

func (m *mockRepo) Kind() string { return "mock" }

func (m *mockRepo) ids(match func(*models.Product) bool) []int64 {
	var ids []int64
	for id, p := range m.products {
		if p.Status == models.StatusPublish && match(p) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func page(ids []int64, limit, offset int) []int64 {
	if offset >= len(ids) {
		return []int64{}
	}
	end := min(offset+limit, len(ids))
	return slices.Clone(ids[offset:end])
}

func inScope(p *models.Product, scope models.Scope) bool {
	if scope == models.ScopeVariations {
		return p.Type == models.ProductVariation
	}
	return p.Type != models.ProductVariation
}

func (m *mockRepo) missing(scope models.Scope) []int64 {
	return m.ids(func(p *models.Product) bool { return !p.HasSKU() && inScope(p, scope) })
}

func (m *mockRepo) withSKU() []int64 {
	return m.ids(func(p *models.Product) bool { return p.HasSKU() })
}

func (m *mockRepo) all() []int64 {
	return m.ids(func(*models.Product) bool { return true })
}

func (m *mockRepo) FindMissingSKU(_ context.Context, scope models.Scope, limit, offset int) ([]int64, error) {
	m.fetches++
	return page(m.missing(scope), limit, offset), nil
}

func (m *mockRepo) CountMissingSKU(_ context.Context, scope models.Scope) (int64, error) {
	return int64(len(m.missing(scope))), nil
}

func (m *mockRepo) FindWithSKU(_ context.Context, limit, offset int) ([]int64, error) {
	m.fetches++
	return page(m.withSKU(), limit, offset), nil
}

func (m *mockRepo) CountWithSKU(_ context.Context) (int64, error) {
	return int64(len(m.withSKU())), nil
}

func (m *mockRepo) FindAll(_ context.Context, limit, offset int) ([]int64, error) {
	m.fetches++
	return page(m.all(), limit, offset), nil
}

func (m *mockRepo) CountAll(_ context.Context) (int64, error) {
	return int64(len(m.all())), nil
}

func (m *mockRepo) Load(_ context.Context, id int64) (*models.Product, error) {
	if err := m.loadErr[id]; err != nil {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok || p.Status != models.StatusPublish {
		return nil, repository.ErrNotFound
	}
	cp := *p
	cp.Meta = maps.Clone(p.Meta)
	cp.Categories = slices.Clone(p.Categories)
	cp.Children = nil
	if p.Type == models.ProductVariable {
		cp.Children = m.ids(func(c *models.Product) bool {
			return c.ParentID == id && c.Type == models.ProductVariation
		})
	}
	return &cp, nil
}

func (m *mockRepo) Save(_ context.Context, p *models.Product) error {
	if err := m.saveErr[p.ID]; err != nil {
		return err
	}
	if m.rejectNext > 0 {
		m.rejectNext--
		return repository.ErrDuplicateSKU
	}
	if m.unique && p.SKU != "" {
		if _, taken, _ := m.SKUOwner(context.Background(), p.SKU, p.ID); taken {
			return repository.ErrDuplicateSKU
		}
	}
	stored, ok := m.products[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	m.saves++
	stored.SKU = p.SKU
	for k, v := range p.Meta {
		if v == "" {
			delete(stored.Meta, k)
			continue
		}
		if stored.Meta == nil {
			stored.Meta = make(map[string]string)
		}
		stored.Meta[k] = v
	}
	return nil
}

func (m *mockRepo) SKUOwner(_ context.Context, sku string, excludeID int64) (int64, bool, error) {
	if sku == "" {
		return 0, false, nil
	}
	for _, id := range m.ids(func(p *models.Product) bool { return true }) {
		if id != excludeID && m.products[id].SKU == sku {
			return id, true, nil
		}
	}
	// Drafts hold their SKU too.
	for id, p := range m.products {
		if id != excludeID && p.Status != models.StatusPublish && p.SKU == sku {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (m *mockRepo) ClearEmptySKUs(_ context.Context) (int64, error) {
	var n int64
	for _, p := range m.products {
		if p.SKU != "" && strings.TrimSpace(p.SKU) == "" {
			p.SKU = ""
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Statistics(_ context.Context) (*models.Statistics, error) {
	var pt, pw, vt, vw int64
	for _, id := range m.all() {
		p := m.products[id]
		if p.Type == models.ProductVariation {
			vt++
			if p.HasSKU() {
				vw++
			}
			continue
		}
		pt++
		if p.HasSKU() {
			pw++
		}
	}
	stats := models.NewStatistics(pt, pw, vt, vw)
	return &stats, nil
}

func (m *mockRepo) DuplicateSKUs(_ context.Context) (map[string][]int64, error) {
	owners := make(map[string][]int64)
	for _, id := range m.withSKU() {
		sku := m.products[id].SKU
		owners[sku] = append(owners[sku], id)
	}
	for sku, ids := range owners {
		if len(ids) < 2 {
			delete(owners, sku)
		}
	}
	return owners, nil
}

func (m *mockRepo) GTINUsage(_ context.Context, keys []string) (map[string]int64, error) {
	usage := make(map[string]int64)
	for _, id := range m.all() {
		for _, k := range keys {
			if m.products[id].GetMeta(k) != "" {
				usage[k]++
			}
		}
	}
	return usage, nil
}

func (m *mockRepo) Sample(_ context.Context, n int) ([]models.ProductSample, error) {
	var out []models.ProductSample
	for _, id := range page(m.all(), n, 0) {
		p := m.products[id]
		out = append(out, models.ProductSample{ID: p.ID, Name: p.Name, SKU: p.SKU, Type: p.Type})
	}
	return out, nil
}

// --- Mock Options Repository ---

type mockOptionsRepo struct {
	opts models.Options
	err  error
}

func (m *mockOptionsRepo) Get(_ context.Context) (models.Options, error) {
	return m.opts, m.err
}

func (m *mockOptionsRepo) Save(_ context.Context, opts models.Options) error {
	if m.err != nil {
		return m.err
	}
	m.opts = opts
	return nil
}

// --- Stub Oracle ---

type stubOracle struct {
	taken map[string]bool
	all   bool // every candidate is taken
	err   error
	calls int
}

func newStubOracle(taken ...string) *stubOracle {
	o := &stubOracle{taken: make(map[string]bool)}
	for _, s := range taken {
		o.taken[s] = true
	}
	return o
}

func (o *stubOracle) Exists(_ context.Context, sku string) (bool, error) {
	o.calls++
	return o.all || o.taken[sku], o.err
}

func (o *stubOracle) Owner(_ context.Context, sku string, _ int64) (int64, bool, error) {
	return 0, o.taken[sku], o.err
}

// --- Mock SNS Publisher ---

type mockSNSPublisher struct {
	published []OperationCompletedEvent
}

func (m *mockSNSPublisher) Publish(_ context.Context, _ string, message []byte) error {
	var event OperationCompletedEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}
	m.published = append(m.published, event)
	return nil
}

// --- Mock Metrics ---

type mockMetrics struct {
	values    map[string]float64
	latencies int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{values: make(map[string]float64)}
}

func (m *mockMetrics) RecordValue(_ context.Context, name string, value float64, _ map[string]string) error {
	m.values[name] += value
	return nil
}

func (m *mockMetrics) RecordLatency(_ context.Context, _ string, _ time.Duration, _ map[string]string) error {
	m.latencies++
	return nil
}

// --- Mock Report Store ---

type mockReports struct {
	keys []string
	err  error
}

func (m *mockReports) Upload(_ context.Context, key string, _ []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "https://reports.local/" + key, nil
}

type denyAll struct{}

func (denyAll) Allowed(context.Context) bool { return false }

// --- Helpers ---

var fixedNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	svc     *skuServiceImpl
	repo    *mockRepo
	options *mockOptionsRepo
	state   *store.MemoryStore
	sns     *mockSNSPublisher
	metrics *mockMetrics
	reports *mockReports
	clock   *time.Time
}

func newTestEnv(t *testing.T, repo *mockRepo, opts models.Options, pageSize int) *testEnv {
	t.Helper()
	clock := fixedNow
	now := func() time.Time { return clock }
	env := &testEnv{
		repo:    repo,
		options: &mockOptionsRepo{opts: opts},
		state:   store.NewMemoryStore(func() time.Time { return clock }),
		sns:     &mockSNSPublisher{},
		metrics: newMockMetrics(),
		reports: &mockReports{},
		clock:   &clock,
	}
	env.svc = NewSKUService(Deps{
		Repo:        repo,
		Options:     env.options,
		State:       env.state,
		StateTTL:    DefaultStateTTL,
		Batch:       BatchConfig{PageSize: pageSize},
		SNS:         env.sns,
		SNSTopicArn: "arn:aws:sns:us-east-1:000000000000:sku-events",
		Reports:     env.reports,
		Metrics:     env.metrics,
		Logger:      zap.NewNop(),
		Clock:       now,
	}).(*skuServiceImpl)
	return env
}

// drive runs step from offset 0 until completion and returns every report.
func drive(t *testing.T, step func(offset int) (*models.ProgressReport, error)) []*models.ProgressReport {
	t.Helper()
	var reports []*models.ProgressReport
	offset := 0
	for i := 0; i < 1000; i++ {
		rep, err := step(offset)
		if err != nil {
			t.Fatalf("step at offset %d: %v", offset, err)
		}
		reports = append(reports, rep)
		if rep.Complete {
			return reports
		}
		offset = rep.NextOffset
	}
	t.Fatal("operation did not complete")
	return nil
}

var errBoom = errors.New("boom")

func numericOptions(length int) models.Options {
	opts := models.DefaultOptions()
	opts.PatternType = models.PatternNumeric
	opts.PatternLength = length
	return opts
}
