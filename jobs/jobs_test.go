package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-storefront/internal/catalog"
	jobmetrics "github.com/odyssey-erp/odyssey-storefront/internal/jobs"
)

type fakeBumper struct {
	version int64
	err     error
}

func (b *fakeBumper) Bump(context.Context) (int64, error) {
	if b.err != nil {
		return 0, b.err
	}
	b.version++
	return b.version, nil
}

type fakeSource struct {
	products   []catalog.RawProduct
	categories []catalog.RawCategory
	err        error
	limit      int
}

func (s *fakeSource) ListProducts(_ context.Context, filter catalog.ListFilter) ([]catalog.RawProduct, error) {
	s.limit = filter.Limit
	return s.products, s.err
}

func (s *fakeSource) ListCategories(context.Context) ([]catalog.RawCategory, error) {
	return s.categories, nil
}

func rawProduct(id, categoryID string) catalog.RawProduct {
	return catalog.RawProduct{
		ID:         catalog.OptString{Value: id, Set: true},
		Name:       "Product " + id,
		Price:      catalog.OptNumber{Set: true},
		CategoryID: catalog.OptString{Value: categoryID, Set: true},
	}
}

func rawCategory(id, name string, count int) catalog.RawCategory {
	return catalog.RawCategory{
		ID:           catalog.OptString{Value: id, Set: true},
		Name:         name,
		ProductCount: catalog.OptInt{Value: count, Set: true},
	}
}

func TestCatalogTasksRoundTrip(t *testing.T) {
	task, err := NewCatalogRefreshTask(CatalogRefreshPayload{Reason: "cron"})
	require.NoError(t, err)
	require.Equal(t, TaskCatalogRefresh, task.Type())
	require.JSONEq(t, `{"reason":"cron"}`, string(task.Payload()))

	task, err = NewCatalogAuditTask(CatalogAuditPayload{})
	require.NoError(t, err)
	require.Equal(t, TaskCatalogAudit, task.Type())
	require.JSONEq(t, `{}`, string(task.Payload()))
}

func TestCatalogRefreshJobBumpsVersion(t *testing.T) {
	bumper := &fakeBumper{version: 4}
	job := NewCatalogRefreshJob(bumper, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskCatalogRefresh, nil)))
	require.EqualValues(t, 5, bumper.version)

	task, err := NewCatalogRefreshTask(CatalogRefreshPayload{Reason: "cron"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.EqualValues(t, 6, bumper.version)
}

func TestCatalogRefreshJobErrors(t *testing.T) {
	boom := errors.New("redis down")
	job := NewCatalogRefreshJob(&fakeBumper{err: boom}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskCatalogRefresh, nil)), boom)

	err := job.Handle(context.Background(), asynq.NewTask(TaskCatalogRefresh, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	var unset *CatalogRefreshJob
	require.Error(t, unset.Handle(context.Background(), asynq.NewTask(TaskCatalogRefresh, nil)))
}

func TestCatalogAuditReportsDrift(t *testing.T) {
	source := &fakeSource{
		categories: []catalog.RawCategory{
			rawCategory("1", "Laptop", 2),
			rawCategory("2", "Phones", 3),
			rawCategory("3", "Audio", 0),
		},
		products: []catalog.RawProduct{
			rawProduct("a", "1"),
			rawProduct("b", "1"),
			rawProduct("c", "2"),
			rawProduct("d", "3"),
		},
	}
	job := NewCatalogAuditJob(source, 250, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	report, err := job.Run(context.Background(), CatalogAuditPayload{})
	require.NoError(t, err)
	require.Equal(t, 250, source.limit)
	require.Equal(t, 4, report.Products)
	require.Equal(t, 3, report.Categories)
	require.Equal(t, []catalog.Drift{
		{CategoryID: "2", Name: "Phones", Recorded: 3, Actual: 1},
		{CategoryID: "3", Name: "Audio", Recorded: 0, Actual: 1},
	}, report.Drift)

	report, err = job.Run(context.Background(), CatalogAuditPayload{FetchLimit: 10})
	require.NoError(t, err)
	require.Equal(t, 10, source.limit)
	require.Len(t, report.Drift, 2)
}

func TestCatalogAuditConsistentCatalog(t *testing.T) {
	source := &fakeSource{
		categories: []catalog.RawCategory{rawCategory("1", "Laptop", 1)},
		products:   []catalog.RawProduct{rawProduct("a", "1")},
	}
	job := NewCatalogAuditJob(source, 0, nil, nil)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskCatalogAudit, nil)))
	report, err := job.Run(context.Background(), CatalogAuditPayload{})
	require.NoError(t, err)
	require.Empty(t, report.Drift)
	require.Equal(t, catalog.DefaultFetchLimit, source.limit)
}

func TestCatalogAuditFetchFailure(t *testing.T) {
	boom := errors.New("upstream down")
	job := NewCatalogAuditJob(&fakeSource{err: boom}, 0, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	_, err := job.Run(context.Background(), CatalogAuditPayload{})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskCatalogAudit, []byte("nope"))), asynq.SkipRetry)
}

type fakeEnqueuer struct {
	refreshes []CatalogRefreshPayload
	audits    []CatalogAuditPayload
	err       error
}

func (e *fakeEnqueuer) EnqueueCatalogRefresh(_ context.Context, p CatalogRefreshPayload) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.refreshes = append(e.refreshes, p)
	return &asynq.TaskInfo{ID: "r1", Type: TaskCatalogRefresh, Queue: QueueDefault}, nil
}

func (e *fakeEnqueuer) EnqueueCatalogAudit(_ context.Context, p CatalogAuditPayload) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.audits = append(e.audits, p)
	return &asynq.TaskInfo{ID: "a1", Type: TaskCatalogAudit, Queue: QueueDefault}, nil
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (i fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return i.info, i.err
}

func serveJobs(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestJobsHealth(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	rr := serveJobs(h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"failed":0,"processedToday":0}`, rr.Body.String())

	h.inspector = fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Active: 1, Processed: 9}}
	rr = serveJobs(h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var got queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Equal(t, queueHealth{Queue: "default", Pending: 3, Active: 1, Processed: 9}, got)

	h.inspector = fakeInspector{err: errors.New("redis down")}
	rr = serveJobs(h, http.MethodGet, "/jobs/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestJobsEnqueueEndpoints(t *testing.T) {
	enq := &fakeEnqueuer{}
	h := NewHandler(nil, enq, nil)

	rr := serveJobs(h, http.MethodPost, "/jobs/catalog/refresh", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.JSONEq(t, `{"id":"r1","type":"catalog:refresh","queue":"default"}`, rr.Body.String())
	require.Equal(t, []CatalogRefreshPayload{{Reason: "manual"}}, enq.refreshes)

	rr = serveJobs(h, http.MethodPost, "/jobs/catalog/audit", `{"fetchLimit":500}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, []CatalogAuditPayload{{FetchLimit: 500}}, enq.audits)

	rr = serveJobs(h, http.MethodPost, "/jobs/catalog/audit", `{`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	enq.err = asynq.ErrDuplicateTask
	rr = serveJobs(h, http.MethodPost, "/jobs/catalog/refresh", "")
	require.Equal(t, http.StatusConflict, rr.Code)

	enq.err = errors.New("redis down")
	rr = serveJobs(h, http.MethodPost, "/jobs/catalog/audit", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)

	rr = serveJobs(NewHandler(nil, nil, nil), http.MethodPost, "/jobs/catalog/refresh", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
}
