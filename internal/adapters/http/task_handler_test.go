package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/taskmaster/relay/internal/domain/entities"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
	"github.com/taskmaster/relay/internal/ports"
)

type testValidator struct {
	v *validator.Validate
}

func (tv *testValidator) Validate(i interface{}) error {
	return tv.v.Struct(i)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func newContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	e.Validator = &testValidator{v: validator.New()}

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()

	return e.NewContext(req, rec), rec
}

func wantHTTPError(t *testing.T, err error, code int) {
	t.Helper()

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *echo.HTTPError", err)
	}
	if httpErr.Code != code {
		t.Fatalf("status = %d, want %d", httpErr.Code, code)
	}
}

// stubTaskService returns canned values for every gateway operation.
type stubTaskService struct {
	task *entities.Task
	err  error

	confirmCalls    int
	lastSuppress    bool
	lastSnoozeUntil time.Time
}

func (s *stubTaskService) CreateTask(context.Context, ports.CreateTaskRequest) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) GetTask(context.Context, int64) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) ListTasks(context.Context, ports.TaskFilter) ([]*entities.Task, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.task == nil {
		return nil, nil
	}
	return []*entities.Task{s.task}, nil
}

func (s *stubTaskService) UpdateTask(context.Context, int64, ports.UpdateTaskRequest) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) DeleteTask(context.Context, int64) error {
	return s.err
}

func (s *stubTaskService) CompleteTask(context.Context, int64) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) ReopenTask(context.Context, int64) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) SnoozeTask(_ context.Context, _ int64, until time.Time) (*entities.Task, error) {
	s.lastSnoozeUntil = until
	return s.task, s.err
}

func (s *stubTaskService) Save(context.Context, *entities.Task) error {
	return s.err
}

func (s *stubTaskService) SaveWithPrevious(context.Context, *entities.Task, *entities.Task) error {
	return s.err
}

func (s *stubTaskService) ConfirmSaved(_ context.Context, _ *entities.Task, suppressRefresh bool) error {
	s.confirmCalls++
	s.lastSuppress = suppressRefresh
	return s.err
}

type stubBulkCompleter struct {
	completed int64
	err       error
	lastIDs   []int64
}

func (s *stubBulkCompleter) CompleteAll(_ context.Context, ids []int64) (int64, error) {
	s.lastIDs = ids
	return s.completed, s.err
}

type stubTrigger struct {
	kicks int
}

func (s *stubTrigger) Sync() {
	s.kicks++
}

func (s *stubTrigger) SyncTask(_, _ *entities.Task) {}

func newHandler(t *testing.T, svc *stubTaskService, bulk *stubBulkCompleter) *TaskHandler {
	t.Helper()
	if bulk == nil {
		bulk = &stubBulkCompleter{}
	}
	return NewTaskHandler(svc, bulk, newTestLogger(t))
}

func TestCreateTaskReturnsCreated(t *testing.T) {
	svc := &stubTaskService{task: &entities.Task{ID: 1, Title: "Buy milk"}}
	h := newHandler(t, svc, nil)

	c, rec := newContext(t, http.MethodPost, "/api/v1/tasks", `{"title":"Buy milk"}`)
	if err := h.CreateTask(c); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var got entities.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.Title != "Buy milk" {
		t.Errorf("title = %q, want %q", got.Title, "Buy milk")
	}
}

func TestCreateTaskRejectsMissingTitle(t *testing.T) {
	h := newHandler(t, &stubTaskService{}, nil)

	c, _ := newContext(t, http.MethodPost, "/api/v1/tasks", `{"notes":"no title"}`)
	wantHTTPError(t, h.CreateTask(c), http.StatusBadRequest)
}

func TestGetTaskMapsMissingRowTo404(t *testing.T) {
	svc := &stubTaskService{err: entities.ErrTaskNotFound}
	h := newHandler(t, svc, nil)

	c, _ := newContext(t, http.MethodGet, "/api/v1/tasks/5", "")
	c.SetParamNames("id")
	c.SetParamValues("5")

	wantHTTPError(t, h.GetTask(c), http.StatusNotFound)
}

func TestGetTaskRejectsMalformedID(t *testing.T) {
	h := newHandler(t, &stubTaskService{}, nil)

	c, _ := newContext(t, http.MethodGet, "/api/v1/tasks/abc", "")
	c.SetParamNames("id")
	c.SetParamValues("abc")

	wantHTTPError(t, h.GetTask(c), http.StatusBadRequest)
}

func TestListTasksRejectsMalformedDueFilter(t *testing.T) {
	h := newHandler(t, &stubTaskService{}, nil)

	c, _ := newContext(t, http.MethodGet, "/api/v1/tasks?due_before=yesterday", "")
	wantHTTPError(t, h.ListTasks(c), http.StatusBadRequest)
}

func TestListTasksWrapsResultsInPage(t *testing.T) {
	svc := &stubTaskService{task: &entities.Task{ID: 2, Title: "Water plants"}}
	h := newHandler(t, svc, nil)

	c, rec := newContext(t, http.MethodGet, "/api/v1/tasks?limit=5", "")
	if err := h.ListTasks(c); err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}

	var got ports.PaginatedResponse[*entities.Task]
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.Total != 1 || got.Limit != 5 {
		t.Errorf("page = total %d limit %d, want total 1 limit 5", got.Total, got.Limit)
	}
}

func TestSnoozeTaskMapsPastWakeTo400(t *testing.T) {
	svc := &stubTaskService{err: entities.ErrSnoozeInPast}
	h := newHandler(t, svc, nil)

	c, _ := newContext(t, http.MethodPost, "/api/v1/tasks/3/snooze", `{"until":"2020-01-01T00:00:00Z"}`)
	c.SetParamNames("id")
	c.SetParamValues("3")

	wantHTTPError(t, h.SnoozeTask(c), http.StatusBadRequest)
}

func TestBulkCompleteReportsCount(t *testing.T) {
	bulk := &stubBulkCompleter{completed: 3}
	h := newHandler(t, &stubTaskService{}, bulk)

	c, rec := newContext(t, http.MethodPost, "/api/v1/tasks/bulk-complete", `{"ids":[1,2,3]}`)
	if err := h.BulkComplete(c); err != nil {
		t.Fatalf("BulkComplete() error = %v", err)
	}

	var got ports.BulkCompleteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if got.Completed != 3 {
		t.Errorf("completed = %d, want 3", got.Completed)
	}
	if len(bulk.lastIDs) != 3 {
		t.Errorf("forwarded ids = %v, want 3 ids", bulk.lastIDs)
	}
}

func TestBulkCompleteRejectsEmptyList(t *testing.T) {
	h := newHandler(t, &stubTaskService{}, nil)

	c, _ := newContext(t, http.MethodPost, "/api/v1/tasks/bulk-complete", `{"ids":[]}`)
	wantHTTPError(t, h.BulkComplete(c), http.StatusBadRequest)
}

func TestConfirmSavedForwardsSuppressFlag(t *testing.T) {
	svc := &stubTaskService{}
	h := newHandler(t, svc, nil)

	body := `{"original":{"id":7,"title":"Synced elsewhere"},"suppress_refresh":true}`
	c, rec := newContext(t, http.MethodPost, "/api/v1/tasks/confirm-saved", body)
	if err := h.ConfirmSaved(c); err != nil {
		t.Fatalf("ConfirmSaved() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.confirmCalls != 1 {
		t.Fatalf("confirm calls = %d, want 1", svc.confirmCalls)
	}
	if !svc.lastSuppress {
		t.Error("suppress_refresh flag was not forwarded")
	}
}

func TestConfirmSavedMapsMissingRowTo404(t *testing.T) {
	svc := &stubTaskService{err: entities.ErrTaskNotFound}
	h := newHandler(t, svc, nil)

	body := `{"original":{"id":9,"title":"Gone"}}`
	c, _ := newContext(t, http.MethodPost, "/api/v1/tasks/confirm-saved", body)
	wantHTTPError(t, h.ConfirmSaved(c), http.StatusNotFound)
}

func TestTriggerSyncAccepts(t *testing.T) {
	trigger := &stubTrigger{}
	h := NewSyncHandler(trigger, newTestLogger(t))

	c, rec := newContext(t, http.MethodPost, "/api/v1/sync", "")
	if err := h.TriggerSync(c); err != nil {
		t.Fatalf("TriggerSync() error = %v", err)
	}

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
	if trigger.kicks != 1 {
		t.Errorf("kicks = %d, want 1", trigger.kicks)
	}
}
