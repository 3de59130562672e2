package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ldi/tempo/internal/engine"
	"github.com/ldi/tempo/pkg/models"
)

func newTestServer(t *testing.T) (*engine.Engine, *gin.Engine) {
	t.Helper()
	eng := engine.New(time.UTC)
	eng.CheckRollover(time.Now())
	return eng, NewServer(eng).Router()
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) models.Task {
	t.Helper()
	var task models.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &task); err != nil {
		t.Fatalf("failed to decode task: %v", err)
	}
	return task
}

func TestCreateTask(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", `{"title":"Write report","hours":1,"minutes":30}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	task := decodeTask(t, rec)
	if task.Title != "Write report" {
		t.Errorf("unexpected title %q", task.Title)
	}
	if task.TimeLimit != 5400 {
		t.Errorf("expected time limit 5400, got %d", task.TimeLimit)
	}
	if task.Status != models.TaskStatusPending || task.Active {
		t.Errorf("expected inactive pending task, got %s active=%v", task.Status, task.Active)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	_, router := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"minutes":5}`},
		{"blank title", `{"title":"   ","minutes":5}`},
		{"zero budget", `{"title":"Stretch"}`},
		{"malformed json", `{"title":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/tasks", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	_, router := newTestServer(t)

	created := decodeTask(t, doJSON(t, router, http.MethodPost, "/api/tasks",
		`{"title":"Review PR","minutes":30}`))

	rec := doJSON(t, router, http.MethodPost, "/api/tasks/"+created.ID+"/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if task := decodeTask(t, rec); !task.Active {
		t.Error("expected task active after start")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/tasks/"+created.ID+"/complete", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	task := decodeTask(t, rec)
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}
	if task.Active {
		t.Error("expected task inactive after completion")
	}

	rec = doJSON(t, router, http.MethodGet, "/api/stats", "")
	var stats struct {
		Score          int     `json:"score"`
		CompletionRate float64 `json:"completion_rate"`
		TotalAttempts  int     `json:"total_attempts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Score != 10 {
		t.Errorf("expected score 10, got %d", stats.Score)
	}
	if stats.CompletionRate != 100 || stats.TotalAttempts != 1 {
		t.Errorf("expected rate 100 over 1 attempt, got %.1f over %d", stats.CompletionRate, stats.TotalAttempts)
	}
}

func TestUnknownTaskIs404(t *testing.T) {
	_, router := newTestServer(t)

	for _, path := range []string{
		"/api/tasks/nope/start",
		"/api/tasks/nope/complete",
		"/api/tasks/nope/reschedule",
	} {
		if rec := doJSON(t, router, http.MethodPost, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
	if rec := doJSON(t, router, http.MethodDelete, "/api/tasks/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete: expected 404, got %d", rec.Code)
	}
}

func TestRescheduleFailedTask(t *testing.T) {
	eng, router := newTestServer(t)

	created := decodeTask(t, doJSON(t, router, http.MethodPost, "/api/tasks",
		`{"title":"Deep work","hours":1}`))
	doJSON(t, router, http.MethodPost, "/api/tasks/"+created.ID+"/start", "")

	// Push the clock past the budget so the countdown expires.
	eng.Tick(time.Now().Add(2 * time.Hour))
	doJSON(t, router, http.MethodPost, "/api/tasks/"+created.ID+"/complete", "")

	rec := doJSON(t, router, http.MethodPost, "/api/tasks/"+created.ID+"/reschedule", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	replacement := decodeTask(t, rec)
	if replacement.TimeLimit != 7200 {
		t.Errorf("expected doubled budget 7200, got %d", replacement.TimeLimit)
	}

	// The original already spent its one reschedule.
	rec = doJSON(t, router, http.MethodPost, "/api/tasks/"+created.ID+"/reschedule", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on second reschedule, got %d", rec.Code)
	}
}

func TestRescheduleRequiresFailure(t *testing.T) {
	_, router := newTestServer(t)

	created := decodeTask(t, doJSON(t, router, http.MethodPost, "/api/tasks",
		`{"title":"Quick fix","minutes":10}`))
	rec := doJSON(t, router, http.MethodPost, "/api/tasks/"+created.ID+"/reschedule", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for pending task, got %d", rec.Code)
	}
}

func TestDeleteTask(t *testing.T) {
	eng, router := newTestServer(t)

	created := decodeTask(t, doJSON(t, router, http.MethodPost, "/api/tasks",
		`{"title":"Tidy desk","minutes":5}`))
	rec := doJSON(t, router, http.MethodDelete, "/api/tasks/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.Task(created.ID) != nil {
		t.Error("expected task removed from engine")
	}
}

func TestHistoryAndSuggestions(t *testing.T) {
	_, router := newTestServer(t)

	for i := 0; i < 2; i++ {
		task := decodeTask(t, doJSON(t, router, http.MethodPost, "/api/tasks",
			fmt.Sprintf(`{"title":"Morning run","minutes":%d}`, 30+i)))
		doJSON(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/start", "")
		doJSON(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/complete", "")
	}

	rec := doJSON(t, router, http.MethodGet, "/api/history", "")
	var history map[string]*models.HistoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	entry := history["Morning run"]
	if entry == nil || entry.CompletionCount != 2 {
		t.Fatalf("expected 2 completions for Morning run, got %+v", entry)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/suggestions?q=morn", "")
	var sugg struct {
		Suggestions []models.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sugg); err != nil {
		t.Fatalf("failed to decode suggestions: %v", err)
	}
	if len(sugg.Suggestions) != 1 || sugg.Suggestions[0].Title != "Morning run" {
		t.Errorf("unexpected suggestions %+v", sugg.Suggestions)
	}
}

func TestRenameHistory(t *testing.T) {
	_, router := newTestServer(t)

	task := decodeTask(t, doJSON(t, router, http.MethodPost, "/api/tasks",
		`{"title":"Jog","minutes":20}`))
	doJSON(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/start", "")
	doJSON(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/complete", "")

	rec := doJSON(t, router, http.MethodPut, "/api/history/rename", `{"from":"Jog","to":"Run"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var history map[string]*models.HistoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if _, ok := history["Jog"]; ok {
		t.Error("expected old title gone")
	}
	if _, ok := history["Run"]; !ok {
		t.Error("expected new title present")
	}

	rec = doJSON(t, router, http.MethodPut, "/api/history/rename", `{"from":"Run"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing target, got %d", rec.Code)
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	eng, router := newTestServer(t)

	task := decodeTask(t, doJSON(t, router, http.MethodPost, "/api/tasks",
		`{"title":"Anything","minutes":5}`))
	doJSON(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/start", "")
	doJSON(t, router, http.MethodPost, "/api/tasks/"+task.ID+"/complete", "")

	for _, body := range []string{`{}`, `{"confirm":"reset"}`, `{"confirm":"yes"}`} {
		if rec := doJSON(t, router, http.MethodPost, "/api/reset", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
	if eng.Score() != 10 {
		t.Fatalf("expected state untouched before confirmation, score %d", eng.Score())
	}

	rec := doJSON(t, router, http.MethodPost, "/api/reset", `{"confirm":"RESET"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.Score() != 0 || len(eng.Tasks()) != 0 || len(eng.History()) != 0 {
		t.Error("expected engine fully reset")
	}
}

func TestStateEndpoint(t *testing.T) {
	_, router := newTestServer(t)

	doJSON(t, router, http.MethodPost, "/api/tasks", `{"title":"One","minutes":5}`)
	rec := doJSON(t, router, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st models.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("failed to decode state: %v", err)
	}
	if len(st.Tasks) != 1 {
		t.Errorf("expected 1 task in state, got %d", len(st.Tasks))
	}
}
