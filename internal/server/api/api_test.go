package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/history"
	"github.com/ayusman/mudra/internal/recognizer"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// yesModel always answers class 2 ("Yes") with 90% confidence.
type yesModel struct{}

func (yesModel) Predict(context.Context, features.Vector) (int, []float64, error) {
	scores := make([]float64, len(classifier.DefaultLabels))
	scores[2] = 0.9
	scores[0] = 0.1
	return 2, scores, nil
}

func (yesModel) InputSize() int { return features.Length }

type testEnv struct {
	store    *store.Store
	sessions *session.Manager
	handler  http.Handler
}

// newTestEnv wires the handlers over a temporary database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cls, err := classifier.New(yesModel{}, classifier.Options{})
	if err != nil {
		t.Fatalf("failed to create classifier: %v", err)
	}

	mgr := session.NewManager(s.Sessions())
	hist := history.NewService(s, history.Options{Seed: 3})
	rec := recognizer.New(cls, mgr, s.Predictions(), recognizer.Options{})

	r := chi.NewRouter()
	r.Use(Identity(s.Users()))
	r.Mount("/api/prediction", NewPredictionHandler(rec, hist).Routes())
	r.Mount("/api/sessions", NewSessionHandler(mgr).Routes(nil))
	r.Mount("/api/user", NewProfileHandler(s.Users()).Routes())
	r.Mount("/api/admin", NewAdminHandler(s.Users(), hist).Routes())

	return &testEnv{store: s, sessions: mgr, handler: r}
}

// do sends a request as userID with the given role. An empty userID sends no
// identity headers.
func (e *testEnv) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	if role != "" {
		req.Header.Set(HeaderUserRole, role)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func handLandmarks() [][2]float64 {
	lms := make([][2]float64, 21)
	for i := range lms {
		lms[i] = [2]float64{0.3 + float64(i)*0.01, 0.6 - float64(i)*0.01}
	}
	return lms
}

func TestIdentity_Required(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/prediction/history", "", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestIdentity_CreatesProfile(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set(HeaderUserEmail, "asha@example.com")
	req.Header.Set(HeaderUserName, "Asha")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	var u store.User
	decode(t, rec, &u)
	if u.ID != "u1" || u.Email != "asha@example.com" || u.Name != "Asha" {
		t.Errorf("unexpected profile: %+v", u)
	}
	if u.Role != store.RoleUser {
		t.Errorf("expected role %q, got %q", store.RoleUser, u.Role)
	}
}

func TestBearerAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		token  string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusNoContent},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"wrong", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"valid", "s3cret", "Bearer s3cret", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			BearerAuth(tt.token)(ok).ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestPredict_Landmarks(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/prediction/predict", "u1", "", map[string]any{
		"landmarks": handLandmarks(),
	})
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		ClassID    *int    `json:"class_id"`
		UserID     string  `json:"user_id"`
		ID         string  `json:"id"`
		Degraded   bool    `json:"degraded"`
	}
	decode(t, rec, &resp)

	if resp.Label != "Yes" || resp.Confidence != 90 {
		t.Errorf("expected Yes at 90, got %s at %v", resp.Label, resp.Confidence)
	}
	if resp.ClassID == nil || *resp.ClassID != 2 {
		t.Errorf("expected class id 2, got %v", resp.ClassID)
	}
	if resp.UserID != "u1" || resp.ID == "" || resp.Degraded {
		t.Errorf("unexpected response: %+v", resp)
	}

	n, err := e.store.Predictions().Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 saved prediction, got %d", n)
	}
}

func TestPredict_LandmarksAsString(t *testing.T) {
	e := newTestEnv(t)

	raw, _ := json.Marshal(handLandmarks())
	rec := e.do(t, http.MethodPost, "/api/prediction/predict", "u1", "", map[string]any{
		"landmarks":   string(raw),
		"save_result": false,
	})
	expectStatus(t, rec, http.StatusOK)

	var resp map[string]any
	decode(t, rec, &resp)
	if resp["label"] != "Yes" {
		t.Errorf("expected Yes, got %v", resp["label"])
	}
	if _, ok := resp["id"]; ok {
		t.Error("expected no id when save_result is false")
	}

	n, _ := e.store.Predictions().Count(context.Background())
	if n != 0 {
		t.Errorf("expected nothing saved, got %d", n)
	}
}

func TestPredict_NoHands(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/prediction/predict", "u1", "", map[string]any{
		"landmarks": [][2]float64{},
	})
	expectStatus(t, rec, http.StatusOK)

	var resp map[string]any
	decode(t, rec, &resp)
	if resp["label"] != "Unknown" || resp["message"] != recognizer.NoHandsMessage {
		t.Errorf("unexpected response: %v", resp)
	}
	n, _ := e.store.Predictions().Count(context.Background())
	if n != 0 {
		t.Errorf("expected placeholder not to be saved, got %d", n)
	}
}

func TestPredict_BadRequests(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed json", `{"landmarks": [`, http.StatusBadRequest},
		{"no input", map[string]any{}, http.StatusBadRequest},
		{"bad landmarks", map[string]any{"landmarks": "not a list"}, http.StatusBadRequest},
		{"image without detector", map[string]any{"image": "aGVsbG8="}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/prediction/predict", "u1", "", tt.body)
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestPredict_InSession(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	s, err := e.sessions.Start(ctx, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for want := 1; want <= 2; want++ {
		rec := e.do(t, http.MethodPost, "/api/prediction/predict", "u1", "", map[string]any{
			"landmarks":  handLandmarks(),
			"session_id": s.ID,
		})
		expectStatus(t, rec, http.StatusOK)

		var resp struct {
			SessionID string `json:"session_id"`
			Count     int    `json:"total_gestures_detected"`
		}
		decode(t, rec, &resp)
		if resp.SessionID != s.ID || resp.Count != want {
			t.Errorf("expected count %d in %s, got %+v", want, s.ID, resp)
		}
	}
}

func TestPredict_EndedSessionKeepsResult(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	s, _ := e.sessions.Start(ctx, "u1")
	if _, err := e.sessions.End(ctx, s.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	rec := e.do(t, http.MethodPost, "/api/prediction/predict", "u1", "", map[string]any{
		"landmarks":  handLandmarks(),
		"session_id": s.ID,
	})
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		Label     string `json:"label"`
		Saved     *bool  `json:"saved"`
		SaveError string `json:"save_error"`
	}
	decode(t, rec, &resp)
	if resp.Label != "Yes" {
		t.Errorf("expected result despite save failure, got %q", resp.Label)
	}
	if resp.Saved == nil || *resp.Saved || resp.SaveError == "" {
		t.Errorf("expected saved=false with an error, got %+v", resp)
	}
}

func TestBulkPredict_Majority(t *testing.T) {
	e := newTestEnv(t)

	frames := []any{handLandmarks(), handLandmarks(), "not landmarks", handLandmarks()}
	rec := e.do(t, http.MethodPost, "/api/prediction/bulk-predict", "u1", "", map[string]any{
		"landmarks_array": frames,
	})
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		Results []struct {
			Label string `json:"label"`
		} `json:"results"`
		Majority *struct {
			Label       string  `json:"label"`
			Confidence  float64 `json:"confidence"`
			Count       int     `json:"count"`
			TotalFrames int     `json:"total_frames"`
			ID          string  `json:"id"`
		} `json:"majority_prediction"`
	}
	decode(t, rec, &resp)

	if len(resp.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(resp.Results))
	}
	if resp.Results[2].Label != "Error" {
		t.Errorf("expected bad frame to be Error, got %q", resp.Results[2].Label)
	}
	m := resp.Majority
	if m == nil {
		t.Fatal("expected a majority prediction")
	}
	if m.Label != "Yes" || m.Count != 3 || m.TotalFrames != 4 || m.Confidence != 75 {
		t.Errorf("unexpected majority: %+v", m)
	}
	if m.ID == "" {
		t.Error("expected majority to be saved")
	}
}

func TestBulkPredict_WithoutMajority(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/prediction/bulk-predict", "u1", "", map[string]any{
		"landmarks_array": []any{handLandmarks()},
		"get_majority":    false,
	})
	expectStatus(t, rec, http.StatusOK)

	var resp map[string]any
	decode(t, rec, &resp)
	if _, ok := resp["majority_prediction"]; ok {
		t.Error("expected no majority_prediction")
	}
	n, _ := e.store.Predictions().Count(context.Background())
	if n != 0 {
		t.Errorf("expected nothing saved, got %d", n)
	}
}

func TestBulkPredict_MissingFrames(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/prediction/bulk-predict", "u1", "", map[string]any{})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = e.do(t, http.MethodPost, "/api/prediction/bulk-predict", "u1", "", map[string]any{
		"landmarks_array": []any{},
	})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestHistory_Pagination(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/prediction/add-samples", "u1", "", map[string]any{"count": 12})
	expectStatus(t, rec, http.StatusOK)

	var added struct {
		Message   string   `json:"message"`
		SampleIDs []string `json:"sample_ids"`
	}
	decode(t, rec, &added)
	if len(added.SampleIDs) != 12 || added.Message != "Added 12 sample predictions" {
		t.Fatalf("unexpected add-samples response: %+v", added)
	}

	rec = e.do(t, http.MethodGet, "/api/prediction/history?page=3&per_page=5", "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)

	var page struct {
		Predictions []store.Prediction `json:"predictions"`
		Pagination  struct {
			Page    int `json:"page"`
			PerPage int `json:"per_page"`
			Total   int `json:"total"`
			Pages   int `json:"pages"`
		} `json:"pagination"`
	}
	decode(t, rec, &page)
	if len(page.Predictions) != 2 {
		t.Errorf("expected 2 items on the last page, got %d", len(page.Predictions))
	}
	if page.Pagination.Total != 12 || page.Pagination.Pages != 3 || page.Pagination.Page != 3 {
		t.Errorf("unexpected pagination: %+v", page.Pagination)
	}

	rec = e.do(t, http.MethodGet, "/api/prediction/history", "u2", "", nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &page)
	if len(page.Predictions) != 0 || page.Pagination.Total != 0 {
		t.Errorf("expected other user to see nothing, got %+v", page.Pagination)
	}
}

func TestHistory_InvalidPage(t *testing.T) {
	e := newTestEnv(t)

	for _, q := range []string{"page=0", "page=abc", "per_page=0", "per_page=-3"} {
		rec := e.do(t, http.MethodGet, "/api/prediction/history?"+q, "u1", "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestHistory_GetAndDelete(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/prediction/add-samples", "u1", "", map[string]any{"count": 1})
	expectStatus(t, rec, http.StatusOK)
	var added struct {
		SampleIDs []string `json:"sample_ids"`
	}
	decode(t, rec, &added)
	id := added.SampleIDs[0]

	rec = e.do(t, http.MethodGet, "/api/prediction/history/"+id, "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)

	// Foreign and missing ids look the same.
	rec = e.do(t, http.MethodGet, "/api/prediction/history/"+id, "u2", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = e.do(t, http.MethodDelete, "/api/prediction/history/"+id, "u2", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = e.do(t, http.MethodDelete, "/api/prediction/history/missing", "u1", "", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = e.do(t, http.MethodDelete, "/api/prediction/history/"+id, "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)
	rec = e.do(t, http.MethodGet, "/api/prediction/history/"+id, "u1", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestAddSamples_Defaults(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/prediction/add-samples", "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var added struct {
		SampleIDs []string `json:"sample_ids"`
	}
	decode(t, rec, &added)
	if len(added.SampleIDs) != history.DefaultSampleCount {
		t.Errorf("expected %d samples, got %d", history.DefaultSampleCount, len(added.SampleIDs))
	}

	rec = e.do(t, http.MethodPost, "/api/prediction/add-samples", "u1", "", map[string]any{"count": -1})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSessions_Lifecycle(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/sessions", "u1", "", nil)
	expectStatus(t, rec, http.StatusCreated)
	var started struct {
		Session store.Session `json:"session"`
	}
	decode(t, rec, &started)
	id := started.Session.ID
	if id == "" || !started.Session.IsActive {
		t.Fatalf("unexpected session: %+v", started.Session)
	}

	rec = e.do(t, http.MethodGet, "/api/sessions/"+id, "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = e.do(t, http.MethodGet, "/api/sessions/"+id, "u2", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = e.do(t, http.MethodPost, "/api/sessions/"+id+"/end", "u2", "", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = e.do(t, http.MethodPost, "/api/sessions/"+id+"/end", "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var ended struct {
		Session store.Session `json:"session"`
	}
	decode(t, rec, &ended)
	if ended.Session.IsActive || ended.Session.EndTime == nil || ended.Session.DurationSeconds == nil {
		t.Errorf("expected ended session with duration, got %+v", ended.Session)
	}

	rec = e.do(t, http.MethodPost, "/api/sessions/"+id+"/end", "u1", "", nil)
	expectStatus(t, rec, http.StatusConflict)

	rec = e.do(t, http.MethodGet, "/api/sessions", "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Sessions []store.Session `json:"sessions"`
	}
	decode(t, rec, &list)
	if len(list.Sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(list.Sessions))
	}

	rec = e.do(t, http.MethodDelete, "/api/sessions/"+id, "u1", "", nil)
	expectStatus(t, rec, http.StatusOK)
	rec = e.do(t, http.MethodGet, "/api/sessions/"+id, "u1", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
	rec = e.do(t, http.MethodDelete, "/api/sessions/"+id, "u1", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestProfile_Update(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPut, "/api/user/profile", "u1", "", map[string]any{"role": "admin"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = e.do(t, http.MethodPut, "/api/user/profile", "u1", "", map[string]any{
		"name":  "  Ravi ",
		"email": "ravi@example.com",
		"role":  "admin",
	})
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		User store.User `json:"user"`
	}
	decode(t, rec, &resp)
	if resp.User.Name != "Ravi" || resp.User.Email != "ravi@example.com" {
		t.Errorf("unexpected profile: %+v", resp.User)
	}
	if resp.User.Role != store.RoleUser {
		t.Errorf("expected role to stay %q, got %q", store.RoleUser, resp.User.Role)
	}
}

func TestAdmin_RequiresRole(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/admin/dashboard", "u1", "", nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = e.do(t, http.MethodGet, "/api/admin/users", "u1", "superuser", nil)
	expectStatus(t, rec, http.StatusForbidden)

	rec = e.do(t, http.MethodGet, "/api/admin/dashboard", "root", "admin", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestAdmin_Dashboard(t *testing.T) {
	e := newTestEnv(t)

	e.do(t, http.MethodPost, "/api/prediction/add-samples", "u1", "", map[string]any{"count": 3})
	e.do(t, http.MethodPost, "/api/sessions", "u1", "", nil)

	rec := e.do(t, http.MethodGet, "/api/admin/dashboard", "root", "admin", nil)
	expectStatus(t, rec, http.StatusOK)

	var d history.Dashboard
	decode(t, rec, &d)
	if d.Totals.Users != 2 || d.Totals.Sessions != 1 || d.Totals.ActiveSessions != 1 || d.Totals.Predictions != 3 {
		t.Errorf("unexpected totals: %+v", d.Totals)
	}
	if len(d.PredictionsByDay) != 7 {
		t.Errorf("expected 7 days, got %d", len(d.PredictionsByDay))
	}
	if len(d.MostActiveUsers) != 1 || d.MostActiveUsers[0].UserID != "u1" {
		t.Errorf("unexpected most active users: %+v", d.MostActiveUsers)
	}
}

func TestAdmin_Users(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.do(t, http.MethodPost, "/api/prediction/add-samples", "u1", "", map[string]any{"count": 2})
	e.do(t, http.MethodPost, "/api/sessions", "u1", "", nil)

	rec := e.do(t, http.MethodGet, "/api/admin/users", "root", "admin", nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Users []store.User `json:"users"`
	}
	decode(t, rec, &list)
	if len(list.Users) != 2 {
		t.Errorf("expected 2 users, got %d", len(list.Users))
	}

	rec = e.do(t, http.MethodPut, "/api/admin/users/u1", "root", "admin", map[string]any{"role": "owner"})
	expectStatus(t, rec, http.StatusBadRequest)
	rec = e.do(t, http.MethodPut, "/api/admin/users/nobody", "root", "admin", map[string]any{"name": "x"})
	expectStatus(t, rec, http.StatusNotFound)

	rec = e.do(t, http.MethodPut, "/api/admin/users/u1", "root", "admin", map[string]any{"role": "admin"})
	expectStatus(t, rec, http.StatusOK)
	u, err := e.store.Users().Get(ctx, "u1")
	if err != nil || u.Role != store.RoleAdmin {
		t.Errorf("expected u1 to be admin, got %+v (%v)", u, err)
	}

	rec = e.do(t, http.MethodDelete, "/api/admin/users/u1", "root", "admin", nil)
	expectStatus(t, rec, http.StatusOK)
	rec = e.do(t, http.MethodGet, "/api/admin/users/u1", "root", "admin", nil)
	expectStatus(t, rec, http.StatusNotFound)

	n, _ := e.store.Predictions().Count(ctx)
	total, _, _ := e.store.Sessions().Counts(ctx)
	if n != 0 || total != 0 {
		t.Errorf("expected user data removed, got %d predictions and %d sessions", n, total)
	}
}

func TestWriteStoreError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeStoreError(rec, context.DeadlineExceeded, "Failed to do thing")
	expectStatus(t, rec, http.StatusInternalServerError)
	if strings.Contains(rec.Body.String(), "deadline") {
		t.Errorf("expected internal error to be hidden, got %s", rec.Body.String())
	}
}
