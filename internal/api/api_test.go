package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/prepdeck/internal/app"
	"github.com/abhisek/prepdeck/internal/config"
	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/progress"
)

var now = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendMemory
	cfg.TimeZone = "UTC"
	cfg.Guidance.Interval = 0
	cfg.Server.JWTSecret = secret

	logger, _ := test.NewNullLogger()
	a, err := app.New(context.Background(), app.Options{
		Config: cfg,
		Logger: logger,
		Clock:  func() time.Time { return now },
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return NewServer(a)
}

func do(t *testing.T, s *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	do(t, s, http.MethodGet, "/v1/progress", "alice", nil)
	w = do(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "prepdeck_user_sessions_active 1")
}

func TestMissingIdentity(t *testing.T) {
	s := newTestServer(t, "")
	w := do(t, s, http.MethodGet, "/v1/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRecordActivityAndProgress(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodPost, "/v1/activities", "alice",
		`{"kind":"question","question_id":"q1","skill":"trees","difficulty":"hard","correct":true,"attempts":3,"time_spent_secs":90}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res progress.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 16, res.Points)
	assert.Equal(t, []string{"first-question"}, res.NewBadges)

	w = do(t, s, http.MethodPost, "/v1/activities", "alice",
		`{"kind":"challenge","challenge_id":"c1","score":40,"max_score":50,"completed":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 40, res.Points)

	w = do(t, s, http.MethodPost, "/v1/activities", "alice", `{"kind":"question","difficulty":"trivial","correct":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/v1/progress", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pr struct {
		Record       progress.Record `json:"record"`
		Accuracy     float64         `json:"accuracy"`
		StudyMinutes int             `json:"study_minutes"`
		Achievements []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pr))
	assert.Equal(t, 56, pr.Record.TotalPoints)
	assert.Equal(t, 1.0, pr.Accuracy)
	assert.Equal(t, 1, pr.StudyMinutes)
	require.NotEmpty(t, pr.Achievements)

	statuses := map[string]string{}
	for _, e := range pr.Achievements {
		statuses[e.ID] = e.Status
	}
	assert.Equal(t, "earned", statuses["first-question"])
	assert.Equal(t, "in-progress", statuses["questions-10"])
}

func TestHistoryWithoutLog(t *testing.T) {
	s := newTestServer(t, "")
	w := do(t, s, http.MethodGet, "/v1/history", "alice", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	w = do(t, s, http.MethodGet, "/v1/history?limit=x", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlashcardStudyFlow(t *testing.T) {
	s := newTestServer(t, "")
	user := "bob"

	w := do(t, s, http.MethodPost, "/v1/study/start", user, StartStudyRequest{Mode: flashcard.ModeMixed})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	for _, c := range []flashcard.Card{
		{ID: "dns", Front: "What does DNS resolve?", Back: "Names to addresses"},
		{ID: "lru", Front: "LRU eviction?", Back: "Least recently used goes first"},
	} {
		w = do(t, s, http.MethodPost, "/v1/flashcards", user, c)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w = do(t, s, http.MethodPost, "/v1/flashcards", user, flashcard.Card{ID: "dns", Front: "x", Back: "y"})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, s, http.MethodPost, "/v1/flashcards", user, flashcard.Card{ID: "empty"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodDelete, "/v1/flashcards/lru", user, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/v1/flashcards/missing", user, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/v1/flashcards/counts", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var counts flashcard.Counts
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, flashcard.Counts{New: 1, Total: 1}, counts)

	w = do(t, s, http.MethodPost, "/v1/study/start", user, StartStudyRequest{Mode: "random"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/v1/study/start", user, StartStudyRequest{Mode: flashcard.ModeNew, Size: 5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started StartStudyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.Len(t, started.Cards, 1)
	assert.Equal(t, "dns", started.Cards[0].Card.ID)

	w = do(t, s, http.MethodPost, "/v1/study/answer", user, AnswerRequest{CardID: "lru", Correct: true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, ms := range []int64{-1, 86_400_001, 9_223_372_036_855} {
		w = do(t, s, http.MethodPost, "/v1/study/answer", user, AnswerRequest{CardID: "dns", ElapsedMS: ms})
		assert.Equal(t, http.StatusBadRequest, w.Code, "elapsed %d", ms)
	}

	w = do(t, s, http.MethodPost, "/v1/study/answer", user, AnswerRequest{CardID: "dns", Correct: false, ElapsedMS: 2500})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st flashcard.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 0, st.ConsecutiveCorrect)
	assert.True(t, st.NextDue.Equal(now.AddDate(0, 0, 1)))

	w = do(t, s, http.MethodPost, "/v1/study/end", user, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary flashcard.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, started.SessionID, summary.SessionID)
	assert.Equal(t, 1, summary.Stats.Incorrect)

	w = do(t, s, http.MethodPost, "/v1/study/answer", user, AnswerRequest{CardID: "dns", Correct: true})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = do(t, s, http.MethodPost, "/v1/study/end", user, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTipsAndDismiss(t *testing.T) {
	s := newTestServer(t, "")

	w := do(t, s, http.MethodGet, "/v1/tips", "carol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Tips []struct {
			ID string `json:"id"`
		} `json:"tips"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tips, 2)
	assert.Equal(t, "welcome", body.Tips[0].ID)

	w = do(t, s, http.MethodPost, "/v1/tips/welcome/dismiss", "carol", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodPost, "/v1/tips/nope/dismiss", "carol", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodGet, "/v1/tips", "carol", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tips, 1)
	assert.Equal(t, "first-question", body.Tips[0].ID)
}

func TestSignOut(t *testing.T) {
	s := newTestServer(t, "")

	do(t, s, http.MethodGet, "/v1/progress", "dave", nil)
	_, ok := s.app.Session("dave")
	require.True(t, ok)

	w := do(t, s, http.MethodPost, "/v1/signout", "dave", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, ok = s.app.Session("dave")
	assert.False(t, ok)

	w = do(t, s, http.MethodPost, "/v1/signout", "dave", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func signToken(t *testing.T, secret []byte, method jwt.SigningMethod, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestJWTAuth(t *testing.T) {
	secret := []byte("test-secret")
	s := newTestServer(t, string(secret))

	call := func(auth string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/flashcards/counts", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		req.Header.Set("X-User-ID", "spoofed")
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage"))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+signToken(t, []byte("other"), jwt.SigningMethodHS256, "erin")))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+signToken(t, secret, jwt.SigningMethodHS256, "")))
	assert.Equal(t, http.StatusOK, call("Bearer "+signToken(t, secret, jwt.SigningMethodHS256, "erin")))

	_, ok := s.app.Session("erin")
	assert.True(t, ok)
	_, ok = s.app.Session("spoofed")
	assert.False(t, ok)
}
