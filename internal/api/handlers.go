package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/prepdeck/internal/achievements"
	"github.com/abhisek/prepdeck/internal/activity"
	"github.com/abhisek/prepdeck/internal/app"
	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/guidance"
	"github.com/abhisek/prepdeck/internal/progress"
	"github.com/abhisek/prepdeck/internal/store"
)

const defaultStudySize = 20

// ProgressResponse is the body of GET /v1/progress.
type ProgressResponse struct {
	Record       *progress.Record          `json:"record"`
	Accuracy     float64                   `json:"accuracy"`
	StudyMinutes int                       `json:"study_minutes"`
	Achievements []achievements.Evaluation `json:"achievements"`
}

// StartStudyRequest is the body of POST /v1/study/start.
type StartStudyRequest struct {
	Mode flashcard.Mode `json:"mode" binding:"required"`
	Size int            `json:"size"`
}

// StartStudyResponse lists the cards selected for a new session.
type StartStudyResponse struct {
	SessionID string            `json:"session_id"`
	Cards     []flashcard.Entry `json:"cards"`
}

// AnswerRequest is the body of POST /v1/study/answer.
type AnswerRequest struct {
	CardID    string `json:"card_id" binding:"required"`
	Correct   bool   `json:"correct"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func (s *Server) recordActivity(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortError(c, http.StatusBadRequest, "failed to read body", err)
		return
	}
	ev, err := activity.Decode(body)
	if err != nil {
		writeError(c, "invalid activity", err)
		return
	}

	res, err := sessionFrom(c).RecordActivity(c.Request.Context(), ev)
	if err != nil {
		writeError(c, "failed to record activity", err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) getProgress(c *gin.Context) {
	u := sessionFrom(c)
	rec := u.Progress.Snapshot()
	c.JSON(http.StatusOK, ProgressResponse{
		Record:       rec,
		Accuracy:     rec.Accuracy(),
		StudyMinutes: rec.StudyMinutes(),
		Achievements: u.Progress.Catalog().Evaluate(rec.Stats(), rec.Badges),
	})
}

func (s *Server) getHistory(c *gin.Context) {
	var opts store.QueryOpts
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortError(c, http.StatusBadRequest, "invalid limit", err)
			return
		}
		opts.Limit = n
	}
	if v := c.Query("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			abortError(c, http.StatusBadRequest, "invalid before", err)
			return
		}
		opts.Before = n
	}

	entries, err := s.app.History(c.Request.Context(), c.GetString(userIDKey), opts)
	if err != nil {
		writeError(c, "failed to query history", err)
		return
	}
	if entries == nil {
		entries = []store.ActivityEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"activities": entries})
}

func (s *Server) addCard(c *gin.Context) {
	var card flashcard.Card
	if err := c.ShouldBindJSON(&card); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	st, err := sessionFrom(c).Deck.Add(c.Request.Context(), card, s.app.Now())
	if err != nil {
		writeError(c, "failed to add card", err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Server) removeCard(c *gin.Context) {
	if err := sessionFrom(c).Deck.Remove(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, "failed to remove card", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getCounts(c *gin.Context) {
	c.JSON(http.StatusOK, sessionFrom(c).Deck.Counts(s.app.Now()))
}

func (s *Server) startStudy(c *gin.Context) {
	var req StartStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if !req.Mode.Valid() {
		abortError(c, http.StatusBadRequest, "unknown mode", nil)
		return
	}
	if req.Size == 0 {
		req.Size = defaultStudySize
	}
	if req.Size < 0 {
		abortError(c, http.StatusBadRequest, "size must be positive", nil)
		return
	}

	sess, cards, err := sessionFrom(c).StartStudy(req.Mode, req.Size)
	if err != nil {
		writeError(c, "failed to start study session", err)
		return
	}
	c.JSON(http.StatusCreated, StartStudyResponse{SessionID: sess.ID, Cards: cards})
}

func (s *Server) answerCard(c *gin.Context) {
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	if req.ElapsedMS < 0 || req.ElapsedMS > activity.MaxTimeSpent.Milliseconds() {
		abortError(c, http.StatusBadRequest, "elapsed_ms out of range", nil)
		return
	}

	elapsed := time.Duration(req.ElapsedMS) * time.Millisecond
	st, err := sessionFrom(c).AnswerCard(req.CardID, req.Correct, elapsed)
	if err != nil {
		writeError(c, "failed to record answer", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) endStudy(c *gin.Context) {
	summary, err := sessionFrom(c).EndStudy(c.Request.Context())
	if err != nil {
		writeError(c, "failed to end study session", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getTips(c *gin.Context) {
	tips := sessionFrom(c).Tips(c.Request.Context())
	if tips == nil {
		tips = []guidance.Tip{}
	}
	c.JSON(http.StatusOK, gin.H{"tips": tips})
}

func (s *Server) dismissTip(c *gin.Context) {
	id := guidance.TipID(c.Param("id"))
	if err := sessionFrom(c).Guidance.Dismiss(c.Request.Context(), id); err != nil {
		writeError(c, "failed to dismiss tip", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) signOut(c *gin.Context) {
	err := s.app.SignOut(c.Request.Context(), c.GetString(userIDKey))
	if err != nil && !errors.Is(err, app.ErrUnknownUser) {
		writeError(c, "failed to sign out", err)
		return
	}
	c.Status(http.StatusNoContent)
}
