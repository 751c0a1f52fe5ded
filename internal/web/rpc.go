package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jomof/kana-game/internal/domain"
	"github.com/jomof/kana-game/internal/selection"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Errors travel in the response body with HTTP 200, as the frontend expects.
func respondResult(c *gin.Context, id, result any) {
	c.JSON(http.StatusOK, gin.H{"jsonrpc": "2.0", "result": result, "id": id})
}

func respondError(c *gin.Context, id any, code int, message string, data any) {
	c.JSON(http.StatusOK, gin.H{
		"jsonrpc": "2.0",
		"error":   rpcError{Code: code, Message: message, Data: data},
		"id":      id,
	})
}

func (s *Server) handleRPC(c *gin.Context) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, nil, codeParseError, "Parse error", nil)
		return
	}

	switch req.Method {
	case "getQuestions":
		s.handleGetQuestions(c, req)
	case "getNextQuestion":
		s.handleGetNextQuestion(c, req)
	case "provideAnswer":
		s.handleProvideAnswer(c, req)
	case "log":
		handleLog(c, req)
	default:
		respondError(c, req.ID, codeMethodNotFound, "Method not found", nil)
	}
}

func (s *Server) handleGetQuestions(c *gin.Context, req rpcRequest) {
	questions, err := s.catalog.Questions()
	if err != nil {
		slog.Error("getQuestions failed", "error", err)
		respondError(c, req.ID, codeInternalError, "Internal error", nil)
		return
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	respondResult(c, req.ID, questions)
}

func (s *Server) handleGetNextQuestion(c *gin.Context, req rpcRequest) {
	var params struct {
		User string `json:"user"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			respondError(c, req.ID, codeInvalidParams, "Invalid params", nil)
			return
		}
	}
	if params.User == "" {
		respondError(c, req.ID, codeInvalidParams, "user is required", nil)
		return
	}

	questions, err := s.catalog.Questions()
	if err != nil {
		slog.Error("catalog load failed", "user", params.User, "error", err)
		respondError(c, req.ID, codeInternalError, "Internal error", nil)
		return
	}

	engine, err := s.acquire(params.User)
	if err != nil {
		slog.Error("engine open failed", "user", params.User, "error", err)
		respondError(c, req.ID, codeInternalError, "Internal error", nil)
		return
	}
	defer engine.Close()

	question, ok, err := selection.Next(questions, engine, s.cfg.CooldownMinutes, nil)
	if err != nil {
		slog.Error("next question selection failed", "user", params.User, "error", err)
		respondError(c, req.ID, codeInternalError, "Internal error", nil)
		return
	}
	if !ok {
		// Empty catalog: nothing available, which is not an error.
		respondResult(c, req.ID, nil)
		return
	}
	respondResult(c, req.ID, question)
}

func (s *Server) handleProvideAnswer(c *gin.Context, req rpcRequest) {
	var params struct {
		User     string          `json:"user"`
		Question string          `json:"question"`
		Score    json.RawMessage `json:"score"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		respondError(c, req.ID, codeInvalidParams, "Invalid params", nil)
		return
	}
	if params.User == "" || params.Question == "" {
		respondError(c, req.ID, codeInvalidParams, "user and question are required", nil)
		return
	}

	score, skip, err := parseScore(params.Score)
	if err != nil {
		respondError(c, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}

	engine, err := s.acquire(params.User)
	if err != nil {
		slog.Error("engine open failed", "user", params.User, "error", err)
		respondError(c, req.ID, codeInternalError, "Internal error", nil)
		return
	}
	defer engine.Close()

	// A skipped question is buried, never recorded: burying defers the card
	// without feeding a fake rating into the scheduling model.
	if skip {
		if err := engine.Bury(params.Question, s.cfg.BuryMinutes); err != nil {
			slog.Error("bury failed", "user", params.User, "error", err)
			respondError(c, req.ID, codeInternalError, "Internal error", nil)
			return
		}
		respondResult(c, req.ID, gin.H{"status": "ok", "action": "buried"})
		return
	}

	if err := engine.RecordAnswer(params.Question, score); err != nil {
		if errors.Is(err, domain.ErrInvalidScore) {
			respondError(c, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		slog.Error("record answer failed", "user", params.User, "error", err)
		respondError(c, req.ID, codeInternalError, "Internal error", nil)
		return
	}
	respondResult(c, req.ID, gin.H{"status": "ok", "action": "recorded"})
}

// handleLog forwards a frontend log line into the server log. Pure
// pass-through; it touches no scheduling state.
func handleLog(c *gin.Context, req rpcRequest) {
	var params struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if req.Params != nil {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			respondError(c, req.ID, codeInvalidParams, "Invalid params", nil)
			return
		}
	}

	logger := slog.Default().With("origin", "frontend")
	switch strings.ToLower(params.Level) {
	case "error":
		logger.Error(params.Message)
	case "warn", "warning":
		logger.Warn(params.Message)
	case "debug":
		logger.Debug(params.Message)
	default:
		logger.Info(params.Message)
	}
	respondResult(c, req.ID, gin.H{"status": "ok"})
}

// parseScore interprets the score parameter: a 0-100 number records an
// answer; null, absence, or "skip" buries the question instead.
func parseScore(raw json.RawMessage) (score int, skip bool, err error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return 0, true, nil
	}

	var str string
	if json.Unmarshal(raw, &str) == nil {
		if strings.EqualFold(str, "skip") {
			return 0, true, nil
		}
		return 0, false, errors.New("score must be a number or \"skip\"")
	}

	var num float64
	if json.Unmarshal(raw, &num) != nil {
		return 0, false, errors.New("score must be a number or \"skip\"")
	}
	if num != math.Trunc(num) {
		return 0, false, errors.New("score must be an integer")
	}
	return int(num), false, nil
}
