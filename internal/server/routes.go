package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelprobe/pixelprobe/internal/classify"
	"github.com/pixelprobe/pixelprobe/internal/leaderboard"
	"github.com/pixelprobe/pixelprobe/internal/models"
	"github.com/pixelprobe/pixelprobe/internal/store"
)

// allowedUploadTypes are the content types POST /analyze accepts.
var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	router.GET("/", handleRoot)
	router.GET("/healthz", handleHealth)

	router.POST("/analyze", handleAnalyze(opts))
	router.GET("/analyze/result/:id", handleResult(opts.Store))
	router.GET("/analyze/recent", handleRecent(opts.Store))

	router.GET("/leaderboard", handleLeaderboard(opts.Board))
	router.POST("/metrics/record", handleRecordMetric(opts.Board))
	router.GET("/metrics/leaderboard", handleFastest(opts.Board))
	router.GET("/metrics/model_stats", handleModelStats(opts.Board))

	router.POST("/predict", handlePredict)
	router.GET("/predict/health", handlePredictHealth)

	router.GET("/share/qr", handleShareQR)
}

func handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "pixelprobe",
		"endpoints": gin.H{
			"analyze":     "POST /analyze - image analysis",
			"leaderboard": "GET /leaderboard - model speed rankings",
		},
	})
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleAnalyze is the main flow: save the upload, classify the question,
// dispatch to an inference backend, record the latency observation, persist
// the result.
func handleAnalyze(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		question := c.PostForm("question")
		if question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		file, header, err := c.Request.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
			return
		}
		defer file.Close()

		if !allowedUploadTypes[header.Header.Get("Content-Type")] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only JPG and PNG images are allowed"})
			return
		}

		path, err := opts.Store.SaveUpload(header.Filename, file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
			return
		}

		res := opts.Classifier.Classify(c.Request.Context(), classify.Request{
			Question: question,
		})

		outcome, err := opts.Runner.Run(c.Request.Context(), res.Task, path, question)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "inference failed"})
			return
		}

		if err := opts.Board.RecordTask(outcome.Model, string(res.Task), outcome.LatencySeconds); err != nil {
			// A backend reporting negative latency is its bug, not the
			// client's; keep answering but leave the board untouched.
			c.Error(fmt.Errorf("record observation: %w", err))
		}

		rec := &models.InferenceRecord{
			Task:           string(res.Task),
			Source:         string(res.Source),
			Model:          outcome.Model,
			Question:       question,
			Filename:       header.Filename,
			Result:         outcome.ResultText,
			LatencySeconds: round(outcome.LatencySeconds, 2),
		}
		if err := opts.Store.CreateRecord(rec); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record result"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":       rec.ID,
			"task":     rec.Task,
			"source":   rec.Source,
			"question": question,
			"filename": header.Filename,
			"result":   outcome.ResultText,
			"latency":  rec.LatencySeconds,
			"model":    outcome.Model,
		})
	}
}

func handleResult(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := s.FindRecord(c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		c.JSON(http.StatusOK, rec)
	}
}

func handleRecent(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 20)
		recs, err := s.RecentRecords(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		c.JSON(http.StatusOK, recs)
	}
}

func handleLeaderboard(board *leaderboard.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries := board.RankingsForTask(c.Query("task"))
		out := make([]gin.H, 0, len(entries))
		for _, e := range entries {
			out = append(out, gin.H{
				"model":           e.Model,
				"average_latency": round(e.AverageLatencySeconds, 2),
				"runs":            e.Runs,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}

// handleRecordMetric lets inference backends self-report their latencies.
func handleRecordMetric(board *leaderboard.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		model := c.Query("model_name")
		latency, err := strconv.ParseFloat(c.Query("latency"), 64)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "latency must be a number"})
			return
		}
		if err := board.RecordTask(model, c.Query("task"), latency); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Metric recorded successfully"})
	}
}

func handleFastest(board *leaderboard.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := intQuery(c, "limit", 3)
		c.JSON(http.StatusOK, board.Fastest(limit))
	}
}

func handleModelStats(board *leaderboard.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, board.Stats())
	}
}

// predictBody mirrors the external classification endpoint's request shape,
// so a Pixelprobe instance can serve as another instance's external tier.
type predictBody struct {
	Prompt      string  `json:"prompt" binding:"required"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// handlePredict answers with the local rule-based classification of the
// prompt. It stands in for a real model endpoint in demos and tests.
func handlePredict(c *gin.Context) {
	start := time.Now()

	var body predictBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	task := classify.RuleBased(body.Prompt)
	c.JSON(http.StatusOK, gin.H{
		"response": string(task),
		"latency":  round(time.Since(start).Seconds(), 4),
		"model":    "pixelprobe-rules",
	})
}

func handlePredictHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "model": "pixelprobe-rules"})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func round(x float64, places int) float64 {
	shift := math.Pow10(places)
	return math.Round(x*shift) / shift
}
