package http

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/history"
)

// RouterConfig carries the dependencies of the report server.
type RouterConfig struct {
	History *history.Store
	Version string
}

// NewRouter builds the read-only report API: run history and plan/report
// artifacts. There are no write endpoints; executing a sync stays on the
// CLI.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": cfg.Version})
	})

	api := router.Group("/api")
	{
		api.GET("/runs", listRuns(cfg.History))
		api.GET("/runs/:id", getRun(cfg.History))
		api.GET("/runs/:id/report", getRunReport(cfg.History))
	}

	return router
}

func listRuns(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 0 {
			limit = 50
		}
		runs, err := store.GetRuns(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func getRun(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, err := store.GetRun(uint(id))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// getRunReport streams the JSON plan artifact recorded for the run.
func getRunReport(store *history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, err := store.GetRun(uint(id))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		if run.ArtifactPath == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "run has no report artifact"})
			return
		}
		if _, err := os.Stat(run.ArtifactPath); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "report artifact missing on disk"})
			return
		}

		c.File(run.ArtifactPath)
	}
}
