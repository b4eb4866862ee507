package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/internal/queue"
	"knowledge-extraction-platform/internal/store"
	"knowledge-extraction-platform/internal/vectorstore/qdrant"
	"knowledge-extraction-platform/models"
	"knowledge-extraction-platform/services"
	"knowledge-extraction-platform/utils"
)

// SourceRunStore covers the source lookups and status transitions an
// extraction run needs.
type SourceRunStore interface {
	GetSource(ctx context.Context, sourceID string) (*models.Source, error)
	UpdateSourceStatus(ctx context.Context, sourceID, status string) error
	InsertRunSummary(ctx context.Context, summary *models.PipelineSummary) error
}

// ExtractionRunner runs the pipeline for one source.
type ExtractionRunner interface {
	Run(ctx context.Context, sourceID string) (*models.PipelineSummary, error)
}

// RunLocker serializes extraction runs per source.
type RunLocker interface {
	Acquire(ctx context.Context, sourceID string) (bool, error)
	Release(ctx context.Context, sourceID string) error
}

// TaskEnqueuer hands tasks to the worker queue.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// HandleExtractSource starts an extraction run for a source. The default is
// an async run through the worker queue; mode=sync runs inline and returns
// the summary. Either way the per-source lock rejects concurrent runs.
func HandleExtractSource(st SourceRunStore, pipeline ExtractionRunner, runLock RunLocker, queueClient TaskEnqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		sourceID := c.Param("id")
		ctx := c.Request.Context()

		src, err := st.GetSource(ctx, sourceID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve source", nil)
			return
		}
		if src == nil {
			utils.RespondWithNotFound(c, "Source not found")
			return
		}

		acquired, err := runLock.Acquire(ctx, sourceID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to acquire run lock", nil)
			return
		}
		if !acquired {
			utils.RespondWithConflict(c, "An extraction run is already in progress for this source")
			return
		}

		if c.DefaultQuery("mode", "async") == "sync" {
			// Release with a fresh context: the request context dies when
			// the client disconnects, which would wedge the lock until its
			// TTL expires.
			defer func() {
				if err := runLock.Release(context.Background(), sourceID); err != nil {
					logger.Error("failed to release run lock", "source_id", sourceID, "error", err)
				}
			}()

			if err := st.UpdateSourceStatus(ctx, sourceID, models.SourceStatusExtracting); err != nil {
				utils.RespondWithInternalError(c, "Failed to update source status", nil)
				return
			}

			summary, err := pipeline.Run(ctx, sourceID)
			if err != nil {
				_ = st.UpdateSourceStatus(ctx, sourceID, models.SourceStatusFailed)
				utils.RespondWithInternalError(c, "Extraction run failed", err.Error())
				return
			}

			if err := st.InsertRunSummary(ctx, summary); err != nil {
				logger.Error("failed to persist run summary", "source_id", sourceID, "error", err)
			}
			if err := st.UpdateSourceStatus(ctx, sourceID, models.SourceStatusExtracted); err != nil {
				logger.Error("failed to update source status", "source_id", sourceID, "error", err)
			}

			c.JSON(http.StatusOK, summary)
			return
		}

		task, err := queue.NewExtractSourceTask(sourceID)
		if err != nil {
			_ = runLock.Release(context.Background(), sourceID)
			utils.RespondWithInternalError(c, "Failed to create extraction task", nil)
			return
		}

		info, err := queueClient.Enqueue(task)
		if err != nil {
			_ = runLock.Release(context.Background(), sourceID)
			utils.RespondWithInternalError(c, "Failed to enqueue extraction task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":   "Extraction run accepted",
			"source_id": sourceID,
			"task_id":   info.ID,
			"status":    models.SourceStatusExtracting,
		})
	}
}

// HandleListExtractions queries stored records with optional source,
// category and level filters.
func HandleListExtractions(st *store.MongoStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := st.FindRecords(c.Request.Context(),
			c.Query("source_id"),
			c.Query("category"),
			models.ExtractionLevel(c.Query("level")),
		)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to query records", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
	}
}

// HandleExportExtractions streams the matching records as an Excel workbook.
func HandleExportExtractions(export *services.ExportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, count, err := export.ExportExcel(c.Request.Context(),
			c.Query("source_id"),
			c.Query("category"),
			models.ExtractionLevel(c.Query("level")),
		)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to build export", nil)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="extractions.xlsx"`)
		c.Header("X-Record-Count", strconv.Itoa(count))
		c.Data(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			buf.Bytes())
	}
}

// QueryRequest is a semantic search over stored extraction records.
type QueryRequest struct {
	Query    string `json:"query" binding:"required"`
	TopK     int    `json:"top_k,omitempty"`
	SourceID string `json:"source_id,omitempty"`
	Category string `json:"category,omitempty"`
}

// HandleQuery embeds the query text and searches the vector store, filtered
// on payload fields when requested.
func HandleQuery(embedder services.Embedder, vectors *qdrant.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid query request", err.Error())
			return
		}

		ctx := c.Request.Context()
		vector, err := embedder.EmbedQuery(ctx, req.Query)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to embed query", nil)
			return
		}

		filter := map[string]string{}
		if req.SourceID != "" {
			filter["source_id"] = req.SourceID
		}
		if req.Category != "" {
			filter["category"] = req.Category
		}

		results, err := vectors.Search(ctx, vector, req.TopK, filter)
		if err != nil {
			utils.RespondWithInternalError(c, "Vector search failed", nil)
			return
		}

		out := make([]gin.H, 0, len(results))
		for _, r := range results {
			out = append(out, gin.H{
				"record_id": r.RecordID,
				"score":     fmt.Sprintf("%.4f", r.Score),
				"payload":   r.Payload,
			})
		}
		c.JSON(http.StatusOK, gin.H{"results": out, "count": len(out)})
	}
}
