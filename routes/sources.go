package routes

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"knowledge-extraction-platform/internal/config"
	"knowledge-extraction-platform/internal/store"
	"knowledge-extraction-platform/models"
	"knowledge-extraction-platform/services"
	"knowledge-extraction-platform/utils"
)

// HandleRegisterSource ingests an uploaded document: the file is parsed into
// position-tagged units, the source and its units are stored, and the source
// ID to extract against is returned.
func HandleRegisterSource(cfg *config.Config, st *store.MongoStore, ingester *services.Ingester) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxUploadSize); err != nil {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxUploadSize {
			utils.RespondWithBadRequest(c, "File size exceeds maximum limit", nil)
			return
		}

		contentType := detectContentType(header.Filename, header.Header.Get("Content-Type"))
		if contentType == "" {
			utils.RespondWithBadRequest(c, "Only markdown and PDF files are supported", nil)
			return
		}

		content, err := io.ReadAll(io.LimitReader(file, cfg.MaxUploadSize))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read file", nil)
			return
		}

		sourceID := uuid.NewString()

		var units []models.TextUnit
		switch contentType {
		case "pdf":
			units, err = ingester.IngestPDF(sourceID, content)
			if err != nil {
				utils.RespondWithBadRequest(c, "Failed to extract text from PDF", err.Error())
				return
			}
		case "markdown":
			units = ingester.IngestMarkdown(sourceID, string(content))
		}

		if len(units) == 0 {
			utils.RespondWithBadRequest(c, "Document contains no extractable text", nil)
			return
		}

		src := &models.Source{
			ID:          sourceID,
			Name:        header.Filename,
			ContentType: contentType,
			Status:      models.SourceStatusIngested,
			UnitCount:   len(units),
			CreatedAt:   time.Now(),
		}

		ctx := c.Request.Context()
		if err := st.InsertSource(ctx, src); err != nil {
			utils.RespondWithInternalError(c, "Failed to store source", nil)
			return
		}
		if err := st.InsertUnits(ctx, units); err != nil {
			utils.RespondWithInternalError(c, "Failed to store text units", nil)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"source_id":  sourceID,
			"name":       header.Filename,
			"type":       contentType,
			"status":     src.Status,
			"unit_count": len(units),
			"created_at": src.CreatedAt,
		})
	}
}

// HandleGetSource returns one source with its lifecycle status.
func HandleGetSource(st *store.MongoStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		src, err := st.GetSource(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to retrieve source", nil)
			return
		}
		if src == nil {
			utils.RespondWithNotFound(c, "Source not found")
			return
		}
		c.JSON(http.StatusOK, src)
	}
}

// HandleListSources returns all sources, newest first.
func HandleListSources(st *store.MongoStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sources, err := st.ListSources(c.Request.Context())
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list sources", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sources": sources, "count": len(sources)})
	}
}

// HandleRunHistory returns the extraction run summaries of one source.
func HandleRunHistory(st *store.MongoStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := st.ListRunSummaries(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list runs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
	}
}

func detectContentType(filename, mimeType string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".pdf") || strings.Contains(mimeType, "pdf"):
		return "pdf"
	case strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown") ||
		strings.HasSuffix(name, ".txt") || strings.HasPrefix(mimeType, "text/"):
		return "markdown"
	default:
		return ""
	}
}
