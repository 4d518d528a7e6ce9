package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
	"github.com/joseph-ayodele/form16-extractor/internal/pipeline"
)

// Processor is the pipeline as seen by transports.
type Processor interface {
	Process(ctx context.Context, doc pipeline.UploadedDocument) (llm.FormFields, error)
}

// Exporter renders the journal; nil disables the export route.
type Exporter interface {
	JournalXLSX(ctx context.Context, from, to *time.Time) ([]byte, error)
}

// HealthChecker probes a backing dependency for /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type HTTPConfig struct {
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigin     string
	Health         HealthChecker // optional
}

// routeMessages are the client-facing error bodies of one route.
type routeMessages struct {
	notRecognized string
	failure       string
}

var (
	pdfMessages     = routeMessages{notRecognized: "The document is not a form-16", failure: "Error processing PDF"}
	imageMessages   = routeMessages{notRecognized: "The image is not a form-16", failure: "Internal Server Error"}
	genericMessages = routeMessages{notRecognized: "form not recognized", failure: "processing failed"}
)

func (m routeMessages) forError(err error) string {
	var appErr *common.AppError
	switch {
	case errors.Is(err, common.ErrParse):
		return m.notRecognized
	case errors.Is(err, common.ErrUnsupportedType), errors.Is(err, common.ErrInvalidInput):
		if errors.As(err, &appErr) {
			return appErr.Message
		}
		return err.Error()
	default:
		return m.failure
	}
}

type handler struct {
	proc     Processor
	exporter Exporter
	checker  HealthChecker
	logger   *zap.Logger
}

// NewRouter wires the upload routes, health and journal export.
func NewRouter(proc Processor, exp Exporter, cfg HTTPConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestContext(logger), corsMiddleware(cfg.CORSOrigin))

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	h := &handler{proc: proc, exporter: exp, checker: cfg.Health, logger: logger}
	r.GET("/health", h.health)

	uploads := r.Group("/", rateLimit(limiter), bodyLimit(cfg.MaxUploadBytes))
	uploads.POST("/upload", h.upload("pdfFile", constants.PDF, pdfMessages))
	uploads.POST("/askAboutImages", h.upload("image", constants.IMAGE, imageMessages))
	uploads.POST("/api/v1/extract", h.upload("file", "", genericMessages))

	if exp != nil {
		r.GET("/api/v1/journal/export", h.exportJournal)
	}
	return r
}

func (h *handler) health(c *gin.Context) {
	if h.checker != nil {
		if err := h.checker.HealthCheck(c.Request.Context(), 2*time.Second); err != nil {
			common.LoggerFromContext(c.Request.Context(), h.logger).Warn("http.health.degraded", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "journal": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) upload(field string, kind constants.InputKind, msgs routeMessages) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := common.LoggerFromContext(c.Request.Context(), h.logger)

		fh, err := c.FormFile(field)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit)})
				return
			}
			log.Warn("http.upload.missing_file", zap.String("field", field), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded in field " + field})
			return
		}

		f, err := fh.Open()
		if err != nil {
			log.Error("http.upload.open_error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgs.failure})
			return
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			log.Error("http.upload.read_error", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgs.failure})
			return
		}

		fields, err := h.proc.Process(c.Request.Context(), pipeline.UploadedDocument{
			Content:  content,
			MIMEType: fh.Header.Get("Content-Type"),
			Filename: fh.Filename,
			Kind:     kind,
		})
		if err != nil {
			c.JSON(common.HTTPStatus(err), gin.H{"error": msgs.forError(err)})
			return
		}
		c.JSON(http.StatusOK, fields)
	}
}

// exportJournal serves the journal as XLSX.
// Query: from, to as YYYY-MM-DD, both optional.
func (h *handler) exportJournal(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
		return
	}

	xlsx, err := h.exporter.JournalXLSX(c.Request.Context(), from, to)
	if err != nil {
		common.LoggerFromContext(c.Request.Context(), h.logger).Error("export.xlsx.failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="journal.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsx)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
