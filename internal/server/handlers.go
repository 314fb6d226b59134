package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/matching"
)

const (
	fieldJobDescription = "job_description"
	fieldFiles          = "cv_files"

	// Parts above this size spill to temp files owned by net/http.
	multipartMemory = 8 << 20

	msgTooLarge      = "upload too large"
	msgMalformedForm = "malformed form data"
	msgMatchFailed   = "matching failed"
)

type errorResponse struct {
	Error string `json:"error"`
}

type matchResponse struct {
	Results []*matching.Result `json:"results"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Extensions": s.matcher.AllowedExtensions(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Provider: s.matcher.Provider(),
		Model:    s.matcher.Model(),
	})
}

func (s *Server) handleMatch(c *gin.Context) {
	log := requestLogger(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadSize)

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("rejecting request", zap.Int64("limit", tooLarge.Limit), zap.Error(err))
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: msgTooLarge})
			return
		}

		log.Warn("rejecting request", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse{Error: msgMalformedForm})
		return
	}

	if form := c.Request.MultipartForm; form != nil {
		defer func() {
			if err := form.RemoveAll(); err != nil {
				log.Warn("removing multipart temp files failed", zap.Error(err))
			}
		}()
	}

	req := &matching.Request{
		JobDescription: c.Request.PostFormValue(fieldJobDescription),
		Uploads:        uploadsFromForm(c.Request),
	}

	results, err := s.matcher.WithLogger(log).Match(c.Request.Context(), req)
	if err != nil {
		var validationErr *matching.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
			return
		}

		log.Error("match failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: msgMatchFailed})
		return
	}

	c.JSON(http.StatusOK, matchResponse{Results: results})
}

func uploadsFromForm(r *http.Request) []matching.Upload {
	if r.MultipartForm == nil {
		return nil
	}

	headers := r.MultipartForm.File[fieldFiles]
	uploads := make([]matching.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, matching.Upload{
			Filename: fh.Filename,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}

	return uploads
}
