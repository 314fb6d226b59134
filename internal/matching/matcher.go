// Package matching ranks uploaded résumés against a job description.
package matching

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/extract"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/similarity"
	"github.com/spigell/cv-matcher/internal/staging"
	"github.com/spigell/cv-matcher/internal/utils"
)

const (
	msgMissingJobDescription = "missing job description"
	msgMissingFiles          = "missing cv files"
	msgUnreadable            = "could not read uploaded file"
	msgExtractionFailed      = "could not extract text from file"
	msgEmbeddingFailed       = "could not embed file contents"
	msgScoringFailed         = "could not score file"

	defaultMaxLogLength = 200
)

// Extractor turns a staged document into plain text.
type Extractor interface {
	Extract(f extract.File) (string, error)
}

// Config holds the settings fixed at process start.
type Config struct {
	AllowedExtensions []string
	MaxLogLength      int
}

// Matcher drives extraction, embedding and scoring for one request at a time.
// It holds no per-request state and may be shared across requests.
type Matcher struct {
	embedder  embedding.Embedder
	extractor Extractor
	area      *staging.Area
	allowed   map[string]struct{}
	extList   []string
	maxLogLen int
	logger    *zap.Logger
}

func New(embedder embedding.Embedder, extractor Extractor, area *staging.Area, cfg Config, log *zap.Logger) (*Matcher, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if extractor == nil {
		return nil, errors.New("extractor is required")
	}
	if area == nil {
		return nil, errors.New("staging area is required")
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	extList := make([]string, 0, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, dup := allowed[ext]; dup {
			continue
		}
		allowed[ext] = struct{}{}
		extList = append(extList, ext)
	}
	if len(allowed) == 0 {
		return nil, errors.New("at least one allowed file extension is required")
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Matcher{
		embedder:  embedder,
		extractor: extractor,
		area:      area,
		allowed:   allowed,
		extList:   extList,
		maxLogLen: maxLogLen,
		logger:    logger.WithCommonFields(log, embedder.Provider(), embedder.Model()),
	}, nil
}

// WithLogger returns a copy of the matcher that logs to l.
func (m *Matcher) WithLogger(l *zap.Logger) *Matcher {
	c := *m
	c.logger = logger.WithCommonFields(l, m.embedder.Provider(), m.embedder.Model())
	return &c
}

func (m *Matcher) Provider() string { return m.embedder.Provider() }

func (m *Matcher) Model() string { return m.embedder.Model() }

// AllowedExtensions lists accepted file extensions without the leading dot.
func (m *Matcher) AllowedExtensions() []string {
	return append([]string(nil), m.extList...)
}

// Match validates the request, scores every upload in order and returns the
// results ranked by descending similarity with error entries last.
func (m *Matcher) Match(ctx context.Context, req *Request) ([]*Result, error) {
	if req == nil || strings.TrimSpace(req.JobDescription) == "" {
		return nil, &ValidationError{Field: "job_description", Message: msgMissingJobDescription}
	}

	// At least one named part is required; unnamed ones then fail the file type check.
	named := 0
	for _, upload := range req.Uploads {
		if strings.TrimSpace(upload.Filename) != "" {
			named++
		}
	}
	if named == 0 {
		return nil, &ValidationError{Field: "cv_files", Message: msgMissingFiles}
	}

	m.logger.Debug("embedding job description",
		zap.Int("job_description_length", utf8.RuneCountInString(req.JobDescription)),
		zap.String("job_description_preview", utils.TruncateForLog(req.JobDescription, m.maxLogLen)),
	)

	jobVector, err := m.embedder.Embed(ctx, req.JobDescription)
	if err != nil {
		return nil, fmt.Errorf("embed job description: %w", err)
	}

	results := make([]*Result, 0, len(req.Uploads))
	for _, upload := range req.Uploads {
		results = append(results, m.score(ctx, jobVector, upload))
	}

	Rank(results)

	summary := Summarize(results)
	m.logger.Info("match completed",
		zap.Int("files", summary.Files),
		zap.Int("scored", summary.Scored),
		zap.Int("failed", summary.Failed),
	)

	return results, nil
}

func (m *Matcher) score(ctx context.Context, jobVector embedding.Vector, upload Upload) *Result {
	name := displayName(upload.Filename)
	log := m.logger.With(zap.String(logger.FieldFilename, name))

	if !m.allowedFile(upload.Filename) {
		typeErr := &InvalidFileTypeError{Filename: name, Allowed: m.extList}
		log.Info("skipping file", zap.String("reason", typeErr.Error()))
		return &Result{Filename: name, Error: typeErr.Error()}
	}

	text, err := m.extractText(upload, log)
	if err != nil {
		var extractionErr *extract.ExtractionError
		if errors.As(err, &extractionErr) {
			log.Warn("text extraction failed", zap.Error(err))
			return &Result{Filename: name, Error: msgExtractionFailed}
		}
		log.Warn("reading upload failed", zap.Error(err))
		return &Result{Filename: name, Error: msgUnreadable}
	}

	log.Debug("text extracted",
		zap.Int("text_length", utf8.RuneCountInString(text)),
		zap.String("text_preview", utils.TruncateForLog(text, m.maxLogLen)),
	)

	vector, err := m.embedder.Embed(ctx, text)
	if err != nil {
		log.Warn("embedding failed", zap.Error(err))
		return &Result{Filename: name, Error: msgEmbeddingFailed}
	}

	raw, err := similarity.Cosine(jobVector, vector)
	if err != nil {
		log.Warn("scoring failed", zap.Error(err))
		return &Result{Filename: name, Error: msgScoringFailed}
	}

	log.Info("file scored", zap.Float64("raw_score", raw))

	return &Result{Filename: name, Score: similarity.Percent(raw), RawScore: &raw}
}

// extractText stages the upload and reads its text. The staged file is
// released before returning, whatever the outcome.
func (m *Matcher) extractText(upload Upload, log *zap.Logger) (string, error) {
	if upload.Open == nil {
		return "", errors.New("upload has no content")
	}

	src, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	staged, err := m.area.Stage(upload.Filename, src)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := staged.Release(); err != nil {
			log.Warn("releasing staged file failed", zap.String("path", staged.Path()), zap.Error(err))
		}
	}()

	return m.extractor.Extract(staged)
}

func (m *Matcher) allowedFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(displayName(name)), "."))
	if ext == "" {
		return false
	}
	_, ok := m.allowed[ext]
	return ok
}

// Rank orders results by raw score, highest first. Results without a score
// keep their relative order at the end.
func Rank(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Scored() != b.Scored() {
			return a.Scored()
		}
		if !a.Scored() {
			return false
		}
		return *a.RawScore > *b.RawScore
	})
}

// Summarize counts scored and failed results.
func Summarize(results []*Result) Summary {
	s := Summary{Files: len(results)}
	for _, r := range results {
		if r.Scored() {
			s.Scored++
		} else {
			s.Failed++
		}
	}
	return s
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(name, "\\", "/"))
}
