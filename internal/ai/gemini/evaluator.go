package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"github.com/screenpilot/cv-ranker/internal/ai"
	"github.com/screenpilot/cv-ranker/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength   = 200
	defaultRequestTimeout = 90 * time.Second

	systemInstruction = "You are an expert AI recruitment analyzer. You meticulously parse a " +
		"candidate CV against a job description, extract key candidate information, determine " +
		"a match score with a ranking category, and reply with a single valid JSON object only."
)

// requiredKeys must all be present in the model's response for it to be
// accepted. Anything less fails closed instead of producing a partial record.
var requiredKeys = []string{
	"full_name",
	"email",
	"experience_summary",
	"match_score",
	"ranking_category",
	"ranking_reason",
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"full_name":           {Type: genai.TypeString},
		"email":               {Type: genai.TypeString},
		"contact_number":      {Type: genai.TypeString},
		"linkedin_url":        {Type: genai.TypeString},
		"gender":              {Type: genai.TypeString, Enum: []string{"Male", "Female", "N/A"}},
		"date_of_birth":       {Type: genai.TypeString},
		"years_of_experience": {Type: genai.TypeNumber},
		"personal_skills":     {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"professional_skills": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"experience_summary":  {Type: genai.TypeString},
		"match_score":         {Type: genai.TypeNumber},
		"ranking_category":    {Type: genai.TypeString, Enum: []string{"High Fit", "Medium Fit", "Low Fit", "No Fit"}},
		"ranking_reason":      {Type: genai.TypeString},
		"job_location":        {Type: genai.TypeString},
		"job_position_title":  {Type: genai.TypeString},
	},
	Required: []string{"full_name", "email", "experience_summary", "match_score", "ranking_category", "ranking_reason"},
}

// Config carries the caller-tunable knobs of the evaluator.
type Config struct {
	// Temperature of the generation, default 0 for reproducible scoring.
	Temperature float64
	// RequestTimeout bounds a single API call.
	RequestTimeout time.Duration
	// MaxLogLength caps prompt/response previews in debug logs.
	MaxLogLength int
}

// Evaluator scores resumes against job descriptions through the Gemini API.
// It keeps no state between calls and never retries on its own.
type Evaluator struct {
	generator   contentGenerator
	log         *zap.Logger
	temperature float64
	timeout     time.Duration
	maxLogLen   int
}

func NewEvaluator(generator contentGenerator, log *zap.Logger, cfg Config) *Evaluator {
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Evaluator{
		generator:   generator,
		log:         log,
		temperature: cfg.Temperature,
		timeout:     cfg.RequestTimeout,
		maxLogLen:   cfg.MaxLogLength,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, req ai.Request) (*ai.Evaluation, error) {
	if strings.TrimSpace(req.JobText) == "" {
		return nil, fmt.Errorf("job description text is required")
	}
	if strings.TrimSpace(req.ResumeText) == "" {
		return nil, fmt.Errorf("resume text is required")
	}

	prompt := buildPrompt(req)

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(e.temperature)),
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.log.Debug("gemini generate content request",
		zap.String("position", req.PositionTitle),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt, config)
	if err != nil {
		return nil, classify(err)
	}

	e.log.Debug("gemini generate content response",
		zap.String("position", req.PositionTitle),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	return parseResponse(raw)
}

func buildPrompt(req ai.Request) string {
	position := strings.TrimSpace(req.PositionTitle)
	if position == "" {
		position = "N/A"
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{POSITION_TITLE}}", position)
	prompt = strings.ReplaceAll(prompt, "{{JD_TEXT}}", req.JobText)
	prompt = strings.ReplaceAll(prompt, "{{CV_TEXT}}", req.ResumeText)
	return prompt
}

// parseResponse decodes the model output into an evaluation. It fails closed:
// unknown keys, wrong types, missing required fields, and trailing content all
// reject the response instead of coercing it into a partial record.
func parseResponse(raw string) (*ai.Evaluation, error) {
	cleaned := extractJSON(raw)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()

	var evaluation ai.Evaluation
	if err := dec.Decode(&evaluation); err != nil {
		return nil, ai.NewError(ai.KindMalformed, fmt.Errorf("parse gemini response: %w", err))
	}

	if dec.More() {
		return nil, ai.NewError(ai.KindMalformed, errors.New("trailing content after response object"))
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &present); err != nil {
		return nil, ai.NewError(ai.KindMalformed, fmt.Errorf("parse gemini response: %w", err))
	}

	for _, key := range requiredKeys {
		if _, ok := present[key]; !ok {
			return nil, ai.NewError(ai.KindMalformed, fmt.Errorf("response is missing required field %q", key))
		}
	}

	return &evaluation, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// classify maps transport-level failures onto the evaluation error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.NewError(ai.KindTimeout, err)
	}

	if errors.Is(err, ErrEmptyResponse) {
		return ai.NewError(ai.KindMalformed, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return ai.NewError(ai.KindRateLimited, err)
		}
		if apiErr.Code >= http.StatusInternalServerError {
			return ai.NewError(ai.KindTransport, err)
		}
	}

	return ai.NewError(ai.KindTransport, err)
}
