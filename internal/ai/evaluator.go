package ai

import (
	"context"
	"errors"
	"fmt"
)

// Request carries one candidate resume to be scored against one job description.
type Request struct {
	PositionTitle string
	JobText       string
	ResumeText    string
}

// Evaluation is the raw structured output of the model for a single candidate,
// prior to normalization into a candidate assessment.
type Evaluation struct {
	FullName           string   `json:"full_name"`
	Email              string   `json:"email"`
	ContactNumber      string   `json:"contact_number"`
	LinkedinURL        string   `json:"linkedin_url"`
	Gender             string   `json:"gender"`
	DateOfBirth        string   `json:"date_of_birth"`
	YearsOfExperience  float64  `json:"years_of_experience"`
	PersonalSkills     []string `json:"personal_skills"`
	ProfessionalSkills []string `json:"professional_skills"`
	ExperienceSummary  string   `json:"experience_summary"`
	MatchScore         float64  `json:"match_score"`
	RankingCategory    string   `json:"ranking_category"`
	RankingReason      string   `json:"ranking_reason"`
	JobLocation        string   `json:"job_location"`
	JobPositionTitle   string   `json:"job_position_title"`
}

// Evaluator scores one resume against one job description. Implementations
// are stateless between calls and perform no internal retries; retry policy
// belongs to the caller.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (*Evaluation, error)
}

// ErrorKind classifies evaluation failures.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindTransport   ErrorKind = "transport"
	KindMalformed   ErrorKind = "malformed_response"
)

// Error is an evaluation failure carrying its transiency classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure may clear on a retry. A malformed
// response never does: resending the same prompt cannot fix a schema violation
// deterministically, and retrying it only burns quota.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransport
}

// KindOf extracts the classification from an evaluation error chain. It
// returns an empty kind for errors that did not originate in an evaluator.
func KindOf(err error) ErrorKind {
	var evalErr *Error
	if errors.As(err, &evalErr) {
		return evalErr.Kind
	}
	return ""
}

// IsRetryable reports whether the error chain contains a retryable
// evaluation failure.
func IsRetryable(err error) bool {
	var evalErr *Error
	return errors.As(err, &evalErr) && evalErr.Retryable()
}
