package candidate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/screenpilot/cv-ranker/internal/ai"
)

// Unknown marks optional fields the model could not determine. The store
// renders it as-is, so downstream never has to deal with empty selects.
const Unknown = "N/A"

// ErrInvalidAssessment is returned when a normalized evaluation carries
// neither a candidate name nor an email, leaving nothing to key the record on.
var ErrInvalidAssessment = errors.New("assessment has no name and no email")

// Ranking is the fixed tier a candidate lands in after scoring.
type Ranking string

const (
	RankingNoFit     Ranking = "No Fit"
	RankingLowFit    Ranking = "Low Fit"
	RankingMediumFit Ranking = "Medium Fit"
	RankingHighFit   Ranking = "High Fit"
)

// Status mirrors the store's review workflow states.
type Status string

const (
	StatusTodo        Status = "Todo"
	StatusInProgress  Status = "In Progress"
	StatusShortlisted Status = "Shortlisted"
	StatusRejected    Status = "Rejected"
	StatusDone        Status = "Done"
)

// StatusGroup is the meta-state a status belongs to in the store.
type StatusGroup string

const (
	GroupTodo       StatusGroup = "To-do"
	GroupInProgress StatusGroup = "In progress"
	GroupComplete   StatusGroup = "Complete"
)

// Group returns the meta-state of the status.
func (s Status) Group() StatusGroup {
	switch s {
	case StatusTodo:
		return GroupTodo
	case StatusInProgress:
		return GroupInProgress
	default:
		return GroupComplete
	}
}

// Assessment is the normalized, validated evaluation of one candidate against
// one position. It is read-only once built.
type Assessment struct {
	Name               string
	Email              string
	Phone              string
	Gender             string
	LinkedinURL        string
	DateOfBirth        string
	YearsOfExperience  int
	Summary            string
	ProfessionalSkills []string
	PersonalSkills     []string
	SourceFile         string
	PositionTitle      string
	Location           string
	MatchScore         float64
	Ranking            Ranking
	RankingReason      string
	ProcessedAt        time.Time
	Status             Status
}

// Key returns the natural key used for duplicate detection across runs:
// the normalized (name, email) pair. A resubmitted CV under a different
// filename therefore updates the existing record instead of duplicating it.
func (a *Assessment) Key() string {
	return fmt.Sprintf("%s|%s", strings.ToLower(strings.TrimSpace(a.Name)), strings.ToLower(strings.TrimSpace(a.Email)))
}

// FromEvaluation normalizes a raw model evaluation into an assessment. It is
// pure: trims strings, defaults empty optionals to Unknown, clamps the match
// score into [0,100], floors years of experience at zero, cleans the skill
// tags, and maps the ranking label onto the fixed tier set. The only failure
// is a structurally unusable record with neither name nor email.
func FromEvaluation(ev *ai.Evaluation, sourceFile, positionTitle string, now time.Time) (*Assessment, error) {
	if ev == nil {
		return nil, ErrInvalidAssessment
	}

	score := clampScore(ev.MatchScore)

	yoe := int(ev.YearsOfExperience)
	if yoe < 0 {
		yoe = 0
	}

	position := orUnknown(positionTitle)
	if position == Unknown {
		position = orUnknown(ev.JobPositionTitle)
	}

	a := &Assessment{
		Name: normalizeIdentity(ev.FullName),
		// Stored lowercase so store lookups by email always agree with the
		// natural key, whatever casing the model emitted.
		Email:              strings.ToLower(normalizeIdentity(ev.Email)),
		Phone:              orUnknown(ev.ContactNumber),
		Gender:             orUnknown(ev.Gender),
		LinkedinURL:        orUnknown(ev.LinkedinURL),
		DateOfBirth:        orUnknown(ev.DateOfBirth),
		YearsOfExperience:  yoe,
		Summary:            strings.TrimSpace(ev.ExperienceSummary),
		ProfessionalSkills: cleanSkills(ev.ProfessionalSkills),
		PersonalSkills:     cleanSkills(ev.PersonalSkills),
		SourceFile:         strings.TrimSpace(sourceFile),
		PositionTitle:      position,
		Location:           orUnknown(ev.JobLocation),
		MatchScore:         score,
		Ranking:            mapRanking(ev.RankingCategory, score),
		RankingReason:      strings.TrimSpace(ev.RankingReason),
		ProcessedAt:        now,
		Status:             StatusTodo,
	}

	if a.Name == "" && a.Email == "" {
		return nil, ErrInvalidAssessment
	}

	return a, nil
}

// normalizeIdentity trims a key field and collapses the model's explicit
// "not found" marker to empty, so validation sees absence as absence.
func normalizeIdentity(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, Unknown) {
		return ""
	}
	return s
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return Unknown
	}
	return s
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// cleanSkills trims, dedupes, and strips embedded commas from skill tags.
// The store's multi-select treats commas as option separators.
func cleanSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	cleaned := make([]string, 0, len(skills))

	for _, skill := range skills {
		skill = strings.TrimSpace(strings.ReplaceAll(skill, ",", " "))
		skill = strings.Join(strings.Fields(skill), " ")
		if skill == "" {
			continue
		}

		lowered := strings.ToLower(skill)
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		cleaned = append(cleaned, skill)
	}

	return cleaned
}

// mapRanking maps a free-text ranking label onto the fixed tier set.
// Unrecognized labels fall back to the tier implied by the clamped score
// rather than being dropped.
func mapRanking(label string, score float64) Ranking {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "high fit", "high":
		return RankingHighFit
	case "medium fit", "medium", "moderate":
		return RankingMediumFit
	case "low fit", "low", "weak":
		return RankingLowFit
	case "no fit", "none":
		return RankingNoFit
	}

	switch {
	case score >= 80:
		return RankingHighFit
	case score >= 55:
		return RankingMediumFit
	case score > 0:
		return RankingLowFit
	default:
		return RankingNoFit
	}
}
