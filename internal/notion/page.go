package notion

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/screenpilot/cv-ranker/internal/candidate"
	"go.uber.org/zap"
)

type pageResponse struct {
	ID string `json:"id"`
}

// CreatePage inserts a new candidate record with its initial workflow status.
// fileUploadID optionally attaches the source CV; pass empty to skip.
func (c *Client) CreatePage(ctx context.Context, a *candidate.Assessment, fileUploadID string) (string, error) {
	properties := properties(a, fileUploadID)
	properties["Status"] = map[string]interface{}{
		"status": map[string]interface{}{"name": string(a.Status)},
	}

	payload := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": c.databaseID},
		"properties": properties,
	}

	var response pageResponse
	if err := c.postJSON(ctx, c.APIURL+"/v1/pages", payload, &response); err != nil {
		return "", fmt.Errorf("creating candidate page: %w", err)
	}

	c.logger.Debug("created candidate page",
		zap.String("page_id", response.ID),
		zap.String("name", a.Name),
	)

	return response.ID, nil
}

// UpdatePage overwrites an existing candidate record with a fresh assessment.
// Status is deliberately left untouched: an update must never regress a record
// a reviewer has already moved through the workflow.
func (c *Client) UpdatePage(ctx context.Context, pageID string, a *candidate.Assessment, fileUploadID string) error {
	payload := map[string]interface{}{
		"properties": properties(a, fileUploadID),
	}

	url := fmt.Sprintf("%s/v1/pages/%s", c.APIURL, pageID)
	if err := c.patchJSON(ctx, url, payload, nil); err != nil {
		return fmt.Errorf("updating candidate page %s: %w", pageID, err)
	}

	c.logger.Debug("updated candidate page",
		zap.String("page_id", pageID),
		zap.String("name", a.Name),
	)

	return nil
}

func properties(a *candidate.Assessment, fileUploadID string) map[string]interface{} {
	props := map[string]interface{}{
		"Name": map[string]interface{}{
			"title": []interface{}{richText(a.Name)},
		},
		"YOE": map[string]interface{}{
			"number": a.YearsOfExperience,
		},
		"Profile Summary": map[string]interface{}{
			"rich_text": []interface{}{richText(a.Summary)},
		},
		"Professional Skills": map[string]interface{}{
			"multi_select": multiSelect(a.ProfessionalSkills),
		},
		"Personal Skills": map[string]interface{}{
			"multi_select": multiSelect(a.PersonalSkills),
		},
		"Position Title": map[string]interface{}{
			"select": map[string]interface{}{"name": a.PositionTitle},
		},
		"Location": map[string]interface{}{
			"select": map[string]interface{}{"name": a.Location},
		},
		"Gender": map[string]interface{}{
			"select": map[string]interface{}{"name": a.Gender},
		},
		"Match Score": map[string]interface{}{
			"number": a.MatchScore,
		},
		"Ranking Category": map[string]interface{}{
			"select": map[string]interface{}{"name": string(a.Ranking)},
		},
		"AI Ranking Reason": map[string]interface{}{
			"rich_text": []interface{}{richText(a.RankingReason)},
		},
		"Processing Date": map[string]interface{}{
			"date": map[string]interface{}{"start": a.ProcessedAt.Format(time.RFC3339)},
		},
	}

	// Typed properties reject placeholder text, so unknown values are omitted
	// and the column stays empty.
	if a.Email != "" && a.Email != candidate.Unknown {
		props["Email"] = map[string]interface{}{"email": a.Email}
	}
	if a.Phone != candidate.Unknown {
		props["Phone"] = map[string]interface{}{"phone_number": a.Phone}
	}
	if a.LinkedinURL != candidate.Unknown {
		props["Linkedin"] = map[string]interface{}{"url": a.LinkedinURL}
	}
	if a.DateOfBirth != candidate.Unknown {
		props["DOB"] = map[string]interface{}{
			"date": map[string]interface{}{"start": a.DateOfBirth},
		}
	}
	if fileUploadID != "" {
		props["CV File"] = map[string]interface{}{
			"files": []interface{}{
				map[string]interface{}{
					"type":        "file_upload",
					"name":        filepath.Base(a.SourceFile),
					"file_upload": map[string]interface{}{"id": fileUploadID},
				},
			},
		}
	}

	return props
}

func richText(content string) map[string]interface{} {
	return map[string]interface{}{
		"text": map[string]interface{}{"content": truncateText(content)},
	}
}

func multiSelect(options []string) []interface{} {
	result := make([]interface{}, 0, len(options))
	for _, option := range options {
		result = append(result, map[string]interface{}{"name": option})
	}
	return result
}

// Notion caps a single rich_text block at 2000 characters.
func truncateText(s string) string {
	const limit = 2000
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
