package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// Source supplies the immutable question list for a quiz.
type Source interface {
	Load(ctx context.Context, quizID string) ([]Question, error)
}

// Document is the JSON layout produced by the content collaborator.
type Document struct {
	Questions []Question `json:"questions"`
	Metadata  struct {
		Total       int    `json:"totalQuestions"`
		Version     string `json:"version"`
		LastUpdated string `json:"lastUpdated"`
		Description string `json:"description"`
	} `json:"metadata"`
}

// FileSource loads question documents from a directory, one JSON file per
// quiz ID.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) Load(ctx context.Context, quizID string) ([]Question, error) {
	path := fmt.Sprintf("%s/%s.json", s.dir, quizID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse question file %s: %w", path, err)
	}

	if err := Validate(doc.Questions); err != nil {
		return nil, fmt.Errorf("invalid question set %s: %w", quizID, err)
	}

	log.Debug().
		Str("quiz_id", quizID).
		Int("questions", len(doc.Questions)).
		Msg("loaded question set")

	return doc.Questions, nil
}
