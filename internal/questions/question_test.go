package questions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func validQuestion() Question {
	return Question{
		Type:    "multiple_choice",
		Prompt:  "Which planet is closest to the sun?",
		Options: map[string]string{"a": "Mercury", "b": "Venus"},
		Correct: "a",
	}
}

func TestIsCorrect(t *testing.T) {
	q := validQuestion()

	if !q.IsCorrect("a") {
		t.Fatal("expected matching answer to be correct")
	}
	if q.IsCorrect("b") {
		t.Fatal("expected non-matching answer to be incorrect")
	}
	if q.IsCorrect("") {
		t.Fatal("an empty answer must never count as correct")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(nil); err != ErrNoQuestions {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if err := Validate([]Question{validQuestion()}); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}

	noPrompt := validQuestion()
	noPrompt.Prompt = ""
	if err := Validate([]Question{noPrompt}); err == nil {
		t.Fatal("expected error for empty prompt")
	}

	oneOption := validQuestion()
	oneOption.Options = map[string]string{"a": "Mercury"}
	if err := Validate([]Question{oneOption}); err == nil {
		t.Fatal("expected error for a single option")
	}

	danglingKey := validQuestion()
	danglingKey.Correct = "z"
	if err := Validate([]Question{danglingKey}); err == nil {
		t.Fatal("expected error for a correct answer outside the options")
	}
}

func TestFileSourceLoad(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"questions": [
			{
				"type": "multiple_choice",
				"question": "Which planet is closest to the sun?",
				"options": {"a": "Mercury", "b": "Venus"},
				"correctAnswer": "a"
			}
		],
		"metadata": {"totalQuestions": 1, "version": "1.0"}
	}`
	if err := os.WriteFile(filepath.Join(dir, "astronomy.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	src := NewFileSource(dir)
	qs, err := src.Load(context.Background(), "astronomy")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(qs) != 1 || qs[0].Correct != "a" {
		t.Fatalf("unexpected questions: %+v", qs)
	}

	if _, err := src.Load(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown quiz ID")
	}
}

func TestFileSourceRejectsInvalidSet(t *testing.T) {
	dir := t.TempDir()
	doc := `{"questions": [{"question": "", "options": {}, "correctAnswer": ""}]}`
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(doc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := NewFileSource(dir).Load(context.Background(), "broken"); err == nil {
		t.Fatal("expected validation error")
	}
}
