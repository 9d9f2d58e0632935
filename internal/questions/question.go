package questions

import (
	"errors"
	"fmt"
)

// Question is a single quiz question. The content collaborator supplies
// questions at room creation time; the engine never mutates them.
type Question struct {
	Type        string            `json:"type"`
	Prompt      string            `json:"question"`
	Options     map[string]string `json:"options"`
	Correct     string            `json:"correctAnswer"`
	Explanation string            `json:"explanation,omitempty"`
}

// IsCorrect reports whether the given answer matches the question's correct
// answer. Correctness is always recomputed here on the server; any verdict a
// client sends along with its answer is ignored.
func (q Question) IsCorrect(answer string) bool {
	return answer != "" && answer == q.Correct
}

var ErrNoQuestions = errors.New("question set is empty")

// Validate checks a question set for structural problems before a room
// accepts it.
func Validate(qs []Question) error {
	if len(qs) == 0 {
		return ErrNoQuestions
	}
	for i, q := range qs {
		if q.Prompt == "" {
			return fmt.Errorf("question %d: empty prompt", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: needs at least 2 options, got %d", i, len(q.Options))
		}
		if q.Correct == "" {
			return fmt.Errorf("question %d: missing correct answer", i)
		}
		if _, ok := q.Options[q.Correct]; !ok {
			return fmt.Errorf("question %d: correct answer %q not among options", i, q.Correct)
		}
	}
	return nil
}
