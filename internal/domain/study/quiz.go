package study

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
	QuestionShortAnswer    QuestionType = "short-answer"
)

type QuizQuestion struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer"`
	Explanation   string       `json:"explanation"`
	Points        int          `json:"points"`
}

type Quiz struct {
	ID         string         `json:"id"`
	Topic      string         `json:"topic"`
	Difficulty Difficulty     `json:"difficulty"`
	Questions  []QuizQuestion `json:"questions"`
	CreatedAt  int64          `json:"createdAt"`
}

func (q Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

type QuizResult struct {
	QuizID      string            `json:"quizId"`
	Score       int               `json:"score"`
	MaxScore    int               `json:"maxScore"`
	Percentage  float64           `json:"percentage"`
	CompletedAt int64             `json:"completedAt"`
	Answers     map[string]string `json:"answers"`
}
