package quizcodec

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/studyloop/studyloop-backend/internal/domain/study"
)

func TestParse_ExtractsEmbeddedObject(t *testing.T) {
	raw := "Sure! Here is your quiz:\n" +
		`{"questions":[{"id":"q1","question":"X?","type":"true-false","correctAnswer":"True","explanation":"E","points":10}]}` +
		"\nLet me know if you need more."

	got := Parse(raw, 5, "Physics", nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 question, got %d", len(got))
	}
	q := got[0]
	if q.ID != "q1" || q.Question != "X?" || q.Type != study.QuestionTrueFalse {
		t.Fatalf("question mutated: %+v", q)
	}
	if q.CorrectAnswer != "True" || q.Explanation != "E" || q.Points != 10 {
		t.Fatalf("question mutated: %+v", q)
	}
}

func TestParse_UnparsableTextFallsBack(t *testing.T) {
	concepts := []string{"forces", "energy", "momentum"}
	got := Parse("I could not generate a quiz this time.", 8, "Physics", concepts)
	if len(got) != 5 {
		t.Fatalf("expected min(8,5)=5 fallback questions, got %d", len(got))
	}
	for i, q := range got {
		want := fmt.Sprintf("Explain your understanding of %s", concepts[i%len(concepts)])
		if q.Question != want {
			t.Fatalf("question %d: got %q want %q", i, q.Question, want)
		}
		if q.Type != study.QuestionShortAnswer || q.Points != 10 {
			t.Fatalf("fallback question %d not normalized: %+v", i, q)
		}
	}
}

func TestParse_FallbackUsesTopicWhenNoConcepts(t *testing.T) {
	got := Parse("{not json", 2, "Calculus", nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got))
	}
	if got[0].Question != "Explain your understanding of Calculus" {
		t.Fatalf("expected topic fallback, got %q", got[0].Question)
	}
}

func TestParse_MissingQuestionsFieldFallsBack(t *testing.T) {
	got := Parse(`{"items":[{"question":"X?"}]}`, 3, "Biology", []string{"cells"})
	if len(got) != 3 {
		t.Fatalf("expected 3 fallback questions, got %d", len(got))
	}
	if got[0].Question != "Explain your understanding of cells" {
		t.Fatalf("unexpected fallback question: %q", got[0].Question)
	}
}

func TestParse_QuestionsNotASequenceFallsBack(t *testing.T) {
	got := Parse(`{"questions":"none"}`, 1, "Biology", nil)
	if len(got) != 1 || got[0].Question != "Explain your understanding of Biology" {
		t.Fatalf("expected fallback, got %+v", got)
	}
}

func TestParse_DiscardsIncompleteAndNumbersValidated(t *testing.T) {
	raw := `{"questions":[
		{"question":"A?","correctAnswer":"a"},
		{"question":"B?","correctAnswer":"b","explanation":"eb"},
		{"question":"C?","correctAnswer":"c","explanation":"ec"}
	]}`
	got := Parse(raw, 10, "t", nil)
	if len(got) != 2 {
		t.Fatalf("expected 2 validated questions, got %d", len(got))
	}
	if got[0].ID != "q1" || got[1].ID != "q2" {
		t.Fatalf("synthetic ids must number validated questions: %q %q", got[0].ID, got[1].ID)
	}
	if got[0].Question != "B?" {
		t.Fatalf("first validated question should be B?, got %q", got[0].Question)
	}
}

func TestParse_DefaultsTypeAndPoints(t *testing.T) {
	raw := `{"questions":[{"question":"A?","correctAnswer":"a","explanation":"e","type":"essay","points":0}]}`
	got := Parse(raw, 1, "t", nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 question, got %d", len(got))
	}
	if got[0].Type != study.QuestionShortAnswer {
		t.Fatalf("unknown type should coerce to short-answer, got %q", got[0].Type)
	}
	if got[0].Points != 10 {
		t.Fatalf("non-positive points should default to 10, got %d", got[0].Points)
	}
}

func TestParse_TruncatesToRequestedCount(t *testing.T) {
	raw := `{"questions":[
		{"question":"A?","correctAnswer":"a","explanation":"e"},
		{"question":"B?","correctAnswer":"b","explanation":"e"},
		{"question":"C?","correctAnswer":"c","explanation":"e"}
	]}`
	got := Parse(raw, 2, "t", nil)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
}

func TestParse_DropsOptionsForNonMultipleChoice(t *testing.T) {
	raw := `{"questions":[{"question":"A?","correctAnswer":"a","explanation":"e","type":"true-false","options":["True","False","Maybe"]}]}`
	got := Parse(raw, 1, "t", nil)
	if len(got) != 1 || got[0].Options != nil {
		t.Fatalf("options should only survive on multiple-choice: %+v", got)
	}
}

func TestExtractObject_BalancedNestedBraces(t *testing.T) {
	raw := `prefix {"questions":[{"question":"has } inside","correctAnswer":"a","explanation":"{e}"}]} suffix {}`
	blob, ok := extractObject(raw)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if blob[0] != '{' || blob[len(blob)-1] != '}' {
		t.Fatalf("blob not an object: %q", blob)
	}
	got := Parse(raw, 5, "t", nil)
	if len(got) != 1 || got[0].Question != "has } inside" {
		t.Fatalf("brace inside string broke extraction: %+v", got)
	}
}

func TestFallback_Deterministic(t *testing.T) {
	a := Fallback(4, "Chemistry", []string{"acids", "bases"})
	b := Fallback(4, "Chemistry", []string{"acids", "bases"})
	if len(a) != len(b) {
		t.Fatalf("lengths differ")
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			t.Fatalf("fallback not deterministic at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
