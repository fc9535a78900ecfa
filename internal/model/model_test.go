package model

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	answer := true
	tests := []struct {
		name     string
		q        Question
		wantCode ValidationCode
	}{
		{"valid mcq", Question{Type: TypeMCQ, Stem: "x", Choices: []string{"A) a", "B) b"}, AnswerIndex: 1}, ""},
		{"mcq no choices", Question{Type: TypeMCQ, Stem: "x", Choices: []string{}}, IncompleteChoice},
		{"mcq answer out of range", Question{Type: TypeMCQ, Stem: "x", Choices: []string{"A) a"}, AnswerIndex: 3}, IncompleteChoice},
		{"mcq negative answer", Question{Type: TypeMCQ, Stem: "x", Choices: []string{"A) a"}, AnswerIndex: -1}, IncompleteChoice},
		{"empty stem", Question{Type: TypeTrueFalse, Answer: &answer}, MissingStem},
		{"true_false permissive", Question{Type: TypeTrueFalse, Stem: "x"}, ""},
		{"short_answer permissive", Question{Type: TypeShortAnswer, Stem: "x"}, ""},
		{"scenario permissive", Question{Type: TypeScenario, Stem: "x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", verr.Code, tt.wantCode)
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		total   int
		want    float64
		wantErr bool
	}{
		{"three of four", 3, 4, 75.0, false},
		{"all correct", 5, 5, 100.0, false},
		{"none correct", 0, 5, 0.0, false},
		{"rounds to two decimals", 1, 3, 33.33, false},
		{"two thirds", 2, 3, 66.67, false},
		{"zero total", 3, 0, 0, true},
		{"negative total", 1, -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.correct, tt.total)
			if tt.wantErr {
				if !errors.Is(err, ErrNoQuestions) {
					t.Fatalf("error = %v, want ErrNoQuestions", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if got != tt.want {
				t.Errorf("Score(%d, %d) = %v, want %v", tt.correct, tt.total, got, tt.want)
			}
		})
	}
}

func TestRandomTopicFallsBackToDefaults(t *testing.T) {
	topic := RandomTopic(nil)
	found := false
	for _, dt := range DefaultTopics {
		if topic == dt {
			found = true
		}
	}
	if !found {
		t.Errorf("RandomTopic(nil) = %q, not in DefaultTopics", topic)
	}

	topic = RandomTopic([]string{"only"})
	if topic != "only" {
		t.Errorf("RandomTopic([only]) = %q", topic)
	}
}

func TestValidTypeAndLevel(t *testing.T) {
	if !ValidType(TypeMCQ) || !ValidType(TypeOpenEnded) {
		t.Error("known types reported invalid")
	}
	if ValidType("essay") {
		t.Error("unknown type reported valid")
	}
	if !ValidLevel(LevelAdvanced) {
		t.Error("known level reported invalid")
	}
	if ValidLevel("expert") {
		t.Error("unknown level reported valid")
	}
}
