package llm

import (
	"strings"
	"testing"

	"github.com/furkankasim16/knowledge-bot/internal/model"
)

func TestBuildPromptSchemaPerType(t *testing.T) {
	tests := []struct {
		qtype      model.QuestionType
		mustHave   []string
		mustNotHav []string
	}{
		{model.TypeMCQ, []string{`"choices"`, `"answer_index"`}, []string{`"expected"`, `"rubric"`}},
		{model.TypeTrueFalse, []string{`"answer"`}, []string{`"choices"`, `"expected_points"`}},
		{model.TypeShortAnswer, []string{`"expected"`}, []string{`"choices"`, `"rubric"`}},
		{model.TypeScenario, []string{`"expected_points"`, `"rubric"`}, []string{`"choices"`, `"answer_index"`}},
		{model.TypeOpenEnded, []string{`"expected"`}, []string{`"choices"`}},
	}

	for _, tt := range tests {
		t.Run(string(tt.qtype), func(t *testing.T) {
			prompt := BuildPrompt("support_flow", model.LevelIntermediate, tt.qtype, "some passages", "")
			for _, want := range tt.mustHave {
				if !strings.Contains(prompt, want) {
					t.Errorf("prompt should contain %s", want)
				}
			}
			for _, not := range tt.mustNotHav {
				if strings.Contains(prompt, not) {
					t.Errorf("prompt should not contain %s", not)
				}
			}
		})
	}
}

func TestBuildPromptCommonParts(t *testing.T) {
	prompt := BuildPrompt("security_policy", model.LevelAdvanced, model.TypeMCQ, "PASSAGE-BODY", "")

	if !strings.Contains(prompt, "security_policy") {
		t.Error("prompt should name the topic")
	}
	if !strings.Contains(prompt, "advanced") {
		t.Error("prompt should name the level")
	}
	if !strings.Contains(prompt, "PASSAGE-BODY") {
		t.Error("prompt should embed the passages")
	}
	if !strings.Contains(prompt, DeclineSentinel) {
		t.Error("prompt should include the decline sentinel instruction")
	}
	if !strings.Contains(prompt, DefaultLanguage) {
		t.Error("empty language should fall back to the default")
	}
	if !strings.Contains(prompt, "rationale") {
		t.Error("prompt should require a rationale")
	}
}

func TestBuildPromptLanguageOverride(t *testing.T) {
	prompt := BuildPrompt("product_basics", model.LevelBeginner, model.TypeTrueFalse, "", "Turkish")
	if !strings.Contains(prompt, "MUST be in Turkish") {
		t.Error("prompt should carry the configured language")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	a := BuildPrompt("support_flow", model.LevelBeginner, model.TypeScenario, "ctx", "English")
	b := BuildPrompt("support_flow", model.LevelBeginner, model.TypeScenario, "ctx", "English")
	if a != b {
		t.Error("identical inputs should produce identical prompts")
	}
}
