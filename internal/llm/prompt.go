package llm

import (
	"fmt"
	"strings"

	"github.com/furkankasim16/knowledge-bot/internal/model"
)

// DeclineSentinel is the literal the model is told to emit when it cannot
// produce a question at all. The parser short-circuits on it.
const DeclineSentinel = "UNABLE_TO_GENERATE"

// DefaultLanguage is the output language used when none is configured.
const DefaultLanguage = "English"

var levelGuides = map[model.Level]string{
	model.LevelBeginner:     "beginner: basic definitions and direct recall from the passages",
	model.LevelIntermediate: "intermediate: application or interpretation, may need a one- or two-step inference",
	model.LevelAdvanced:     "advanced: analysis, cause and effect, comparison, or multi-step reasoning",
}

// schemaFor renders the exact JSON schema the model must fill in for a
// question type. Each type has its own required fields.
func schemaFor(qtype model.QuestionType, topic string, level model.Level) string {
	head := fmt.Sprintf("{\n  \"type\": %q,\n  \"topic\": %q,\n  \"level\": %q,\n  \"stem\": \"QUESTION TEXT\",\n", qtype, topic, level)
	switch qtype {
	case model.TypeMCQ:
		return head +
			"  \"choices\": [\"A) ...\", \"B) ...\", \"C) ...\", \"D) ...\"],\n" +
			"  \"answer_index\": 0,\n" +
			"  \"rationale\": \"why the answer is correct\"\n}"
	case model.TypeTrueFalse:
		return head +
			"  \"answer\": true,\n" +
			"  \"rationale\": \"why the answer is correct\"\n}"
	case model.TypeScenario:
		return head +
			"  \"expected_points\": [\"step 1\", \"step 2\"],\n" +
			"  \"rubric\": \"scoring rules\",\n" +
			"  \"rationale\": \"why these points matter\"\n}"
	default: // short_answer, open_ended
		return head +
			"  \"expected\": \"short expected answer\",\n" +
			"  \"rationale\": \"why the answer is correct\"\n}"
	}
}

// BuildPrompt renders the full generation instruction. It is a pure
// function of its inputs so identical requests produce identical prompts.
func BuildPrompt(topic string, level model.Level, qtype model.QuestionType, context, language string) string {
	if language == "" {
		language = DefaultLanguage
	}

	var sb strings.Builder
	sb.WriteString("Act as an instructional designer and exam author.\n")
	fmt.Fprintf(&sb, "Based only on the passages below, write one %s question about %q at %s level.\n\n", qtype, topic, level)

	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "1. All content MUST be in %s: the stem, every choice, and the rationale.\n", language)
	sb.WriteString("2. The answer must be derivable from the passages alone. Inventing facts is forbidden.\n")
	sb.WriteString("3. Output a single JSON object and nothing else: no explanation, no ```json fences, no surrounding prose.\n")
	sb.WriteString("4. The \"rationale\" field explains why the answer is correct.\n")
	sb.WriteString("5. Difficulty guide:\n")
	for _, l := range model.Levels {
		fmt.Fprintf(&sb, "   - %s\n", levelGuides[l])
	}
	fmt.Fprintf(&sb, "6. If the passages are empty, still produce a plausible %s question about the topic from general knowledge.\n", language)
	fmt.Fprintf(&sb, "7. Only if you are entirely unable to produce a question, reply with exactly %s and nothing else.\n\n", DeclineSentinel)

	sb.WriteString("Output format:\n")
	sb.WriteString(schemaFor(qtype, topic, level))
	sb.WriteString("\n\nPassages:\n")
	sb.WriteString(context)
	sb.WriteString("\n")

	return sb.String()
}

// BuildChatPrompt renders a short-answer prompt for a free-form user
// question. Passages are optional; without them the model answers from
// its general knowledge.
func BuildChatPrompt(message, topic, language string, passages []string) string {
	if language == "" {
		language = DefaultLanguage
	}

	var sb strings.Builder
	if len(passages) > 0 {
		sb.WriteString("Knowledge base:\n")
		for i, p := range passages {
			fmt.Fprintf(&sb, "Passage %d: %s\n\n", i+1, p)
		}
	}
	if topic != "" {
		fmt.Fprintf(&sb, "Topic: %s\n", topic)
	}
	fmt.Fprintf(&sb, "Question: %s\n\n", message)
	fmt.Fprintf(&sb, "Give a short, clear answer in %s.\n", language)
	return sb.String()
}
