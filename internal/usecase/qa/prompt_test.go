package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkaso/callqa/internal/domain/entities"
)

func strPtr(s string) *string { return &s }

func TestMergeConsecutiveUtterances(t *testing.T) {
	merged := MergeConsecutiveUtterances([]entities.Utterance{
		{Speaker: 0, Transcript: "Dzień dobry,", Start: 0, End: 1},
		{Speaker: 0, Transcript: "firma Inkaso.", Start: 1, End: 2},
		{Speaker: 1, Transcript: "Dzień dobry.", Start: 2, End: 3},
		{Speaker: 0, Transcript: "W czym mogę pomóc?", Start: 3, End: 4},
	})

	assert.Len(t, merged, 3)
	assert.Equal(t, "Dzień dobry, firma Inkaso.", merged[0].Transcript)
	assert.Equal(t, float64(0), merged[0].Start)
	assert.Equal(t, float64(2), merged[0].End)
	assert.Equal(t, 1, merged[1].Speaker)
}

func TestMergeConsecutiveUtterancesEmpty(t *testing.T) {
	assert.Nil(t, MergeConsecutiveUtterances(nil))
}

func TestFormatDialog(t *testing.T) {
	dialog := FormatDialog([]entities.Utterance{
		{Speaker: 0, Transcript: "Hello"},
		{Speaker: 1, Transcript: "Hi"},
	})

	assert.Equal(t, "[Speaker 0]: Hello\n\n[Speaker 1]: Hi", dialog)
}

func TestBuildSystemPromptSubstitutesPlaceholder(t *testing.T) {
	prompt := BuildSystemPrompt("Oceniasz rozmowę agenta {{agentName}}.", "Jan Kowalski")
	assert.Equal(t, "Oceniasz rozmowę agenta Jan Kowalski.", prompt)

	// Empty name leaves the placeholder slot blank
	prompt = BuildSystemPrompt("Agent: {{agentName}}.", "")
	assert.Equal(t, "Agent: .", prompt)
}

func TestBuildSystemPromptAppendsAgentLine(t *testing.T) {
	prompt := BuildSystemPrompt("Jesteś analitykiem QA.", "Jan Kowalski")
	assert.Contains(t, prompt, "Jesteś analitykiem QA.")
	assert.Contains(t, prompt, "Agent prowadzacy rozmowe: Jan Kowalski.")

	prompt = BuildSystemPrompt("Jesteś analitykiem QA.", "")
	assert.NotContains(t, prompt, "Agent prowadzacy rozmowe")
}

func TestBuildUserPromptSections(t *testing.T) {
	question := &entities.Question{
		QuestionID:      "greeting",
		Question:        "Czy agent się przedstawił?",
		Context:         strPtr("Przedstawienie musi zawierać imię i firmę."),
		ReferenceScript: strPtr("Dzień dobry, [imię], firma Inkaso."),
		GoodExamples:    []string{"Dzień dobry, Jan Kowalski, firma Inkaso"},
		BadExamples:     []string{"Halo?"},
		PossibleAnswers: []string{"Tak", "Nie"},
	}

	prompt := BuildUserPrompt("[Speaker 0]: Dzień dobry", question)

	assert.Contains(t, prompt, "<transcription>\n[Speaker 0]: Dzień dobry\n</transcription>")
	assert.Contains(t, prompt, "<question>\nCzy agent się przedstawił?\n</question>")
	assert.Contains(t, prompt, "<rules>\nPrzedstawienie musi zawierać imię i firmę.\n</rules>")
	assert.Contains(t, prompt, "<reference_script>")
	assert.Contains(t, prompt, "<examples_positive>")
	assert.Contains(t, prompt, "<examples_negative>")
	assert.Contains(t, prompt, "<possible_answers>\n- Tak\n- Nie\n</possible_answers>")
}

func TestBuildUserPromptOmitsEmptySections(t *testing.T) {
	question := &entities.Question{
		QuestionID:      "greeting",
		Question:        "Czy agent się przedstawił?",
		PossibleAnswers: []string{"Tak", "Nie"},
	}

	prompt := BuildUserPrompt("text", question)

	assert.NotContains(t, prompt, "<rules>")
	assert.NotContains(t, prompt, "<reference_script>")
	assert.NotContains(t, prompt, "<examples_positive>")
	assert.NotContains(t, prompt, "<examples_negative>")
}
