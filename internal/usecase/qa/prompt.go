package qa

import (
	"fmt"
	"strings"

	"github.com/inkaso/callqa/internal/domain/entities"
)

const agentPlaceholder = "{{agentName}}"

// MergeConsecutiveUtterances joins adjacent turns of the same speaker
// into one utterance spanning both.
func MergeConsecutiveUtterances(utterances []entities.Utterance) []entities.Utterance {
	if len(utterances) == 0 {
		return nil
	}

	merged := make([]entities.Utterance, 0, len(utterances))
	current := utterances[0]
	for _, u := range utterances[1:] {
		if u.Speaker == current.Speaker {
			current.Transcript += " " + u.Transcript
			current.End = u.End
			continue
		}
		merged = append(merged, current)
		current = u
	}
	return append(merged, current)
}

// FormatDialog renders utterances as a speaker-labelled dialog
func FormatDialog(utterances []entities.Utterance) string {
	if len(utterances) == 0 {
		return ""
	}
	lines := make([]string, 0, len(utterances))
	for _, u := range MergeConsecutiveUtterances(utterances) {
		lines = append(lines, fmt.Sprintf("[Speaker %d]: %s", u.Speaker, u.Transcript))
	}
	return strings.Join(lines, "\n\n")
}

// BuildSystemPrompt fills the group's grading prompt with the agent name.
// Prompts carrying the {{agentName}} placeholder get it substituted;
// others get an agent line appended.
func BuildSystemPrompt(groupPrompt, agentName string) string {
	if strings.Contains(groupPrompt, agentPlaceholder) {
		return strings.ReplaceAll(groupPrompt, agentPlaceholder, agentName)
	}
	agentInfo := ""
	if agentName != "" {
		agentInfo = fmt.Sprintf("Agent prowadzacy rozmowe: %s.\n", agentName)
	}
	return groupPrompt + "\n" + agentInfo
}

// BuildUserPrompt assembles the per-question prompt: the transcript, the
// question, and whatever grading context the question carries.
func BuildUserPrompt(transcript string, question *entities.Question) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<transcription>\n%s\n</transcription>\n\n", transcript)
	fmt.Fprintf(&b, "<question>\n%s\n</question>\n", question.Question)

	if question.Context != nil && *question.Context != "" {
		fmt.Fprintf(&b, "\n<rules>\n%s\n</rules>\n", *question.Context)
	}
	if question.ReferenceScript != nil && *question.ReferenceScript != "" {
		fmt.Fprintf(&b, "\n<reference_script>\n%s\n</reference_script>\n", *question.ReferenceScript)
	}
	if len(question.GoodExamples) > 0 {
		fmt.Fprintf(&b, "\n<examples_positive>\n%s\n</examples_positive>\n", quoteList(question.GoodExamples))
	}
	if len(question.BadExamples) > 0 {
		fmt.Fprintf(&b, "\n<examples_negative>\n%s\n</examples_negative>\n", quoteList(question.BadExamples))
	}

	fmt.Fprintf(&b, "\n<possible_answers>\n%s\n</possible_answers>", plainList(question.PossibleAnswers))
	return b.String()
}

func quoteList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("- %q", item)
	}
	return strings.Join(lines, "\n")
}

func plainList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}
