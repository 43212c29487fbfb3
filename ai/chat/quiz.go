package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuizSentinel prefixes a message that carries skin quiz answers instead of
// customer text.
const QuizSentinel = "__QUIZ_RESULTS__"

// QuizAnswer is one answered quiz question.
type QuizAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type quizPayload struct {
	Answers []QuizAnswer `json:"answers"`
}

// inbound is the message appended for the customer's turn.
type inbound struct {
	Role    Role
	Content string
	Quiz    bool
}

// parseInbound turns the raw request message into the message to append.
// Quiz payloads become a hidden system instruction; a payload that does not
// parse yields an empty instruction. It never fails.
func parseInbound(message, userID string) inbound {
	rest, ok := strings.CutPrefix(message, QuizSentinel)
	if !ok {
		content := message
		if userID != "" {
			content += "\n\n[userId: " + userID + "]"
		}
		return inbound{Role: RoleUser, Content: content}
	}

	var payload quizPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest)), &payload); err != nil {
		return inbound{Role: RoleSystem, Quiz: true}
	}
	return inbound{Role: RoleSystem, Content: quizInstruction(payload.Answers, userID), Quiz: true}
}

// quizInstruction renders valid answers into the hidden instruction block.
func quizInstruction(answers []QuizAnswer, userID string) string {
	var data strings.Builder
	n := 0
	for _, a := range answers {
		q, ans := strings.TrimSpace(a.Question), strings.TrimSpace(a.Answer)
		if q == "" || ans == "" {
			continue
		}
		n++
		fmt.Fprintf(&data, "%d. %s => %s\n", n, q, ans)
	}
	if n == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("The customer just completed the skin type quiz. Their answers are below.\n")
	sb.WriteString("Infer their skin type and their primary skin concern from the answers.\n")
	sb.WriteString("Never quote, list or paraphrase the questions or answers back to the customer.\n")
	if userID != "" {
		sb.WriteString("Customer userId: " + userID + "\n")
	}
	sb.WriteString("\n<quiz_answers>\n")
	sb.WriteString(data.String())
	sb.WriteString("</quiz_answers>\n\n")
	sb.WriteString("Reply using exactly this Markdown template:\n\n")
	sb.WriteString(quizTemplate)
	return sb.String()
}

const quizTemplate = `**Your skin type:** <one of: dry, oily, combination, normal, sensitive>

**Your main concern:** <one short phrase>

**What this means:** <two or three sentences about how this skin behaves>

**Where to start:**
- <first routine tip>
- <second routine tip>
- <third routine tip>

Would you like me to build a routine for you?`
