package freeform

import (
	"fmt"
	"strings"

	"iep-rehearsal/internal/domain"
)

const systemPrompt = "You are simulating a school team in an IEP meeting. You are designed to give responses that move the conversation forward to a conclusion. Be respectful and concise, but do not be afraid to push back on the parent."

var stanceDescriptions = map[domain.StanceTag]string{
	domain.StanceInterests: "The parent is focusing on interests: shared goals, collaboration, and mutual benefit.",
	domain.StanceRights:    "The parent is focusing on rights: legal entitlements, policies, and rules.",
	domain.StancePower:     "The parent is focusing on power: authority, leverage, or demands.",
}

// StanceDescription returns the one-line description used in prompts.
func StanceDescription(s domain.StanceTag) string {
	return stanceDescriptions[s]
}

func buildUserPrompt(in TurnInput) string {
	var sb strings.Builder

	sb.WriteString("You are simulating a realistic IEP meeting as the school team.\n")
	fmt.Fprintf(&sb, "Scenario background: %s\n", in.Scenario.Background)

	sb.WriteString("Parent history:\n")
	for _, t := range in.History {
		fmt.Fprintf(&sb, "Parent: %s\n", t.User)
	}
	fmt.Fprintf(&sb, "Parent: %s\n", in.ParentLine)

	fmt.Fprintf(&sb, "Previous school response: %s\n", in.SchoolLine)
	fmt.Fprintf(&sb, "IRP context: %s\n\n", StanceDescription(in.Stance))

	fmt.Fprintf(&sb, "First, respond as the school team to the parent's latest message in a way that matches the IRP type (%s). ", in.Stance)
	sb.WriteString("Ask clarifying questions, provide information, or suggest next steps that align with the IRP approach.\n\n")

	sb.WriteString("Then, generate 3 possible next parent responses, each demonstrating a different IRP approach:\n")
	sb.WriteString("- One focused on interests\n- One focused on rights\n- One focused on power\n\n")
	sb.WriteString("Ensure that the parent options are not repeats of previous statements, and that they move the conversation forward in a meaningful way. ")
	sb.WriteString("Each option should be concise and reflect the parent's perspective based on the IRP type.\n")
	sb.WriteString("All responses should be one sentence at most.\n\n")
	sb.WriteString("Each parent response should directly address any questions, requests, or suggestions made in the previous school response. ")
	sb.WriteString("Make the conversation feel natural and connected, as in a real meeting.\n\n")
	sb.WriteString("Then, generate the projected school response to each of these parent options, simulating how the school team would likely respond.\n")

	sb.WriteString("Return your output as a JSON object with this shape:\n\n")
	sb.WriteString(`{
  "schoolResponse": "<school response>",
  "options": [
    { "type": "interests", "text": "<parent option>", "likelySchoolResponse": "<school response to this option>", "textExplanation": "<what the option does, what it emphasizes, and how it moves the conversation forward>" },
    { "type": "rights", "text": "<parent option>", "likelySchoolResponse": "<school response to this option>", "textExplanation": "<explanation>" },
    { "type": "power", "text": "<parent option>", "likelySchoolResponse": "<school response to this option>", "textExplanation": "<explanation>" }
  ]
}`)
	sb.WriteString("\n\nDo not include any text outside of the JSON structure.\nOnly output valid JSON.\n")
	return sb.String()
}
