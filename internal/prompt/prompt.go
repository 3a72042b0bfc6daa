// Package prompt builds the per-provider, per-mode system prompt for one
// turn of a discussion. Build is a pure function of the configuration and
// the speaking provider; it performs no I/O and has no side effects.
package prompt

import (
	"fmt"
	"strings"

	"github.com/colloquy-dev/colloquy/internal/core"
)

// languageAndLength bounds every response regardless of mode.
const languageAndLength = `Respond in the same language as the topic. Keep your response focused and under 300 words.`

// integrityClause is included in every prompt verbatim.
const integrityClause = `Integrity requirements:
- Cite a source for every factual claim you rely on.
- Never fabricate facts, names, dates, statistics, or quotes.
- If you are less than about 95% confident in a claim, disclose that uncertainty explicitly instead of stating it as fact.`

// Build composes the system prompt for providerID under cfg.
func Build(cfg core.DebateConfig, providerID string) string {
	var sb strings.Builder

	label := core.DisplayName(providerID)
	sb.WriteString(fmt.Sprintf("You are %s, one of %d participants in a multi-AI discussion.\n\n",
		label, len(cfg.Participants)))

	sb.WriteString("Participants:\n")
	for _, p := range cfg.Participants {
		line := "- " + core.DisplayName(p)
		if p == providerID {
			line += " (you)"
		}
		if cfg.Mode == core.ModeBattle && p == cfg.JudgeProvider {
			line += " (judge)"
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Topic: %q\n\n", cfg.Topic))

	switch cfg.Mode {
	case core.ModeRoundRobin:
		sb.WriteString(`Format: round robin. Participants speak once per round in a fixed order.
Read what has been said before you, then either build on it or rebut it directly.
Do not repeat points already made; move the discussion forward.`)
	case core.ModeFreeDiscussion:
		sb.WriteString(`Format: free discussion. There is no fixed stance and no script.
Engage with the strongest recent points, agree or disagree freely, and say so
when someone changes your mind.`)
	case core.ModeRoleAssignment:
		role := GetRole(roleFor(cfg, providerID))
		sb.WriteString("Format: role-based discussion. Stay in your assigned role for every turn.\n\n")
		sb.WriteString(fmt.Sprintf("Your role: %s\n%s", role.Name, role.Description))
	case core.ModeBattle:
		if providerID == cfg.JudgeProvider {
			writeJudgeInstructions(&sb, cfg)
		} else {
			writeDebaterInstructions(&sb, cfg, providerID)
		}
	}
	sb.WriteString("\n\n")

	sb.WriteString(languageAndLength)
	sb.WriteString("\n\n")
	sb.WriteString(integrityClause)

	if cfg.UseReference && strings.TrimSpace(cfg.ReferenceText) != "" {
		sb.WriteString("\n\nReference material (use it, cite it where relevant):\n")
		sb.WriteString(cfg.ReferenceText)
		if hasNonTextAttachment(cfg.ReferenceFiles) {
			sb.WriteString("\n\nNote: reference files are attached to your first request.")
		}
	}

	return sb.String()
}

// rubric is the fixed battle-mode scoring rubric, 10 points per debater.
const rubric = `Scoring rubric (10 points per debater per round):
- Logic: 0-3
- Evidence: 0-3
- Rebuttal: 0-2
- Persuasion: 0-2`

func writeJudgeInstructions(sb *strings.Builder, cfg core.DebateConfig) {
	sb.WriteString(`Format: battle debate. You are the JUDGE.
You never argue a side and never take a debater's turn. Your only job is evaluation.

After each completed round, produce a judge evaluation:
`)
	sb.WriteString(rubric)
	sb.WriteString(`

Present the scores as a markdown table with one row per debater, then declare
the winner of the round with a one-paragraph justification.`)
	sb.WriteString(fmt.Sprintf(`

Round %d is the final round. In that evaluation, additionally declare the
overall winner of the debate and summarize how the argument developed.`, cfg.MaxRounds))
}

func writeDebaterInstructions(sb *strings.Builder, cfg core.DebateConfig, providerID string) {
	var opponents []string
	for _, p := range cfg.Participants {
		if p != providerID && p != cfg.JudgeProvider {
			opponents = append(opponents, core.DisplayName(p))
		}
	}

	sb.WriteString("Format: battle debate. You are a DEBATER and you are here to win.\n")
	if len(opponents) > 0 {
		sb.WriteString(fmt.Sprintf("Your opponents: %s.\n", strings.Join(opponents, ", ")))
	}
	if cfg.JudgeProvider != "" {
		sb.WriteString(fmt.Sprintf("The judge: %s. The judge scores every round.\n", core.DisplayName(cfg.JudgeProvider)))
	}
	sb.WriteString("\n")
	sb.WriteString(rubric)
	sb.WriteString(`

Make your strongest case, rebut your opponents' points directly, and maximize
your rubric score. Concede nothing you can defend.`)

	if role, ok := cfg.Roles[providerID]; ok && role != "" {
		r := GetRole(role)
		sb.WriteString(fmt.Sprintf("\n\nCharacter: argue as %s. %s", r.Name, r.Description))
	}
}

func roleFor(cfg core.DebateConfig, providerID string) string {
	if role, ok := cfg.Roles[providerID]; ok && role != "" {
		return role
	}
	return DefaultRole
}

func hasNonTextAttachment(files []core.Attachment) bool {
	for _, f := range files {
		if !strings.HasPrefix(f.MIME, "text/") {
			return true
		}
	}
	return false
}
