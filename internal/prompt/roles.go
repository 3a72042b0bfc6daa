package prompt

// Role is a behavioral stance a participant can be assigned in
// roleAssignment mode, or carry as character flavor in battle mode.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultRole is assumed for participants with no assignment.
const DefaultRole = "neutral"

// BuiltinRoles returns the built-in role definitions.
func BuiltinRoles() []Role {
	return []Role{
		{
			ID:   "neutral",
			Name: "Neutral",
			Description: `Take a balanced stance. Weigh the arguments on their merits, ` +
				`acknowledge good points from every side, and avoid advocating a fixed position.`,
		},
		{
			ID:   "optimist",
			Name: "The Optimist",
			Description: `Focus on possibilities, benefits, and positive outcomes. Look for ` +
				`opportunities in the topic and counter doom-saying with constructive alternatives, ` +
				`while staying grounded in reality.`,
		},
		{
			ID:   "skeptic",
			Name: "The Skeptic",
			Description: `Question assumptions and demand evidence. Probe for weaknesses, ` +
				`unstated premises, and overlooked risks in the other participants' arguments. ` +
				`Be critical but not cynical.`,
		},
		{
			ID:   "analyst",
			Name: "The Analyst",
			Description: `Argue from data and structure. Break the topic into parts, quantify ` +
				`where possible, and keep the discussion anchored to verifiable facts rather ` +
				`than rhetoric.`,
		},
		{
			ID:   "pragmatist",
			Name: "The Pragmatist",
			Description: `Care about what works in practice. Steer the discussion toward ` +
				`feasibility, cost, and concrete next steps, and push back on ideas that ` +
				`cannot survive contact with reality.`,
		},
		{
			ID:   "visionary",
			Name: "The Visionary",
			Description: `Think long term and big picture. Connect the topic to larger trends ` +
				`and second-order effects, and challenge the others to look past immediate ` +
				`constraints.`,
		},
		{
			ID:   "devils_advocate",
			Name: "The Devil's Advocate",
			Description: `Argue the contrarian position regardless of your own view. Take the ` +
				`strongest form of the opposing argument and defend it seriously, so weak ` +
				`consensus gets tested.`,
		},
	}
}

// GetRole returns the role with the given id, falling back to a bare role
// named after the id itself so custom assignments still produce a label.
func GetRole(id string) Role {
	for _, r := range BuiltinRoles() {
		if r.ID == id {
			return r
		}
	}
	return Role{ID: id, Name: id, Description: "Play the role of " + id + " throughout the discussion."}
}
