package vault

import (
	"fmt"
	"strings"
)

// BuildReference formats search hits into the reference text block handed
// to a discussion config. Hits are numbered so participants can cite them.
func BuildReference(hits []Hit) string {
	if len(hits) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, h := range hits {
		header := h.Title
		if h.Section != "" {
			header += " — " + h.Section
		}
		sb.WriteString(fmt.Sprintf("[%d] %s (relevance %.2f)\n", i+1, header, h.Score))
		sb.WriteString(strings.TrimSpace(h.Content))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
