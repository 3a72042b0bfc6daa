package core

import (
	"fmt"
	"strings"
)

// ParseParticipants parses a comma-separated list of provider ids.
// Format: "anthropic,openai,gemini"
func ParseParticipants(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("participant list cannot be empty")
	}

	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ids = append(ids, p)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("no valid participants found")
	}
	return ids, nil
}

// ParseRoles parses a comma-separated list of provider=role assignments.
// Format: "anthropic=optimist,openai=skeptic"
func ParseRoles(s string) (map[string]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	roles := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid role assignment %q, expected provider=role", pair)
		}
		provider := strings.TrimSpace(kv[0])
		role := strings.TrimSpace(kv[1])
		if provider == "" || role == "" {
			return nil, fmt.Errorf("invalid role assignment %q, expected provider=role", pair)
		}
		roles[provider] = role
	}
	return roles, nil
}
