package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

type credentialCandidate struct {
	mode   string
	source string
	field  string
}

// collectCredentials drops candidates whose source is blank.
func collectCredentials(all ...credentialCandidate) []credentialCandidate {
	out := make([]credentialCandidate, 0, len(all))
	for _, c := range all {
		c.source = strings.TrimSpace(c.source)
		if c.source != "" {
			out = append(out, c)
		}
	}
	return out
}

// selectSingleCredential requires exactly one configured credential source.
func selectSingleCredential(candidates []credentialCandidate, missingMessage, multiPrefix string) (mode string, source string, err error) {
	switch len(candidates) {
	case 0:
		return "", "", fmt.Errorf("%s", strings.TrimSpace(missingMessage))
	case 1:
		return candidates[0].mode, candidates[0].source, nil
	}
	fields := make([]string, 0, len(candidates))
	for _, item := range candidates {
		fields = append(fields, item.field)
	}
	sort.Strings(fields)
	return "", "", fmt.Errorf("%s (%s); set exactly one", strings.TrimSpace(multiPrefix), strings.Join(fields, ", "))
}

func validateOAuthTokenFileSource(mode, source, providerLabel string) error {
	if mode != "oauth_token_file" {
		return nil
	}
	resolved := expandHome(source)
	if _, err := os.Stat(resolved); err != nil {
		return fmt.Errorf("%s OAuth token file not accessible at %s: %w", providerLabel, resolved, err)
	}
	return nil
}
