package security

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // the HIBP range API is keyed by SHA-1 by definition
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// BreachAPIURL is the Have I Been Pwned range endpoint. Only the first five
// characters of the password's SHA-1 ever leave the machine (k-anonymity);
// the full hash and the password itself never do.
const BreachAPIURL = "https://api.pwnedpasswords.com/range/"

// BreachResult reports how often a password appears in known breach corpora.
type BreachResult struct {
	Breached bool `json:"breached"`
	// Count is the number of breach occurrences; zero when not found.
	Count int `json:"count"`
}

// CheckBreach queries the HIBP range API for the given password.
//
// Failures are soft: the vault stays fully usable when the network is
// down, so callers should surface the error without blocking whatever
// operation triggered the check.
func CheckBreach(ctx context.Context, client *http.Client, password string) (BreachResult, error) {
	return checkBreachAgainst(ctx, client, BreachAPIURL, password)
}

func checkBreachAgainst(ctx context.Context, client *http.Client, baseURL, password string) (BreachResult, error) {
	if client == nil {
		client = http.DefaultClient
	}

	sum := sha1.Sum([]byte(password)) //nolint:gosec
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:5], digest[5:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+prefix, nil)
	if err != nil {
		return BreachResult{}, fmt.Errorf("security: failed to build breach request: %w", err)
	}
	req.Header.Set("User-Agent", "passctl-breach-check")
	// Pad responses so the API cannot infer which suffix matched.
	req.Header.Set("Add-Padding", "true")

	resp, err := client.Do(req)
	if err != nil {
		return BreachResult{}, fmt.Errorf("security: breach check request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return BreachResult{}, fmt.Errorf("security: breach API returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		candidate, countStr, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.EqualFold(candidate, suffix) {
			count, err := strconv.Atoi(strings.TrimSpace(countStr))
			if err != nil {
				return BreachResult{}, fmt.Errorf("security: malformed breach count %q: %w", countStr, err)
			}
			if count > 0 {
				return BreachResult{Breached: true, Count: count}, nil
			}
			return BreachResult{}, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return BreachResult{}, fmt.Errorf("security: failed to read breach response: %w", err)
	}

	return BreachResult{}, nil
}
