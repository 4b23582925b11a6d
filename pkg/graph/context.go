package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"
)

const (
	senderCountCypher = `
MATCH (u:User {address: $sender})-[:SENT]->(m:Message)
WHERE $messageId = '' OR m.messageId <> $messageId
RETURN count(m) AS cnt`

	knownRecipientsCypher = `
MATCH (:User {address: $sender})-[:SENT]->(m:Message)-[:TO]->(r:User)
WHERE r.address IN $recipients AND ($messageId = '' OR m.messageId <> $messageId)
RETURN collect(DISTINCT r.address) AS known`

	domainIncidentsCypher = `
MATCH (m:Message)-[:FROM_DOMAIN]->(:Domain {name: $domain})
WHERE m.isPhishing = true
RETURN count(m) AS cnt`
)

// Fixed additive weights of the context score. The domain risk sub-score is
// min(incidents * 0.1, 1.0) and contributes half its value.
const (
	firstTimeSenderWeight  = 0.3
	firstContactWeight     = 0.2
	domainRiskWeight       = 0.5
	suspiciousDomainWeight = 0.4
	neutralFallbackScore   = 0.2
)

// suspiciousTLDs are top-level domains handed out for free and heavily
// abused by phishing campaigns.
var suspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".top", ".xyz", ".icu"}

// suspiciousSubstrings flag throwaway-mail providers by name.
var suspiciousSubstrings = []string{"temp", "disposable", "throwaway", "mailinator", "guerrilla", "10minute"}

// ContextScorer computes a bounded anomaly score for a candidate message
// from communication history, before content-based detection runs.
type ContextScorer struct {
	store store.GraphStore
}

// NewContextScorer creates a ContextScorer backed by the given graph store.
func NewContextScorer(s store.GraphStore) *ContextScorer {
	return &ContextScorer{store: s}
}

// Score computes the context score for a sender/recipients pairing. A
// non-empty messageID excludes that message from the history queries:
// enrichment runs asynchronously, so an already-merged copy of the scored
// message must not mask its own first-time signals. Score never fails: on
// any graph-store error it returns a neutral prior so the caller's
// detection pipeline is not blocked.
func (s *ContextScorer) Score(ctx context.Context, sender string, recipients []string, messageID string) *common.ContextScore {
	result := &common.ContextScore{Findings: []string{}}

	senderCount, err := s.countRows(ctx, senderCountCypher, map[string]any{
		"sender":    sender,
		"messageId": messageID,
	})
	if err != nil {
		logger.Warn("context scorer falling back to neutral prior", "sender", sender, "error", err)
		return neutralScore()
	}
	result.SenderMessageCount = senderCount

	score := 0.0
	if senderCount == 0 {
		result.IsFirstTimeSender = true
		score += firstTimeSenderWeight
		result.Findings = append(result.Findings, fmt.Sprintf("first message ever seen from %s", sender))
	}

	if len(recipients) > 0 {
		known, err := s.knownRecipients(ctx, sender, recipients, messageID)
		if err != nil {
			logger.Warn("context scorer falling back to neutral prior", "sender", sender, "error", err)
			return neutralScore()
		}
		for _, r := range recipients {
			if r == "" || known[r] {
				continue
			}
			result.IsFirstTimeCommunication = true
			result.Findings = append(result.Findings, fmt.Sprintf("first communication between %s and %s", sender, r))
		}
		// The penalty applies once per message no matter how many
		// recipients are novel; the findings still name each of them.
		if result.IsFirstTimeCommunication {
			score += firstContactWeight
		}
	}

	domain := AddressDomain(sender)
	if domain != "" {
		incidents, err := s.countRows(ctx, domainIncidentsCypher, map[string]any{"domain": domain})
		if err != nil {
			logger.Warn("context scorer falling back to neutral prior", "sender", sender, "error", err)
			return neutralScore()
		}
		result.SenderDomainIncidentCount = incidents
		if incidents > 0 {
			result.DomainRiskScore = min(float64(incidents)*0.1, 1.0)
			score += result.DomainRiskScore * domainRiskWeight
			result.Findings = append(result.Findings, fmt.Sprintf("domain %s linked to %d prior phishing messages", domain, incidents))
		}

		if suspiciousDomain(domain) {
			score += suspiciousDomainWeight
			result.Findings = append(result.Findings, fmt.Sprintf("domain %s matches a suspicious domain pattern", domain))
		}
	}

	result.ContextScore = min(max(score, 0.0), 1.0)
	return result
}

func neutralScore() *common.ContextScore {
	return &common.ContextScore{
		ContextScore: neutralFallbackScore,
		Findings:     []string{"error retrieving graph context"},
	}
}

func suspiciousDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, tld := range suspiciousTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	for _, sub := range suspiciousSubstrings {
		if strings.Contains(domain, sub) {
			return true
		}
	}
	return false
}

func (s *ContextScorer) countRows(ctx context.Context, cypher string, params map[string]any) (int, error) {
	rows, err := s.store.Query(ctx, cypher, params)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return toInt(rows[0]["cnt"]), nil
}

func (s *ContextScorer) knownRecipients(ctx context.Context, sender string, recipients []string, messageID string) (map[string]bool, error) {
	rows, err := s.store.Query(ctx, knownRecipientsCypher, map[string]any{
		"sender":     sender,
		"recipients": recipients,
		"messageId":  messageID,
	})
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool)
	if len(rows) == 0 {
		return known, nil
	}
	if list, ok := rows[0]["known"].([]any); ok {
		for _, v := range list {
			if addr, ok := v.(string); ok {
				known[addr] = true
			}
		}
	}
	return known, nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
