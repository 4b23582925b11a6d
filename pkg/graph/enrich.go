package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/MohammadH3218/encryptgate-copilot/pkg/common"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/logger"
	"github.com/MohammadH3218/encryptgate-copilot/pkg/store"
)

const (
	mergeMessageCypher = `
MERGE (u:User {address: $sender})
ON CREATE SET u.createdAt = datetime()
SET u.updatedAt = datetime()
MERGE (m:Message {messageId: $messageId})
SET m.subject = $subject,
    m.body = $body,
    m.timestamp = $timestamp,
    m.direction = $direction,
    m.detectionScore = $detectionScore,
    m.verdict = $verdict,
    m.severity = $severity,
    m.isPhishing = $isPhishing,
    m.modelVersion = $modelVersion
MERGE (u)-[:SENT]->(m)`

	mergeRecipientCypher = `
MATCH (m:Message {messageId: $messageId})
MERGE (r:User {address: $recipient})
ON CREATE SET r.createdAt = datetime()
SET r.updatedAt = datetime()
MERGE (m)-[:TO]->(r)`

	mergeSenderDomainCypher = `
MATCH (m:Message {messageId: $messageId})
MERGE (d:Domain {name: $domain})
MERGE (m)-[:FROM_DOMAIN]->(d)`

	mergeURLCypher = `
MATCH (m:Message {messageId: $messageId})
MERGE (l:URL {url: $url})
SET l.host = $host,
    l.verdict = $verdict,
    l.score = $score,
    l.malicious = $malicious,
    l.scanned = $scanned
MERGE (m)-[:MENTIONS_URL]->(l)`

	mergeURLDomainCypher = `
MATCH (l:URL {url: $url})
MERGE (d:Domain {name: $host})
MERGE (l)-[:BELONGS_TO_DOMAIN]->(d)`

	mergeAttachmentCypher = `
MATCH (m:Message {messageId: $messageId})
MERGE (a:Attachment {hash: $hash})
SET a.filename = $filename,
    a.mimeType = $mimeType
MERGE (m)-[:HAS_ATTACHMENT]->(a)`
)

// Enricher merges a message and its participants, URLs, domains and
// attachments into the communication graph. Every write is an idempotent
// merge by natural key, so re-enriching the same message is safe.
type Enricher struct {
	store store.GraphStore
}

// NewEnricher creates an Enricher backed by the given graph store.
func NewEnricher(s store.GraphStore) *Enricher {
	return &Enricher{store: s}
}

// EnrichMessage upserts the message node plus all related nodes and edges.
// Substeps are independent: a failed recipient or URL write is logged and
// the remaining writes continue, so ingestion is never blocked by a single
// bad record. The joined substep errors are returned so the caller can
// decide whether to requeue; a requeue only repeats idempotent merges.
//
// The message ID is passed through to the store verbatim, angle brackets
// and all. Normalizing it would orphan previously written edges.
func (e *Enricher) EnrichMessage(ctx context.Context, msg common.EmailMessage) error {
	if msg.MessageID == "" {
		return errors.New("message has no message ID")
	}
	if msg.Sender == "" {
		return fmt.Errorf("message %q has no sender", msg.MessageID)
	}

	var errs []error

	err := e.store.Write(ctx, mergeMessageCypher, map[string]any{
		"sender":         msg.Sender,
		"messageId":      msg.MessageID,
		"subject":        msg.Subject,
		"body":           msg.Body,
		"timestamp":      msg.Timestamp,
		"direction":      msg.Direction,
		"detectionScore": msg.DetectionScore,
		"verdict":        msg.Verdict,
		"severity":       msg.Severity,
		"isPhishing":     msg.IsPhishing,
		"modelVersion":   msg.ModelVersion,
	})
	if err != nil {
		// Without the message node nothing else can attach to it.
		logger.Error("failed to merge message node", "message_id", msg.MessageID, "error", err)
		return err
	}

	for _, recipient := range msg.Recipients {
		if recipient == "" {
			continue
		}
		err := e.store.Write(ctx, mergeRecipientCypher, map[string]any{
			"messageId": msg.MessageID,
			"recipient": recipient,
		})
		if err != nil {
			logger.Error("failed to merge recipient", "message_id", msg.MessageID, "recipient", recipient, "error", err)
			errs = append(errs, err)
		}
	}

	if domain := AddressDomain(msg.Sender); domain != "" {
		err := e.store.Write(ctx, mergeSenderDomainCypher, map[string]any{
			"messageId": msg.MessageID,
			"domain":    domain,
		})
		if err != nil {
			logger.Error("failed to merge sender domain", "message_id", msg.MessageID, "domain", domain, "error", err)
			errs = append(errs, err)
		}
	}

	for _, u := range msg.URLs {
		if u.URL == "" {
			continue
		}
		host := u.Host
		if host == "" {
			host = urlHost(u.URL)
		}
		err := e.store.Write(ctx, mergeURLCypher, map[string]any{
			"messageId": msg.MessageID,
			"url":       u.URL,
			"host":      host,
			"verdict":   u.Verdict,
			"score":     u.Score,
			"malicious": u.Malicious,
			"scanned":   u.Scanned,
		})
		if err != nil {
			logger.Error("failed to merge URL", "message_id", msg.MessageID, "url", u.URL, "error", err)
			errs = append(errs, err)
			continue
		}

		if host != "" {
			err := e.store.Write(ctx, mergeURLDomainCypher, map[string]any{
				"url":  u.URL,
				"host": host,
			})
			if err != nil {
				logger.Error("failed to merge URL domain", "message_id", msg.MessageID, "host", host, "error", err)
				errs = append(errs, err)
			}
		}
	}

	for _, a := range msg.Attachments {
		if a.Hash == "" {
			continue
		}
		err := e.store.Write(ctx, mergeAttachmentCypher, map[string]any{
			"messageId": msg.MessageID,
			"hash":      a.Hash,
			"filename":  a.Filename,
			"mimeType":  a.MimeType,
		})
		if err != nil {
			logger.Error("failed to merge attachment", "message_id", msg.MessageID, "hash", a.Hash, "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// AddressDomain returns the lowercased domain part of an email address, or
// "" if the address has no domain part.
func AddressDomain(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}

func urlHost(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
