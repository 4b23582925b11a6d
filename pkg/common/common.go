package common

import "time"

// EmailMessage is the normalized message record consumed by the enrichment
// writer and the context scorer. It is produced by the upstream detection
// pipeline and carries everything the graph layer needs to know about a
// single message.
//
// MessageID is the natural key of the message in the graph. It may contain
// delimiter characters such as angle brackets and must never be normalized
// or rewritten once stored, because doing so breaks joins against
// previously-written graph data.
type EmailMessage struct {
	MessageID   string             `json:"message_id"`
	Subject     string             `json:"subject"`
	Body        string             `json:"body"`
	Sender      string             `json:"sender"`
	Recipients  []string           `json:"recipients"`
	Timestamp   time.Time          `json:"timestamp"`
	Direction   string             `json:"direction"`
	URLs        []URLRecord        `json:"urls,omitempty"`
	Attachments []AttachmentRecord `json:"attachments,omitempty"`

	// Threat scoring fields set by the detection pipeline. Optional; zero
	// values mean the message has not been scored yet.
	DetectionScore float64 `json:"detection_score,omitempty"`
	Verdict        string  `json:"verdict,omitempty"`
	Severity       string  `json:"severity,omitempty"`
	IsPhishing     bool    `json:"is_phishing,omitempty"`
	ModelVersion   string  `json:"model_version,omitempty"`
}

// URLRecord describes a URL mentioned in a message, including any scan
// results available at enrichment time.
type URLRecord struct {
	URL       string  `json:"url"`
	Host      string  `json:"host,omitempty"`
	Verdict   string  `json:"verdict,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Malicious bool    `json:"malicious,omitempty"`
	Scanned   bool    `json:"scanned,omitempty"`
}

// AttachmentRecord describes a message attachment, keyed by content hash.
type AttachmentRecord struct {
	Hash     string `json:"hash"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

// Entity is a node in the analytical layer extracted from message content.
// The analytical layer is ephemeral: it is rebuilt from scratch per
// extraction batch and never persisted to the graph store.
type Entity struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	MessageIDs  []string `json:"message_ids"`
}

// Relationship is a weighted, typed edge between two extracted entities.
type Relationship struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Strength    float64 `json:"strength"`
}

// Claim is a subject-predicate-object statement extracted from a message,
// with the message it came from and the model's confidence.
type Claim struct {
	Subject     string  `json:"subject"`
	Predicate   string  `json:"predicate"`
	Object      string  `json:"object"`
	Description string  `json:"description"`
	MessageID   string  `json:"message_id"`
	Confidence  float64 `json:"confidence"`
}

// Community is a cluster of extracted entities that are densely connected
// relative to the rest of the entity graph. Communities form a two-level
// hierarchy: level 0 communities partition the full entity set, level 1
// communities subdivide level 0 communities with more than five members.
//
// Community IDs are only meaningful within a single detection run; callers
// must not assume they are stable across rebuilds.
type Community struct {
	ID              string         `json:"id"`
	Level           int            `json:"level"`
	Entities        []string       `json:"entities"`
	Relationships   []Relationship `json:"relationships"`
	Summary         string         `json:"summary,omitempty"`
	ParentCommunity string         `json:"parent_community,omitempty"`
	SubCommunities  []string       `json:"sub_communities,omitempty"`
}

// ContextScore is the anomaly signal computed from graph history for a
// candidate message before content-based detection runs. ContextScore is
// always in [0, 1].
type ContextScore struct {
	ContextScore              float64  `json:"context_score"`
	IsFirstTimeSender         bool     `json:"is_first_time_sender"`
	IsFirstTimeCommunication  bool     `json:"is_first_time_communication"`
	SenderMessageCount        int      `json:"sender_message_count"`
	SenderDomainIncidentCount int      `json:"sender_domain_incident_count"`
	DomainRiskScore           float64  `json:"domain_risk_score"`
	Findings                  []string `json:"findings"`
}
