package repository

import (
	"time"
)

// Artifact is a submitted document. Identical content maps to one row.
type Artifact struct {
	ID        string    `json:"_id"       gorm:"primaryKey"`
	Content   string    `json:"content"   gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Artifact model.
func (Artifact) TableName() string {
	return "artifacts"
}

// Report is the tool report generated for an artifact.
type Report struct {
	ID         string    `json:"_id"        gorm:"primaryKey"`
	ArtifactID string    `json:"artifactId" gorm:"index;not null"`
	RawReport  string    `json:"rawReport"  gorm:"type:text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName returns the table name for the Report model.
func (Report) TableName() string {
	return "reports"
}

// AgentMessage is the output of one pipeline stage.
type AgentMessage struct {
	ID         string    `json:"_id"        gorm:"primaryKey"`
	ArtifactID string    `json:"artifactId" gorm:"index;not null"`
	ReportID   string    `json:"reportId"   gorm:"index"`
	AgentRole  string    `json:"agentRole"`
	Message    string    `json:"message"    gorm:"type:text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName returns the table name for the AgentMessage model.
func (AgentMessage) TableName() string {
	return "agent_messages"
}

// Decision is the terminal outcome of a successful run. Rows are written
// once and never updated. Embedding is the vector the run searched with.
type Decision struct {
	ID                 string    `json:"_id"                gorm:"primaryKey"`
	ArtifactID         string    `json:"artifactId"         gorm:"index;not null"`
	Summary            string    `json:"summary"            gorm:"type:text"`
	Rationale          string    `json:"rationale"          gorm:"type:text"`
	Embedding          []float32 `json:"-"                  gorm:"type:jsonb;serializer:json"`
	AgentRolesInvolved []string  `json:"agentRolesInvolved" gorm:"type:jsonb;serializer:json"`
	CreatedAt          time.Time `json:"createdAt"          gorm:"index"`
}

// TableName returns the table name for the Decision model.
func (Decision) TableName() string {
	return "decisions"
}

// Models lists every persisted model in migration order.
func Models() []any {
	return []any{&Artifact{}, &Report{}, &AgentMessage{}, &Decision{}}
}
