// Package document defines the persistent model for curated documents and
// their embedded chunks, and the PostgreSQL store that manages them.
//
// A document moves through a fixed lifecycle: it is created pending, marked
// processing while its chunks are embedded, and approved once every chunk is
// committed. Only approved documents participate in retrieval. Deletion is a
// soft archive: the document drops out of future retrieval but historical
// evidence entries, which snapshot cited text, are never touched.
package document

import (
	"time"

	"github.com/google/uuid"
)

// Status is a document lifecycle state.
type Status string

// Document lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusArchived   Status = "archived"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusApproved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// Recognized document types for curated compliance material.
const (
	TypeSOP    = "sop"
	TypePolicy = "policy"
	TypeAudit  = "audit"
	TypeManual = "manual"
	TypeReport = "report"
)

// ValidType reports whether docType is a recognized document type.
func ValidType(docType string) bool {
	switch docType {
	case TypeSOP, TypePolicy, TypeAudit, TypeManual, TypeReport:
		return true
	}
	return false
}

// Document is a curated source document.
type Document struct {
	ID         uuid.UUID
	Owner      string
	Title      string
	Content    string
	DocType    string
	Status     Status
	ChunkCount int
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chunk is a bounded contiguous slice of document text with its embedding.
// Chunks are immutable; content edits require re-ingesting the document.
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Index      int
	Text       string
	Embedding  []float32
	TokenCount int
}

// NewChunk is the input for committing one chunk of a document.
// Index values must be 0-based and contiguous.
type NewChunk struct {
	Index      int
	Text       string
	Embedding  []float32
	TokenCount int
}

// ScannedChunk pairs a chunk with its parent document's metadata as returned
// by Store.ScanChunks. The retriever scores these candidates.
type ScannedChunk struct {
	Chunk    Chunk
	DocID    uuid.UUID
	Title    string
	DocType  string
	Created  time.Time
	Metadata map[string]string
}
