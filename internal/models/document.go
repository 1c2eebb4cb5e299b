package models

import (
	"encoding/json"
	"time"
)

// DocumentType identifies the kind of source artifact and selects a parser.
type DocumentType string

const (
	DocStatementBTGBR     DocumentType = "STATEMENT_BTG_BR"
	DocStatementBTGCayman DocumentType = "STATEMENT_BTG_CAYMAN"
	DocStatementXP        DocumentType = "STATEMENT_XP"
	DocTradeNote          DocumentType = "TRADE_NOTE"
)

// ParsingStatus is the document parse lifecycle.
type ParsingStatus string

const (
	ParsePending    ParsingStatus = "PENDING"
	ParseProcessing ParsingStatus = "PROCESSING"
	ParseCompleted  ParsingStatus = "COMPLETED"
	ParseFailed     ParsingStatus = "FAILED"
)

// Document is a parsed source artifact (a brokerage PDF).
type Document struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AccountID     string          `json:"account_id,omitempty"`
	DocType       DocumentType    `json:"doc_type"`
	FileName      string          `json:"file_name"`
	FilePath      string          `json:"file_path"`
	FileSize      int64           `json:"file_size"`
	PageCount     int             `json:"page_count,omitempty"`
	ParsingStatus ParsingStatus   `json:"parsing_status"`
	ParsingError  string          `json:"parsing_error,omitempty"`
	ParsedAt      *time.Time      `json:"parsed_at,omitempty"`
	RawExtracted  json.RawMessage `json:"raw_extracted_data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
