// Package document drives the statement pipeline: PDF upload, LLM
// extraction with focused retries, and the ledger commit.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.DocumentService = (*Service)(nil)

const (
	pdfCategory = "documents"
	// llmMaxTokens bounds each extraction call.
	llmMaxTokens = 16384
	// focusedRetries is how many times one missing section is retried.
	focusedRetries = 1
)

var pdfMagic = []byte("%PDF-")

// Service orchestrates document parsing and the ledger commit.
type Service struct {
	storage   interfaces.StorageManager
	llm       interfaces.LLMProvider
	quotes    interfaces.QuoteService
	replay    interfaces.ReplayService
	reconcile interfaces.ReconcileService
	snapshots interfaces.SnapshotService
	fund      interfaces.FundService
	logger    *common.Logger

	registry    *registry
	maxPDFBytes int64
}

// NewService creates a new document service.
func NewService(
	storage interfaces.StorageManager,
	llm interfaces.LLMProvider,
	quotes interfaces.QuoteService,
	replaySvc interfaces.ReplayService,
	reconcileSvc interfaces.ReconcileService,
	snapshotSvc interfaces.SnapshotService,
	fundSvc interfaces.FundService,
	maxPDFBytes int64,
	logger *common.Logger,
) *Service {
	if maxPDFBytes <= 0 {
		maxPDFBytes = 20 << 20
	}
	return &Service{
		storage:     storage,
		llm:         llm,
		quotes:      quotes,
		replay:      replaySvc,
		reconcile:   reconcileSvc,
		snapshots:   snapshotSvc,
		fund:        fundSvc,
		logger:      logger,
		registry:    defaultRegistry(),
		maxPDFBytes: maxPDFBytes,
	}
}

// Upload validates and stores a PDF and creates the document record in
// PENDING state.
func (s *Service) Upload(ctx context.Context, userID, accountID string, docType models.DocumentType, fileName string, data []byte) (*models.Document, error) {
	if _, err := s.registry.lookup(docType); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", models.ErrValidation)
	}
	if int64(len(data)) > s.maxPDFBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", models.ErrValidation, s.maxPDFBytes)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: not a PDF file", models.ErrValidation)
	}

	doc := &models.Document{
		ID:            uuid.NewString(),
		UserID:        userID,
		AccountID:     accountID,
		DocType:       docType,
		FileName:      fileName,
		FileSize:      int64(len(data)),
		PageCount:     countPages(data),
		ParsingStatus: models.ParsePending,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	doc.FilePath = pdfCategory + "/" + doc.ID + ".pdf"

	if err := s.storage.Files().SaveFile(ctx, pdfCategory, doc.ID+".pdf", data, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store PDF: %w", err)
	}
	if err := s.storage.Documents().Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document", doc.ID).
		Str("type", string(docType)).
		Int64("bytes", doc.FileSize).
		Int("pages", doc.PageCount).
		Msg("Document uploaded")
	return doc, nil
}

func countPages(data []byte) int {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}

// Parse runs the extraction loop: the full prompt first, then one focused
// retry per missing section. The normalized statement is stored on the
// document; failures mark it FAILED with the error retained.
func (s *Service) Parse(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.storage.Documents().Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	parser, err := s.registry.lookup(doc.DocType)
	if err != nil {
		return nil, err
	}

	data, _, err := s.storage.Files().GetFile(ctx, pdfCategory, doc.ID+".pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to load PDF: %w", err)
	}

	doc.ParsingStatus = models.ParseProcessing
	doc.ParsingError = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := s.storage.Documents().Update(ctx, doc); err != nil {
		return nil, err
	}

	stmt, err := s.extract(ctx, parser, data)
	if err != nil {
		doc.ParsingStatus = models.ParseFailed
		doc.ParsingError = err.Error()
		doc.UpdatedAt = time.Now().UTC()
		if updateErr := s.storage.Documents().Update(ctx, doc); updateErr != nil {
			return nil, updateErr
		}
		return doc, err
	}

	raw, err := json.Marshal(stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode statement: %w", err)
	}

	now := time.Now().UTC()
	doc.ParsingStatus = models.ParseCompleted
	doc.RawExtracted = raw
	doc.ParsedAt = &now
	doc.UpdatedAt = now
	if err := s.storage.Documents().Update(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("document", doc.ID).
		Int("transactions", len(stmt.Transactions)).
		Int("cash_movements", len(stmt.CashMovements)).
		Int("stock_positions", len(stmt.StockPositions)).
		Msg("Document parsed")
	return doc, nil
}

func (s *Service) extract(ctx context.Context, parser Parser, data []byte) (*models.ParsedStatement, error) {
	text, err := s.llm.GenerateFromPDF(ctx, data, parser.PromptTemplate(), llmMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProvider, err)
	}

	stmt, err := parser.Decode([]byte(text))
	if err != nil {
		return nil, err
	}

	for _, section := range parser.Validate(stmt) {
		prompt, ok := parser.FocusedPrompt(section)
		if !ok {
			continue
		}
		for attempt := 0; attempt <= focusedRetries; attempt++ {
			retryText, err := s.llm.GenerateFromPDF(ctx, data, prompt, llmMaxTokens)
			if err != nil {
				s.logger.Warn().Err(err).Str("section", section).Msg("Focused retry failed")
				continue
			}
			partial, err := parser.Decode([]byte(retryText))
			if err != nil {
				continue
			}
			if mergeSection(stmt, partial, section) {
				break
			}
		}
	}

	if !stmt.HasAnySection() {
		return nil, fmt.Errorf("%w: no usable sections extracted", models.ErrParseFailed)
	}
	return stmt, nil
}

// mergeSection copies one section from a focused-retry result into the
// statement. Reports whether the section is now populated.
func mergeSection(dst, src *models.ParsedStatement, section string) bool {
	switch section {
	case sectionPeriod:
		if src.Period != nil && src.Period.EndDate != "" {
			dst.Period = src.Period
		}
	case sectionTransactions:
		if len(src.Transactions) > 0 {
			dst.Transactions = src.Transactions
		}
	case sectionCashMovements:
		if len(src.CashMovements) > 0 {
			dst.CashMovements = src.CashMovements
		}
	case sectionStockPositions:
		if len(src.StockPositions) > 0 {
			dst.StockPositions = src.StockPositions
		}
	case sectionFixedIncome:
		if len(src.FixedIncomePositions) > 0 {
			dst.FixedIncomePositions = src.FixedIncomePositions
		}
	case sectionInvestmentFunds:
		if len(src.InvestmentFundPositions) > 0 {
			dst.InvestmentFundPositions = src.InvestmentFundPositions
		}
	case sectionConsolidated:
		if src.ConsolidatedPosition != nil {
			dst.ConsolidatedPosition = src.ConsolidatedPosition
		}
	}
	return !sectionEmpty(dst, section)
}

// Get returns the document.
func (s *Service) Get(ctx context.Context, documentID string) (*models.Document, error) {
	return s.storage.Documents().Get(ctx, documentID)
}

// ListByUser returns the user's documents, optionally filtered by status.
func (s *Service) ListByUser(ctx context.Context, userID string, status models.ParsingStatus) ([]*models.Document, error) {
	return s.storage.Documents().ListByUser(ctx, userID, status)
}

// Delete removes the document record and its stored PDF. Ledger entries
// committed from it are kept.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	doc, err := s.storage.Documents().Get(ctx, documentID)
	if err != nil {
		return err
	}
	if err := s.storage.Files().DeleteFile(ctx, pdfCategory, doc.ID+".pdf"); err != nil {
		s.logger.Warn().Err(err).Str("document", doc.ID).Msg("PDF removal failed")
	}
	return s.storage.Documents().Delete(ctx, documentID)
}
