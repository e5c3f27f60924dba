// Package service holds the business logic between HTTP handlers and the
// repositories, pipeline and retrieval engine.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"campus-rag-go/internal/model"
	"campus-rag-go/internal/repository"
	"campus-rag-go/pkg/log"
	"campus-rag-go/pkg/storage"
	"campus-rag-go/pkg/tasks"
	"campus-rag-go/pkg/vecindex"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateContent means a byte-identical document is already ingested.
var ErrDuplicateContent = errors.New("identical document already exists")

// ErrUnsupportedFileType means the upload extension is not ingestible.
var ErrUnsupportedFileType = errors.New("unsupported file type")

var supportedFileTypes = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"txt":  {},
	"xml":  {},
}

// UploadParams carries the metadata attached to an uploaded file.
type UploadParams struct {
	Filename   string
	Department string
	Semester   int
	Subject    string
	UploadedBy uint
}

// DocumentService manages the document lifecycle: upload, listing, deletion.
type DocumentService interface {
	// Upload stores the file, records its metadata and enqueues ingestion.
	Upload(ctx context.Context, data []byte, params UploadParams) (*model.Document, error)
	List() ([]model.Document, error)
	Get(id uint) (*model.Document, error)
	// Delete removes the document, its chunks, its vectors and its stored
	// object, in that order.
	Delete(ctx context.Context, id uint) error
}

type documentService struct {
	docRepo   repository.DocumentRepository
	chunkRepo repository.ChunkRepository
	fileStore storage.FileStore
	index     *vecindex.Index
	enqueue   func(tasks.IngestTask) error
}

// NewDocumentService creates a DocumentService. enqueue hands ingestion tasks
// to the queue; in production this is kafka.ProduceIngestTask.
func NewDocumentService(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	fileStore storage.FileStore,
	index *vecindex.Index,
	enqueue func(tasks.IngestTask) error,
) DocumentService {
	return &documentService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		fileStore: fileStore,
		index:     index,
		enqueue:   enqueue,
	}
}

func fileTypeOf(filename string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if _, ok := supportedFileTypes[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
	return ext, nil
}

func (s *documentService) Upload(ctx context.Context, data []byte, params UploadParams) (*model.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("uploaded file is empty")
	}
	fileType, err := fileTypeOf(params.Filename)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	// Content-level dedup: the hash is unique across live documents.
	if _, err := s.docRepo.FindByHash(hash); err == nil {
		return nil, ErrDuplicateContent
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for duplicates: %w", err)
	}

	objectName := fmt.Sprintf("uploads/%s_%s", uuid.NewString(), params.Filename)
	if err := s.fileStore.Put(ctx, objectName, data); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	doc := &model.Document{
		Filename:   params.Filename,
		FileType:   fileType,
		FileHash:   hash,
		ObjectName: objectName,
		Origin:     model.OriginUploaded,
		Department: params.Department,
		Semester:   params.Semester,
		Subject:    params.Subject,
		UploadedBy: params.UploadedBy,
		IsActive:   true,
	}
	if err := s.docRepo.Create(doc); err != nil {
		// Roll the object back so storage does not accumulate orphans.
		if rmErr := s.fileStore.Remove(ctx, objectName); rmErr != nil {
			log.Warnf("failed to remove orphaned object %s: %v", objectName, rmErr)
		}
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	if err := s.enqueue(tasks.IngestTask{
		DocumentID: doc.ID,
		ObjectName: doc.ObjectName,
		FileName:   doc.Filename,
		FileType:   doc.FileType,
	}); err != nil {
		// The record and object are in place; ingestion can be retried.
		log.Errorf("failed to enqueue ingestion for document %d: %v", doc.ID, err)
		return nil, fmt.Errorf("failed to enqueue ingestion: %w", err)
	}

	log.Infof("document %d (%s) uploaded, ingestion queued", doc.ID, doc.Filename)
	return doc, nil
}

func (s *documentService) List() ([]model.Document, error) {
	return s.docRepo.FindAll()
}

func (s *documentService) Get(id uint) (*model.Document, error) {
	return s.docRepo.FindByID(id)
}

func (s *documentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return err
	}

	// Vectors first: a chunk row without a vector is recoverable, a vector
	// without a chunk row is a dangling search hit.
	chunkIDs, err := s.chunkRepo.IDsByDocumentID(id)
	if err != nil {
		return fmt.Errorf("failed to list chunks for document %d: %w", id, err)
	}
	if len(chunkIDs) > 0 {
		if err := s.index.Remove(chunkIDs); err != nil {
			return fmt.Errorf("failed to remove vectors for document %d: %w", id, err)
		}
	}

	if err := s.docRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}

	if err := s.fileStore.Remove(ctx, doc.ObjectName); err != nil {
		log.Warnf("failed to remove object %s for deleted document %d: %v", doc.ObjectName, id, err)
	}

	log.Infof("document %d deleted with %d chunks", id, len(chunkIDs))
	return nil
}
