// Package tasks defines the message payloads carried by the ingest queue.
package tasks

// IngestTask describes one document ingestion job.
type IngestTask struct {
	DocumentID uint   `json:"document_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
}
