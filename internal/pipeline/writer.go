package pipeline

import "honeytrail/pkg/models"

// AnalysisWriter publishes finished analysis records to an external sink.
type AnalysisWriter interface {
	WriteAnalyses(records []*models.AnalysisRecord) error
	Close() error
}
