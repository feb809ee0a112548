package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/data/repos/reports"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/jobs/queue"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

// ReportService queues report-section generation. A section is addressed by
// (report, index); requesting the same slot again regenerates it.
type ReportService interface {
	QueueSection(ctx context.Context, reportID uuid.UUID, sectionIndex int, query string, documentSetIDs []uuid.UUID) (*types.ReportSection, string, error)
	GetSection(ctx context.Context, reportID uuid.UUID, sectionIndex int) (*types.ReportSection, error)
}

type reportService struct {
	log      *logger.Logger
	sections reports.ReportSectionRepo
	queue    queue.Client
}

func NewReportService(baseLog *logger.Logger, sections reports.ReportSectionRepo, q queue.Client) ReportService {
	return &reportService{
		log:      baseLog.With("service", "ReportService"),
		sections: sections,
		queue:    q,
	}
}

func (s *reportService) QueueSection(ctx context.Context, reportID uuid.UUID, sectionIndex int, query string, documentSetIDs []uuid.UUID) (*types.ReportSection, string, error) {
	if query == "" {
		return nil, "", fmt.Errorf("missing section query")
	}
	if len(documentSetIDs) == 0 {
		return nil, "", fmt.Errorf("at least one document set is required")
	}

	section, err := s.sections.UpsertQueued(dbctx.Context{Ctx: ctx}, reportID, sectionIndex, query)
	if err != nil {
		return nil, "", fmt.Errorf("queue section row: %w", err)
	}

	jobID, err := s.queue.EnqueueReportSection(ctx, reportID, sectionIndex, query, documentSetIDs)
	if err != nil {
		return nil, "", fmt.Errorf("enqueue section generation: %w", err)
	}
	s.log.Info("Report section queued", "report_id", reportID, "section_index", sectionIndex, "job_id", jobID)
	return section, jobID, nil
}

func (s *reportService) GetSection(ctx context.Context, reportID uuid.UUID, sectionIndex int) (*types.ReportSection, error) {
	return s.sections.GetByReportAndIndex(dbctx.Context{Ctx: ctx}, reportID, sectionIndex)
}
