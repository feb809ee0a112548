package app

import (
	"gorm.io/gorm"

	"github.com/planhaus/planhaus-backend/internal/data/repos/documents"
	"github.com/planhaus/planhaus-backend/internal/data/repos/reports"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

type Repos struct {
	DocumentSet       documents.DocumentSetRepo
	DocumentSetMember documents.DocumentSetMemberRepo
	DocumentChunk     documents.DocumentChunkRepo
	ReportSection     reports.ReportSectionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		DocumentSet:       documents.NewDocumentSetRepo(db, log),
		DocumentSetMember: documents.NewDocumentSetMemberRepo(db, log),
		DocumentChunk:     documents.NewDocumentChunkRepo(db, log),
		ReportSection:     reports.NewReportSectionRepo(db, log),
	}
}
