package app

import (
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
	"github.com/planhaus/planhaus-backend/internal/retrieval"
	"github.com/planhaus/planhaus-backend/internal/services"
)

type Services struct {
	DocumentSet services.DocumentSetService
	Report      services.ReportService
	Retrieval   retrieval.Service
}

func wireServices(log *logger.Logger, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")
	return Services{
		DocumentSet: services.NewDocumentSetService(log, reposet.DocumentSet, reposet.DocumentSetMember, clients.Queue),
		Report:      services.NewReportService(log, reposet.ReportSection, clients.Queue),
		Retrieval:   retrieval.NewService(log, clients.OpenAI, reposet.DocumentChunk, reposet.DocumentSetMember),
	}
}
