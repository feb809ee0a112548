package app

import (
	"gorm.io/gorm"

	"github.com/planhaus/planhaus-backend/internal/handlers"
	"github.com/planhaus/planhaus-backend/internal/platform/logger"
)

type Handlers struct {
	Healthcheck *handlers.HealthcheckHandler
	DocumentSet *handlers.DocumentSetHandler
	Report      *handlers.ReportHandler
	Retrieval   *handlers.RetrievalHandler
	QueueAdmin  *handlers.QueueAdminHandler
	Progress    *handlers.ProgressHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, serviceset Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Healthcheck: handlers.NewHealthcheckHandler(db),
		DocumentSet: handlers.NewDocumentSetHandler(serviceset.DocumentSet),
		Report:      handlers.NewReportHandler(serviceset.Report),
		Retrieval:   handlers.NewRetrievalHandler(serviceset.Retrieval),
		QueueAdmin:  handlers.NewQueueAdminHandler(clients.Queue),
		Progress:    handlers.NewProgressHandler(clients.ProgressBus),
	}
}
