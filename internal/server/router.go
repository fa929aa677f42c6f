package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nestform/nestform-backend/internal/handlers"
	"github.com/nestform/nestform-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware *middleware.AuthMiddleware
	ModuleHandler  *handlers.ModuleHandler
	FormHandler    *handlers.FormHandler
	SectionHandler *handlers.SectionHandler
	FieldHandler   *handlers.FieldHandler
	SubformHandler *handlers.SubformHandler
	RecordHandler  *handlers.RecordHandler
	LookupHandler  *handlers.LookupHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("nestform-backend"))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)

	// ===============
	// || Protected ||
	// ===============
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Modules
	api.POST("/modules", cfg.ModuleHandler.CreateModule)
	api.GET("/modules", cfg.ModuleHandler.GetModuleTree)
	api.GET("/modules/:moduleId", cfg.ModuleHandler.GetModule)
	api.PUT("/modules/:moduleId", cfg.ModuleHandler.UpdateModule)
	api.DELETE("/modules/:moduleId", cfg.ModuleHandler.DeleteModule)
	api.GET("/modules/:moduleId/forms", cfg.FormHandler.ListFormsByModule)

	// Forms
	api.POST("/forms", cfg.FormHandler.CreateForm)
	api.GET("/forms/:formId", cfg.FormHandler.GetForm)
	api.PUT("/forms/:formId", cfg.FormHandler.UpdateForm)
	api.DELETE("/forms/:formId", cfg.FormHandler.DeleteForm)

	// Sections
	api.POST("/sections", cfg.SectionHandler.CreateSection)
	api.PUT("/sections/:sectionId", cfg.SectionHandler.UpdateSection)
	api.GET("/sections/:sectionId/counts", cfg.SectionHandler.CountSectionItems)
	api.DELETE("/sections/:sectionId", cfg.SectionHandler.DeleteSection)

	// Fields
	api.POST("/fields", cfg.FieldHandler.CreateField)
	api.PUT("/fields/:fieldId", cfg.FieldHandler.UpdateField)
	api.DELETE("/fields/:fieldId", cfg.FieldHandler.DeleteField)

	// Subforms
	api.POST("/subforms", cfg.SubformHandler.CreateSubform)
	api.DELETE("/subforms/:subformId", cfg.SubformHandler.DeleteSubform)

	// Records
	api.POST("/forms/:formId/records", cfg.RecordHandler.CreateRecord)
	api.GET("/forms/:formId/records", cfg.RecordHandler.ListRecords)
	api.GET("/forms/:formId/records/count", cfg.RecordHandler.CountRecords)
	api.GET("/records/:recordId", cfg.RecordHandler.GetRecord)
	api.PUT("/records/:recordId", cfg.RecordHandler.UpdateRecord)
	api.DELETE("/records/:recordId", cfg.RecordHandler.DeleteRecord)

	// Lookups
	api.GET("/forms/:formId/lookup-sources", cfg.LookupHandler.GetLookupSources)
	api.GET("/forms/:formId/linked-forms", cfg.LookupHandler.GetLinkedRecords)

	return router
}
