package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/casefile/internal/config"
	"github.com/localnerve/casefile/internal/middleware"
	"github.com/localnerve/casefile/internal/ratelimit"
	"gorm.io/gorm"
)

// RegisterRoutes mounts every API route on the /api group
func RegisterRoutes(api fiber.Router, cfg *config.Config, db *gorm.DB, limiter ratelimit.Limiter) {
	authHandler := &AuthHandler{DB: db, SessionTTL: cfg.SessionTTL}
	caseHandler := &CaseHandler{DB: db}
	graphHandler := &GraphHandler{DB: db}
	entityHandler := &EntityHandler{DB: db}
	relationshipHandler := &RelationshipHandler{DB: db}
	evidenceHandler := &EvidenceHandler{DB: db}
	auditHandler := &AuditHandler{DB: db}
	healthHandler := &HealthHandler{DB: db, Config: cfg}

	anyUser := middleware.Authorize(db)
	mutator := middleware.Authorize(db, middleware.Mutators...)

	api.Get("/health", healthHandler.Health)

	// Credential routes are throttled per client IP
	credentials := func(scope string) fiber.Handler {
		return middleware.RateLimit(limiter, scope, cfg.AuthRateLimit, cfg.AuthRateWindow)
	}
	auth := api.Group("/auth")
	auth.Post("/signup", credentials("signup"), authHandler.Signup)
	auth.Post("/verify", credentials("verify"), authHandler.Verify)
	auth.Post("/login", credentials("login"), authHandler.Login)
	auth.Post("/logout", anyUser, authHandler.Logout)
	auth.Get("/me", anyUser, authHandler.Me)
	api.Get("/users", anyUser, authHandler.ListUsers)

	// Cases
	api.Get("/cases", anyUser, caseHandler.ListCases)
	api.Post("/cases", mutator, caseHandler.CreateCase)
	api.Get("/cases/:id", anyUser, caseHandler.GetCase)
	api.Put("/cases/:id", mutator, caseHandler.UpdateCase)
	api.Get("/cases/:id/members", anyUser, caseHandler.ListMembers)
	api.Post("/cases/:id/members", anyUser, caseHandler.AddMember)
	api.Get("/cases/:caseId/entities", anyUser, caseHandler.ListCaseEntities)
	api.Post("/cases/:caseId/entities", mutator, caseHandler.LinkEntity)
	api.Put("/cases/:caseId/entities/:entityId", mutator, caseHandler.UpdateCaseLink)

	// Case canvas
	api.Get("/nodes", anyUser, graphHandler.ListNodes)
	api.Post("/nodes", mutator, graphHandler.CreateNode)
	api.Post("/nodes/place-entity", mutator, graphHandler.PlaceEntity)
	api.Put("/nodes/:id/position", mutator, graphHandler.UpdateNodePosition)
	api.Put("/nodes/:id", mutator, graphHandler.UpdateNodeContent)
	api.Delete("/nodes/:id", mutator, graphHandler.DeleteNode)
	api.Get("/edges", anyUser, graphHandler.ListEdges)
	api.Post("/edges", mutator, graphHandler.CreateEdge)
	api.Put("/edges/:id", mutator, graphHandler.UpdateEdge)
	api.Delete("/edges/:id", mutator, graphHandler.DeleteEdge)

	// Entity registry
	api.Get("/entities", anyUser, entityHandler.SearchEntities)
	api.Post("/entities", mutator, entityHandler.CreateEntity)
	api.Get("/entities/:id", anyUser, entityHandler.GetEntity)
	api.Put("/entities/:id", mutator, entityHandler.UpdateEntity)
	api.Get("/entities/:id/attributes", anyUser, entityHandler.ListAttributes)
	api.Post("/entities/:id/attributes", mutator, entityHandler.AddAttributes)
	api.Put("/entities/:id/attributes/:attrId", mutator, entityHandler.UpdateAttribute)
	api.Delete("/entities/:id/attributes/:attrId", mutator, entityHandler.DeprecateAttribute)
	api.Get("/entities/:id/attributes/:attrId/history", anyUser, entityHandler.AttributeHistory)
	api.Get("/entities/:id/notes", anyUser, entityHandler.ListNotes)
	api.Post("/entities/:id/notes", anyUser, entityHandler.AddNote)
	api.Get("/entities/:id/relationships", anyUser, entityHandler.Relationships)

	// Relationships
	api.Post("/relationships", mutator, relationshipHandler.CreateRelationship)
	api.Get("/relationships/:id", anyUser, relationshipHandler.GetRelationship)
	api.Put("/relationships/:id", mutator, relationshipHandler.UpdateRelationship)

	// Evidence and hypotheses
	api.Get("/evidence", anyUser, evidenceHandler.ListEvidence)
	api.Post("/evidence", mutator, evidenceHandler.CreateEvidence)
	api.Delete("/evidence/:id", mutator, evidenceHandler.DeleteEvidence)
	api.Post("/evidence-links", mutator, evidenceHandler.LinkEvidence)
	api.Get("/hypotheses", anyUser, evidenceHandler.ListHypotheses)
	api.Post("/hypotheses", anyUser, evidenceHandler.CreateHypothesis)
	api.Put("/hypotheses/:id/status", anyUser, evidenceHandler.UpdateHypothesisStatus)

	// Audit
	api.Get("/audit-logs", anyUser, auditHandler.ListAuditLogs)
}
