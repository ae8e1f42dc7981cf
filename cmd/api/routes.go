package main

import (
	"autocare-crm/internal/httpapi"
	"autocare-crm/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW, caseLockMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// Gateway delivery receipts (public webhook).
	// NOTE: should be protected by gateway signature validation in production.
	r.POST("/webhooks/sms/:message_id/delivered", h.ConfirmDelivered)
	r.POST("/webhooks/sms/:message_id/read", h.ConfirmRead)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// CASE routes. Mutations take the cross-process case lock.
		cases := v1.Group("/cases")
		{
			cases.POST("", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.CreateCase)
			cases.GET("/:case_id", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.GetCase)
			cases.POST("/:case_id/approve", rbac.RequireAnyRole(rbac.RoleManager), caseLockMW, h.ApproveStage)
			cases.POST("/:case_id/calls/start", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), caseLockMW, h.StartCall)
			cases.POST("/:case_id/calls", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), caseLockMW, h.ExecuteCall)
			cases.POST("/:case_id/advance", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), caseLockMW, h.AdvanceCase)
			cases.GET("/:case_id/callbacks", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.ListCaseCallbacks)
			cases.GET("/:case_id/messages", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.ListCaseMessages)
			cases.GET("/:case_id/proposals", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.ListCaseProposals)
			cases.GET("/:case_id/revenue", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.CaseRevenueSummary)
			cases.GET("/:case_id/losses", rbac.RequireAnyRole(rbac.RoleManager), h.ListCaseLosses)
			cases.GET("/:case_id/audit", rbac.RequireAnyRole(rbac.RoleManager), h.ListCaseAuditTrail)
			cases.GET("/:case_id/opt-outs", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.ListCaseOptOuts)
		}

		// CALLBACK routes
		callbacks := v1.Group("/callbacks")
		callbacks.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager))
		{
			callbacks.POST("/:callback_id/start", h.StartCallback)
			callbacks.POST("/:callback_id/complete", h.CompleteCallback)
			callbacks.POST("/:callback_id/fail", h.FailCallback)
		}

		// REVENUE routes
		revenues := v1.Group("/revenues")
		{
			revenues.POST("", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.CreateProposal)
			revenues.GET("/:proposal_id", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.GetProposal)
			revenues.POST("/:proposal_id/accept", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.AcceptProposal)
			revenues.POST("/:proposal_id/voucher", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.ConvertProposalToVoucher)
			revenues.POST("/:proposal_id/complete", rbac.RequireAnyRole(rbac.RoleManager), h.CompleteProposal)
			revenues.POST("/:proposal_id/cancel", rbac.RequireAnyRole(rbac.RoleManager), h.CancelProposal)
		}

		// LOSS routes
		losses := v1.Group("/losses")
		losses.Use(rbac.RequireAnyRole(rbac.RoleManager))
		{
			losses.GET("/:loss_id", h.GetLoss)
			losses.POST("/:loss_id/recover", h.RecoverLoss)
		}

		// OPT-OUT routes. Approval level is derived from the caller's role.
		optOuts := v1.Group("/opt-outs")
		{
			optOuts.POST("", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.CreateOptOut)
			optOuts.GET("/:request_id", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleManager), h.GetOptOut)
			optOuts.POST("/:request_id/approve", rbac.RequireAnyRole(rbac.RoleManager), h.ApproveOptOut)
			optOuts.POST("/:request_id/reject", rbac.RequireAnyRole(rbac.RoleManager), h.RejectOptOut)
		}

		// REPORT routes
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleManager))
		{
			reports.GET("/correlation", h.CorrelationReport)
			reports.GET("/failures", h.FailureBreakdown)
		}
	}
}
