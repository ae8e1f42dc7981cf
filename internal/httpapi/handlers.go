package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"autocare-crm/internal/audit"
	"autocare-crm/internal/auth"
	"autocare-crm/internal/followup"
	"autocare-crm/internal/notify"
	"autocare-crm/internal/optout"
	"autocare-crm/internal/reporting"
	"autocare-crm/internal/revenue"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	FollowUp  *followup.Service
	Revenue   *revenue.Service
	OptOut    *optout.Service
	Notify    *notify.Service
	Reporting *reporting.Service
	Audit     *audit.Service
}

// abortErr maps service sentinel errors onto HTTP statuses.
func abortErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, followup.ErrNotFound),
		errors.Is(err, revenue.ErrNotFound),
		errors.Is(err, optout.ErrNotFound),
		errors.Is(err, notify.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, followup.ErrInvalidArgument),
		errors.Is(err, revenue.ErrInvalidArgument),
		errors.Is(err, optout.ErrInvalidArgument),
		errors.Is(err, notify.ErrInvalidArgument),
		errors.Is(err, reporting.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, followup.ErrDuplicateCase),
		errors.Is(err, optout.ErrDuplicateOpen):
		status = http.StatusConflict
	case errors.Is(err, followup.ErrInvalidTransition),
		errors.Is(err, followup.ErrLifecycleOver),
		errors.Is(err, revenue.ErrInvalidStatus),
		errors.Is(err, revenue.ErrAlreadyRecovered),
		errors.Is(err, revenue.ErrOverRecovery),
		errors.Is(err, optout.ErrInvalidStatus),
		errors.Is(err, optout.ErrAlreadyApplied),
		errors.Is(err, notify.ErrBadReceipt):
		status = http.StatusConflict
	case errors.Is(err, followup.ErrApprovalOrder),
		errors.Is(err, optout.ErrApprovalOrder):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, revenue.ErrCategoryExcluded):
		status = http.StatusForbidden
	case errors.Is(err, reporting.ErrNoData):
		status = http.StatusNotFound
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func identity(c *gin.Context) (userID, role string) {
	userID, _ = auth.UserID(c.Request.Context())
	role, _ = auth.Role(c.Request.Context())
	return userID, role
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Cases ---

func (h Handlers) CreateCase(c *gin.Context) {
	var req followup.CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	created, err := h.FollowUp.CreateCase(c.Request.Context(), req)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h Handlers) GetCase(c *gin.Context) {
	got, err := h.FollowUp.GetCase(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

// ApproveStage approves stage creation at the caller's level.
// RBAC: manager or admin; the level comes from the caller's role.
func (h Handlers) ApproveStage(c *gin.Context) {
	userID, role := identity(c)
	level := followup.ApprovalManager
	if role == "admin" {
		level = followup.ApprovalAdmin
	}
	got, err := h.FollowUp.ApproveStage(c.Request.Context(), c.Param("case_id"), userID, level)
	if err != nil {
		abortErr(c, err)
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogStageApproved(c.Request.Context(), userID, role, c.ClientIP(), got.ID, got.Stage.Code())
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) StartCall(c *gin.Context) {
	userID, _ := identity(c)
	got, err := h.FollowUp.StartCall(c.Request.Context(), c.Param("case_id"), userID)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) ExecuteCall(c *gin.Context) {
	var req followup.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, role := identity(c)
	if req.Agent == "" {
		req.Agent = userID
	}
	res, err := h.FollowUp.ExecuteCall(c.Request.Context(), c.Param("case_id"), req)
	if err != nil {
		abortErr(c, err)
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogCallRecorded(c.Request.Context(), userID, role, c.ClientIP(), res.Case.ID, string(req.Outcome), "")
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) AdvanceCase(c *gin.Context) {
	got, err := h.FollowUp.Advance(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) ListCaseCallbacks(c *gin.Context) {
	got, err := h.FollowUp.ListCallbacks(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"callbacks": got})
}

func (h Handlers) ListCaseMessages(c *gin.Context) {
	got, err := h.Notify.ListForCase(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": got})
}

func (h Handlers) ListCaseAuditTrail(c *gin.Context) {
	got, err := h.Audit.ListForCase(c.Request.Context(), c.Param("case_id"), 100)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": got})
}

// --- Callbacks ---

type callbackOutcomeRequest struct {
	Notes string `json:"notes,omitempty"`
}

func (h Handlers) StartCallback(c *gin.Context) {
	userID, _ := identity(c)
	got, err := h.FollowUp.StartCallback(c.Request.Context(), c.Param("callback_id"), userID)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) CompleteCallback(c *gin.Context) {
	var req callbackOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	got, err := h.FollowUp.CompleteCallback(c.Request.Context(), c.Param("callback_id"), req.Notes)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) FailCallback(c *gin.Context) {
	var req callbackOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	got, err := h.FollowUp.FailCallback(c.Request.Context(), c.Param("callback_id"), req.Notes)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

// --- Revenue ---

func (h Handlers) CreateProposal(c *gin.Context) {
	var req revenue.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, _ := identity(c)
	if req.ProposedBy == "" {
		req.ProposedBy = userID
	}
	got, err := h.Revenue.Create(c.Request.Context(), req)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, got)
}

func (h Handlers) GetProposal(c *gin.Context) {
	got, err := h.Revenue.Get(c.Request.Context(), c.Param("proposal_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) AcceptProposal(c *gin.Context) {
	got, err := h.Revenue.Accept(c.Request.Context(), c.Param("proposal_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	h.logRevenue(c, got, "accepted")
	c.JSON(http.StatusOK, got)
}

type voucherRequest struct {
	ActualAmount int64 `json:"actual_amount,omitempty"`
}

func (h Handlers) ConvertProposalToVoucher(c *gin.Context) {
	var req voucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, v, err := h.Revenue.ConvertToVoucher(c.Request.Context(), c.Param("proposal_id"), req.ActualAmount)
	if err != nil {
		abortErr(c, err)
		return
	}
	h.logRevenue(c, p, "voucher_created")
	c.JSON(http.StatusOK, gin.H{"proposal": p, "voucher": v})
}

func (h Handlers) CompleteProposal(c *gin.Context) {
	got, err := h.Revenue.Complete(c.Request.Context(), c.Param("proposal_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	h.logRevenue(c, got, "completed")
	c.JSON(http.StatusOK, got)
}

type cancelProposalRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h Handlers) CancelProposal(c *gin.Context) {
	var req cancelProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	got, err := h.Revenue.Cancel(c.Request.Context(), c.Param("proposal_id"), req.Reason)
	if err != nil {
		abortErr(c, err)
		return
	}
	h.logRevenue(c, got, "cancelled")
	c.JSON(http.StatusOK, got)
}

func (h Handlers) ListCaseProposals(c *gin.Context) {
	got, err := h.Revenue.ListForCase(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": got})
}

func (h Handlers) CaseRevenueSummary(c *gin.Context) {
	got, err := h.Revenue.Summary(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) logRevenue(c *gin.Context, p revenue.Proposal, change string) {
	if h.Audit == nil {
		return
	}
	userID, role := identity(c)
	_ = h.Audit.LogRevenueChange(c.Request.Context(), userID, role, c.ClientIP(), p.CaseID, p.ID, change)
}

// --- Losses ---

func (h Handlers) ListCaseLosses(c *gin.Context) {
	got, err := h.Revenue.ListLosses(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"losses": got})
}

func (h Handlers) GetLoss(c *gin.Context) {
	got, err := h.Revenue.GetLoss(c.Request.Context(), c.Param("loss_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

type recoverLossRequest struct {
	Amount int64  `json:"amount"`
	Notes  string `json:"notes,omitempty"`
}

func (h Handlers) RecoverLoss(c *gin.Context) {
	var req recoverLossRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	got, err := h.Revenue.MarkRecovered(c.Request.Context(), c.Param("loss_id"), req.Amount, req.Notes)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

// --- Opt-outs ---

func (h Handlers) CreateOptOut(c *gin.Context) {
	var req optout.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, _ := identity(c)
	if req.RequestedBy == "" {
		req.RequestedBy = userID
	}
	got, err := h.OptOut.Create(c.Request.Context(), req)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, got)
}

func (h Handlers) GetOptOut(c *gin.Context) {
	got, err := h.OptOut.Get(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) ListCaseOptOuts(c *gin.Context) {
	got, err := h.OptOut.ListForCase(c.Request.Context(), c.Param("case_id"))
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": got})
}

// ApproveOptOut routes the decision by the caller's role: managers record
// first-level approval, admins record the final one (which also applies the
// request to the case).
func (h Handlers) ApproveOptOut(c *gin.Context) {
	userID, role := identity(c)
	var (
		got optout.Request
		err error
	)
	if role == "admin" {
		got, err = h.OptOut.ApproveByAdmin(c.Request.Context(), c.Param("request_id"), userID)
	} else {
		got, err = h.OptOut.ApproveByManager(c.Request.Context(), c.Param("request_id"), userID)
	}
	if err != nil {
		abortErr(c, err)
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogOptOutDecision(c.Request.Context(), userID, role, c.ClientIP(), got.CaseID, got.ID, string(got.Status))
	}
	c.JSON(http.StatusOK, got)
}

type rejectOptOutRequest struct {
	Comment string `json:"comment,omitempty"`
}

func (h Handlers) RejectOptOut(c *gin.Context) {
	var req rejectOptOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	userID, role := identity(c)
	got, err := h.OptOut.Reject(c.Request.Context(), c.Param("request_id"), userID, req.Comment)
	if err != nil {
		abortErr(c, err)
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogOptOutDecision(c.Request.Context(), userID, role, c.ClientIP(), got.CaseID, got.ID, "rejected")
	}
	c.JSON(http.StatusOK, got)
}

// --- Message receipts ---

type receiptRequest struct {
	At time.Time `json:"at"`
}

func (h Handlers) ConfirmDelivered(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	got, err := h.Notify.ConfirmDelivered(c.Request.Context(), c.Param("message_id"), req.At)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) ConfirmRead(c *gin.Context) {
	var req receiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.At.IsZero() {
		req.At = time.Now()
	}
	got, err := h.Notify.ConfirmRead(c.Request.Context(), c.Param("message_id"), req.At)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

// --- Reports ---

func (h Handlers) CorrelationReport(c *gin.Context) {
	months := 0
	if raw := c.Query("months"); raw != "" {
		var err error
		months, err = parsePositiveInt(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "months must be a positive integer"})
			return
		}
	}
	got, err := h.Reporting.Correlation(c.Request.Context(), months)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func (h Handlers) FailureBreakdown(c *gin.Context) {
	months := 0
	if raw := c.Query("months"); raw != "" {
		var err error
		months, err = parsePositiveInt(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "months must be a positive integer"})
			return
		}
	}
	got, err := h.Reporting.Breakdown(c.Request.Context(), months)
	if err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, got)
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > 120 {
		return 0, errors.New("out of range")
	}
	return n, nil
}
