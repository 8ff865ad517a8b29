package billing

import "github.com/lapublica/platform/internal/pkg/apperr"

// Sentinel errors for the billing service layer.
var (
	ErrPlanNotFound    = apperr.NotFound("plan not found")
	ErrCompanyNotFound = apperr.NotFound("company not found")
	ErrSamePlan        = apperr.Conflict("company is already on this plan")
	ErrPlanInactive    = apperr.Invalid("plan is not available")
	ErrPlanChanged     = apperr.Conflict("company plan changed concurrently")
	ErrPlanNameTaken   = apperr.Conflict("a plan with this name already exists")
	ErrForbidden       = apperr.ErrForbidden
)
