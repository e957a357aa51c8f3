package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expiry-notifier/internal/api/dto"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/service"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// JobsHandler runs notification jobs for a profile.
type JobsHandler struct {
	profiles *service.ProfileService
	jobs     *service.JobService
}

// NewJobsHandler constructs handler.
func NewJobsHandler(profileService *service.ProfileService, jobService *service.JobService) *JobsHandler {
	return &JobsHandler{profiles: profileService, jobs: jobService}
}

// Run POST /api/profiles/:id/run. A run that aborts mid-way still answers
// 200 so the operator gets the run log; the failure is carried in the error
// field.
func (h *JobsHandler) Run(c *fiber.Ctx) error {
	profile, err := h.profiles.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	var req dto.RunJobRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	mode, ok := domain.ParseJobMode(req.Mode)
	if !ok {
		return apperrors.NewValidationError("mode must be preview, test or live", map[string]any{"mode": req.Mode})
	}
	if mode == domain.JobModeTest && req.TestRecipient == "" {
		return apperrors.NewValidationError("test_recipient required in test mode", nil)
	}
	opts := service.RunOptions{Mode: mode, TestRecipient: req.TestRecipient}
	if req.ScheduleAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduleAt)
		if err != nil {
			return apperrors.NewValidationError("schedule_at must be RFC3339", map[string]any{"value": req.ScheduleAt})
		}
		opts.ScheduleAt = &at
	}

	result, runErr := h.jobs.RunJob(c.UserContext(), *profile, opts)
	return c.JSON(fiber.Map{"data": jobResponse(result, runErr)})
}

func jobResponse(result *domain.JobResult, runErr error) dto.RunJobResponse {
	resp := dto.RunJobResponse{
		ProfileID:   result.ProfileID,
		ProfileName: result.ProfileName,
		Mode:        result.Mode,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Counts:      result.Counts,
		Logs:        result.Logs,
		Preview:     result.Preview,
	}
	if runErr != nil {
		resp.Error = apperrors.ToDomainError(runErr).Message
	}
	return resp
}
