package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/expiry-notifier/internal/api/dto"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/queue"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// QueueHandler exposes the delivery queue for inspection and cleanup.
type QueueHandler struct {
	queue *queue.DeliveryQueue
}

// NewQueueHandler constructs handler.
func NewQueueHandler(deliveryQueue *queue.DeliveryQueue) *QueueHandler {
	return &QueueHandler{queue: deliveryQueue}
}

// List GET /api/queue.
func (h *QueueHandler) List(c *fiber.Ctx) error {
	items, err := h.queue.List(c.Context())
	if err != nil {
		return err
	}
	resp := dto.QueueListResponse{Items: make([]dto.QueueItemResponse, 0, len(items))}
	for i := range items {
		resp.Items = append(resp.Items, queueItemResponse(&items[i]))
		switch items[i].Status {
		case domain.QueueItemFailed:
			resp.Failed++
		default:
			resp.Pending++
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Delete DELETE /api/queue/:id.
func (h *QueueHandler) Delete(c *fiber.Ctx) error {
	if err := h.queue.Remove(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return apperrors.NewNotFound("queue item", map[string]any{"id": c.Params("id")})
		}
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Clear DELETE /api/queue.
func (h *QueueHandler) Clear(c *fiber.Ctx) error {
	if err := h.queue.Clear(c.Context()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func queueItemResponse(item *domain.QueueItem) dto.QueueItemResponse {
	return dto.QueueItemResponse{
		ID:           item.ID,
		ScheduledFor: item.ScheduledFor,
		Recipient:    item.Recipient,
		CC:           item.CC,
		Subject:      item.Subject,
		ProfileID:    item.ProfileID,
		ProfileName:  item.ProfileName,
		Status:       item.Status,
		RetryCount:   item.RetryCount,
		CreatedAt:    item.CreatedAt,
		LastError:    item.LastError,
	}
}
