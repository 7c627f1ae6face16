// handlers/referral_routes.go
package handlers

import (
	"strconv"

	"referral-ledger/middleware"
	"referral-ledger/models"
	"referral-ledger/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type commissionEventRequest struct {
	ReferredUserID string           `json:"referred_user_id"`
	EventType      models.EventType `json:"event_type"`
	MembershipFee  decimal.Decimal  `json:"membership_fee"`
	EventID        string           `json:"event_id"`
}

func SetupReferralRoutes(app *fiber.App, commissions *services.CommissionService, stats *services.StatsService, notifications *services.NotificationService) {
	secured := app.Group("/user", middleware.UserContextMiddleware())

	secured.Get("/referrals/stats", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		view, err := stats.GetUserReferralStats(c.UserContext(), userID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load referral stats",
				"cause": err.Error(),
			})
		}
		return c.JSON(view)
	})

	secured.Get("/referrals/commissions", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		out, err := stats.ListCommissions(c.UserContext(), userID, page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list commissions",
				"cause": err.Error(),
			})
		}
		return c.JSON(out)
	})

	secured.Get("/notifications", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		out, err := notifications.ListUnviewed(c.UserContext(), userID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to list notifications",
				"cause": err.Error(),
			})
		}
		return c.JSON(out)
	})

	secured.Post("/notifications/viewed", func(c *fiber.Ctx) error {
		var req struct {
			IDs []string `json:"ids"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		n, err := notifications.MarkViewed(c.UserContext(), c.Locals("user_id").(string), req.IDs)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update notifications"})
		}
		return c.JSON(fiber.Map{"updated": n})
	})

	secured.Get("/notifications/stream", notifications.StreamUserNotificationsSSE)

	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/commissions/events", func(c *fiber.Ctx) error {
		var req commissionEventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		result := commissions.ProcessCommissions(c.UserContext(), req.ReferredUserID, req.EventType, req.MembershipFee, req.EventID)
		if !result.Success {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
		}
		return c.JSON(result)
	})
}
