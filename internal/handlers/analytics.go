package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
)

// AnalyticsHandler serves aggregate store metrics for the admin dashboard.
type AnalyticsHandler struct {
	db *gorm.DB
}

// NewAnalyticsHandler constructs an AnalyticsHandler.
func NewAnalyticsHandler(db *gorm.DB) *AnalyticsHandler {
	return &AnalyticsHandler{db: db}
}

// GetAnalytics returns user, product and sales totals.
func (h *AnalyticsHandler) GetAnalytics(c *fiber.Ctx) error {
	var users, products, sales int64

	if err := h.db.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Product{}).Count(&products).Error; err != nil {
		return err
	}
	if err := h.db.Model(&models.Order{}).Count(&sales).Error; err != nil {
		return err
	}

	var revenue int64
	if err := h.db.Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&revenue).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"users":         users,
			"products":      products,
			"total_sales":   sales,
			"total_revenue": revenue,
		},
	})
}
