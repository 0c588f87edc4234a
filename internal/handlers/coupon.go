package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/Williamonyango/Scented-muse-Backend/internal/middleware"
	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
)

// CouponHandler exposes the caller's coupon. Issuance and deactivation
// are driven by the payment subsystem, not this handler.
type CouponHandler struct {
	db *gorm.DB
}

// NewCouponHandler constructs a CouponHandler.
func NewCouponHandler(db *gorm.DB) *CouponHandler {
	return &CouponHandler{db: db}
}

// GetCoupon returns the caller's active coupon, if any.
func (h *CouponHandler) GetCoupon(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var coupon models.Coupon
	err := h.db.Where("user_id = ? AND is_active = ?", userID, true).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"success": true, "data": nil})
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": coupon})
}

type validateCouponRequest struct {
	Code string `json:"code"`
}

// ValidateCoupon checks that a code is active, owned by the caller and
// not expired. An expired coupon is deactivated on the spot.
func (h *CouponHandler) ValidateCoupon(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code is required")
	}

	var coupon models.Coupon
	err := h.db.Where("code = ? AND user_id = ? AND is_active = ?", req.Code, userID, true).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "coupon not found")
		}
		return err
	}

	if coupon.ExpirationDate.Before(time.Now()) {
		if err := h.db.Model(&coupon).Update("is_active", false).Error; err != nil {
			return err
		}
		return fiber.NewError(fiber.StatusNotFound, "coupon expired")
	}

	return c.JSON(fiber.Map{
		"success":             true,
		"message":             "coupon is valid",
		"code":                coupon.Code,
		"discount_percentage": coupon.DiscountPercentage,
	})
}
