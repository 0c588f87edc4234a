package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Williamonyango/Scented-muse-Backend/internal/middleware"
	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
)

// CartHandler manages the authenticated user's cart.
type CartHandler struct {
	db *gorm.DB
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(db *gorm.DB) *CartHandler {
	return &CartHandler{db: db}
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
}

// AddToCart adds a product to the cart, bumping the quantity when it is
// already there.
func (h *CartHandler) AddToCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req cartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	var item models.CartItem
	err = h.db.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
	switch {
	case err == nil:
		item.Quantity++
		if err := h.db.Save(&item).Error; err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.CartItem{UserID: userID, ProductID: productID, Quantity: 1}
		if err := h.db.Create(&item).Error; err != nil {
			return err
		}
	default:
		return err
	}

	return h.respondWithCart(c, userID)
}

// RemoveFromCart deletes one product from the cart, or clears the cart
// entirely when no product_id is given.
func (h *CartHandler) RemoveFromCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req cartItemRequest
	_ = c.BodyParser(&req)

	query := h.db.Where("user_id = ?", userID)
	if req.ProductID != "" {
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		query = query.Where("product_id = ?", productID)
	}

	if err := query.Delete(&models.CartItem{}).Error; err != nil {
		return err
	}

	return h.respondWithCart(c, userID)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity sets the quantity for a cart line; zero or less removes it.
func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	productID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var item models.CartItem
	if err := h.db.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "item not found in cart")
		}
		return err
	}

	if req.Quantity <= 0 {
		if err := h.db.Delete(&item).Error; err != nil {
			return err
		}
	} else {
		item.Quantity = req.Quantity
		if err := h.db.Save(&item).Error; err != nil {
			return err
		}
	}

	return h.respondWithCart(c, userID)
}

// GetCartProducts lists the cart with full product details.
func (h *CartHandler) GetCartProducts(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	return h.respondWithCart(c, userID)
}

func (h *CartHandler) respondWithCart(c *fiber.Ctx, userID uuid.UUID) error {
	var items []models.CartItem
	if err := h.db.Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items})
}
