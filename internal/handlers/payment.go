package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Williamonyango/Scented-muse-Backend/internal/middleware"
	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
	"github.com/Williamonyango/Scented-muse-Backend/internal/services"
)

// PaymentHandler exposes STK push initiation and the gateway callback.
type PaymentHandler struct {
	payments *services.PaymentService
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type paymentProductRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type initiatePaymentRequest struct {
	Phone      string                  `json:"phone"`
	Amount     int64                   `json:"amount"`
	Products   []paymentProductRequest `json:"products"`
	CouponCode string                  `json:"couponCode"`
}

// LipaNaMpesa initiates an STK push for the authenticated user.
func (h *PaymentHandler) LipaNaMpesa(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req initiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	products := make([]models.PendingLineItem, 0, len(req.Products))
	for _, p := range req.Products {
		productID, err := uuid.Parse(p.ProductID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product_id")
		}
		products = append(products, models.PendingLineItem{
			ProductID: productID,
			Quantity:  p.Quantity,
			Price:     p.Price,
		})
	}

	result, err := h.payments.Initiate(c.Context(), userID, services.InitiateParams{
		Phone:      req.Phone,
		Amount:     req.Amount,
		Products:   products,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidInitiation) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var gatewayErr *services.GatewayError
		if errors.As(err, &gatewayErr) {
			log.Printf("[Payment] STK push error: %v", gatewayErr.Err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to initiate STK push",
				"error":   gatewayErr.Err.Error(),
			})
		}

		return err
	}

	return c.JSON(fiber.Map{
		"message":  "STK push initiated successfully",
		"phone":    result.Phone,
		"amount":   result.Amount,
		"response": result.Gateway,
	})
}

// MpesaCallback receives the gateway's asynchronous payment notification.
// The response is always 200: a non-success status would trigger gateway
// retries, and retries must not be able to create duplicate orders.
func (h *PaymentHandler) MpesaCallback(c *fiber.Ctx) error {
	var env services.StkCallbackEnvelope
	if err := c.BodyParser(&env); err != nil {
		log.Printf("[Payment] Unparseable callback body: %v", err)
		return c.JSON(fiber.Map{"success": false, "message": "invalid callback body"})
	}

	result := h.payments.HandleCallback(c.Context(), env)

	response := fiber.Map{"success": result.OrderID != nil, "message": result.Message}
	if result.OrderID != nil {
		response["order_id"] = result.OrderID
	}

	return c.JSON(response)
}
