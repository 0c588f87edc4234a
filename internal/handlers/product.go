package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Williamonyango/Scented-muse-Backend/internal/models"
	"github.com/Williamonyango/Scented-muse-Backend/internal/utils"
)

const featuredCacheKey = "featured_products"

// ProductHandler manages the product catalog.
type ProductHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewProductHandler constructs a ProductHandler. The Redis client may be
// nil; the featured-products cache is then skipped.
func NewProductHandler(db *gorm.DB, rdb *redis.Client) *ProductHandler {
	return &ProductHandler{db: db, redis: rdb}
}

// ListProducts returns all products, paginated.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Product{})

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetFeaturedProducts serves the featured list from the Redis cache,
// falling back to the database and repopulating the cache on a miss.
func (h *ProductHandler) GetFeaturedProducts(c *fiber.Ctx) error {
	if h.redis != nil {
		cached, err := h.redis.Get(c.Context(), featuredCacheKey).Bytes()
		if err == nil {
			var products []models.Product
			if err := json.Unmarshal(cached, &products); err == nil {
				return c.JSON(fiber.Map{"success": true, "data": products})
			}
		}
	}

	var products []models.Product
	if err := h.db.Where("is_featured = ?", true).Find(&products).Error; err != nil {
		return err
	}

	if len(products) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no featured products found")
	}

	h.cacheFeatured(c, products)

	return c.JSON(fiber.Map{"success": true, "data": products})
}

type productRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Image       string `json:"image"`
	Category    string `json:"category"`
}

// CreateProduct adds a catalog item.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Description == "" || req.Price <= 0 || req.Category == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name, description, price and category are required")
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Category:    req.Category,
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a catalog item.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	if err := h.db.Delete(&product).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "product deleted", "data": product})
}

// GetRecommendedProducts returns three random products.
func (h *ProductHandler) GetRecommendedProducts(c *fiber.Ctx) error {
	var products []models.Product
	if err := h.db.Order("random()").Limit(3).Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": products})
}

// GetProductsByCategory lists products in one category.
func (h *ProductHandler) GetProductsByCategory(c *fiber.Ctx) error {
	category := c.Params("category")

	var products []models.Product
	if err := h.db.Where("category = ?", category).Find(&products).Error; err != nil {
		return err
	}

	if len(products) == 0 {
		return fiber.NewError(fiber.StatusNotFound, "no products found in this category")
	}

	return c.JSON(fiber.Map{"success": true, "data": products})
}

// ToggleFeaturedProduct flips the featured flag and refreshes the cache.
func (h *ProductHandler) ToggleFeaturedProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	product.IsFeatured = !product.IsFeatured
	if err := h.db.Save(&product).Error; err != nil {
		return err
	}

	h.refreshFeaturedCache(c)

	return c.JSON(fiber.Map{"success": true, "data": product})
}

func (h *ProductHandler) refreshFeaturedCache(c *fiber.Ctx) {
	if h.redis == nil {
		return
	}

	var products []models.Product
	if err := h.db.Where("is_featured = ?", true).Find(&products).Error; err != nil {
		log.Printf("[Product] Failed to load featured products for cache: %v", err)
		return
	}

	h.cacheFeatured(c, products)
}

func (h *ProductHandler) cacheFeatured(c *fiber.Ctx, products []models.Product) {
	if h.redis == nil {
		return
	}

	payload, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := h.redis.Set(c.Context(), featuredCacheKey, payload, 0).Err(); err != nil {
		log.Printf("[Product] Failed to update featured products cache: %v", err)
	}
}
