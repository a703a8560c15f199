package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"foodstash_app_echo/internal/models"
	"foodstash_app_echo/internal/services"
)

const foodPackCacheKey = "food_packs:active"

type FoodPackHandler struct {
	db    *gorm.DB
	cache *services.RedisCache
}

func NewFoodPackHandler(db *gorm.DB, cache *services.RedisCache) *FoodPackHandler {
	return &FoodPackHandler{db: db, cache: cache}
}

// ListFoodPacks returns the active catalog, cached for a minute when
// Redis is configured
func (h *FoodPackHandler) ListFoodPacks(c echo.Context) error {
	load := func() ([]models.FoodPack, error) {
		var packs []models.FoodPack
		err := h.db.WithContext(c.Request().Context()).
			Where("is_active = ?", true).
			Order("price asc").
			Find(&packs).Error
		return packs, err
	}

	if h.cache == nil {
		packs, err := load()
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, packs)
	}

	packs, err := services.GetOrSet(h.cache, c.Request().Context(), foodPackCacheKey, time.Minute, load)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, packs)
}

// CreateFoodPack adds a catalog item (admin)
func (h *FoodPackHandler) CreateFoodPack(c echo.Context) error {
	var req CreateFoodPackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.Price <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and positive price are required")
	}

	pack := models.FoodPack{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		IsActive:    true,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&pack).Error; err != nil {
		return err
	}

	if h.cache != nil {
		if err := h.cache.Delete(c.Request().Context(), foodPackCacheKey); err != nil {
			c.Logger().Warnf("failed to invalidate food pack cache: %v", err)
		}
	}
	return c.JSON(http.StatusCreated, pack)
}
