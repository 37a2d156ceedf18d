package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/web"
)

const maxReviewImages = 5

type ReviewHandler struct {
	DB *gorm.DB
}

// CreateReview accepts multipart form data: product_id, rating,
// comment and up to 5 image files. Only the file names are recorded;
// binary storage is delegated.
func (h *ReviewHandler) CreateReview(c echo.Context) error {
	user := auth.CurrentUser(c)

	productID, err := strconv.Atoi(c.FormValue("product_id"))
	if err != nil || productID <= 0 {
		return web.Validation("product_id is required")
	}
	rating, err := strconv.Atoi(c.FormValue("rating"))
	if err != nil || rating < 1 || rating > 5 {
		return web.Validation("rating must be between 1 and 5")
	}
	comment := c.FormValue("comment")

	var imageNames []string
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files := form.File["images"]
		if len(files) > maxReviewImages {
			return web.Validation("a review can carry at most 5 images")
		}
		for _, f := range files {
			imageNames = append(imageNames, f.Filename)
		}
	}

	var product models.Product
	if err := h.DB.First(&product, productID).Error; err != nil {
		return web.NotFound("product")
	}

	var existing models.Review
	err = h.DB.Where("user_id = ? AND product_id = ?", user.ID, productID).First(&existing).Error
	if err == nil {
		return web.Conflict("you have already reviewed this product")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return web.Internal(err)
	}

	review := models.Review{
		UserID:    user.ID,
		ProductID: uint(productID),
		Rating:    rating,
		Comment:   comment,
		Images:    strings.Join(imageNames, ","),
	}
	if err := h.DB.Create(&review).Error; err != nil {
		return web.Internal(err)
	}

	// Mean over every review for the product, full re-scan.
	var avg float64
	err = h.DB.Model(&models.Review{}).
		Where("product_id = ?", productID).
		Select("AVG(rating)").
		Scan(&avg).Error
	if err != nil {
		return web.Internal(err)
	}
	if err := h.DB.Model(&product).Update("rating", avg).Error; err != nil {
		return web.Internal(err)
	}

	return web.Created(c, echo.Map{"review": review})
}
