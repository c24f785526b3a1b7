package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SergeiKhy/shorturls/internal/models"
	"github.com/SergeiKhy/shorturls/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	baseURL string
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, baseURL string, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type CreateShortURLRequest struct {
	OriginalURL string     `json:"originalUrl" binding:"required"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	Shortcode   string     `json:"shortcode,omitempty"`
}

type CreateShortURLResponse struct {
	OriginalURL string     `json:"originalUrl"`
	Shortcode   string     `json:"shortcode"`
	ShortLink   string     `json:"shortLink"`
	Expiry      *time.Time `json:"expiry"`
}

type ClickResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Location  string    `json:"location"`
}

type StatsResponse struct {
	OriginalURL    string          `json:"originalUrl"`
	Shortcode      string          `json:"shortcode"`
	CreationDate   time.Time       `json:"creationDate"`
	Expiry         *time.Time      `json:"expiry"`
	TotalClicks    int64           `json:"totalClicks"`
	DetailedClicks []ClickResponse `json:"detailedClicks"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateShortURL создаёт короткую ссылку
func (h *LinkHandler) CreateShortURL(c *gin.Context) {
	var req CreateShortURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: bindingMessage(err),
		})
		return
	}

	link, err := h.service.CreateLink(c.Request.Context(), &models.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		Expiry:      req.Expiry,
		CustomCode:  req.Shortcode,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: "originalUrl must be an absolute http or https URL",
			})
		case errors.Is(err, service.ErrInvalidFormat):
			message := "shortcode is invalid"
			var formatErr *service.CodeFormatError
			if errors.As(err, &formatErr) {
				message = "shortcode " + formatErr.Reason
			}
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_shortcode",
				Message: message,
			})
		case errors.Is(err, service.ErrConflict):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "conflict",
				Message: "shortcode is already in use",
			})
		case errors.Is(err, service.ErrAllocationExhausted):
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "allocation_exhausted",
				Message: "Could not allocate a free short code, try again",
			})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create short link",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateShortURLResponse{
		OriginalURL: link.OriginalURL,
		Shortcode:   link.Code,
		ShortLink:   h.baseURL + "/" + link.Code,
		Expiry:      link.ExpiresAt,
	})
}

// Redirect перенаправляет на исходный URL и засчитывает клик
func (h *LinkHandler) Redirect(c *gin.Context) {
	code := c.Param("code")

	target, err := h.service.Resolve(c.Request.Context(), code, c.Request.Referer())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Short link not found",
			})
		case errors.Is(err, service.ErrExpired):
			c.JSON(http.StatusGone, ErrorResponse{
				Error:   "expired",
				Message: "Short link has expired",
			})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to resolve short link",
			})
		}
		return
	}

	c.Redirect(http.StatusFound, target)
}

// GetStats возвращает статистику ссылки, в том числе истёкшей
func (h *LinkHandler) GetStats(c *gin.Context) {
	code := c.Param("code")

	link, err := h.service.Stats(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Short link not found",
			})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to load stats",
		})
		return
	}

	clicks := make([]ClickResponse, 0, len(link.Clicks))
	for _, click := range link.Clicks {
		clicks = append(clicks, ClickResponse{
			Timestamp: click.ClickedAt,
			Source:    click.Source,
			Location:  click.Location,
		})
	}

	c.JSON(http.StatusOK, StatsResponse{
		OriginalURL:    link.OriginalURL,
		Shortcode:      link.Code,
		CreationDate:   link.CreatedAt,
		Expiry:         link.ExpiresAt,
		TotalClicks:    link.TotalClicks,
		DetailedClicks: clicks,
	})
}

func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Request body must be valid JSON"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
