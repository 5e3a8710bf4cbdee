package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/seawatch/internal/errors"
	"github.com/stwalsh4118/seawatch/internal/middleware"
	"github.com/stwalsh4118/seawatch/internal/models"
	"github.com/stwalsh4118/seawatch/internal/repository"
)

// defaultPositionLimit is used when the limit query parameter is absent.
const defaultPositionLimit = 50

// PositionHandler serves the positions history of a vessel.
type PositionHandler struct {
	repo repository.PositionRepository
}

// NewPositionHandler creates a new PositionHandler instance.
func NewPositionHandler(repo repository.PositionRepository) *PositionHandler {
	return &PositionHandler{repo: repo}
}

// PositionsURI holds the path parameters of the positions endpoint.
type PositionsURI struct {
	MMSI int64 `uri:"mmsi" binding:"required,gt=0"`
}

// PositionsQuery holds the query parameters of the positions endpoint.
type PositionsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// PositionsResponse is the list of recent positions for one vessel.
type PositionsResponse struct {
	MMSI      int64                         `json:"mmsi"`
	Positions []models.VesselPositionRecord `json:"positions"`
	Count     int                           `json:"count"`
}

// List handles GET /api/v1/vessels/:mmsi/positions.
// It returns the latest appended records for the vessel, newest first.
func (h *PositionHandler) List(c *gin.Context) {
	var uri PositionsURI
	if err := c.ShouldBindUri(&uri); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid MMSI", nil)
		return
	}

	var query PositionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultPositionLimit
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Debug("Listing vessel positions", map[string]interface{}{
			"mmsi":  uri.MMSI,
			"limit": query.Limit,
		})
	}

	positions, err := h.repo.ListRecent(c.Request.Context(), uri.MMSI, query.Limit)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to query vessel positions", err)
		return
	}
	if positions == nil {
		positions = []models.VesselPositionRecord{}
	}

	c.JSON(http.StatusOK, PositionsResponse{
		MMSI:      uri.MMSI,
		Positions: positions,
		Count:     len(positions),
	})
}
