package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	apierrors "github.com/stwalsh4118/seawatch/internal/errors"
	"github.com/stwalsh4118/seawatch/internal/geodesy"
)

// BufferHandler previews geodesic buffers without touching the store.
type BufferHandler struct {
	computer geodesy.Computer
}

// NewBufferHandler creates a BufferHandler whose defaults come from the
// port buffer configuration.
func NewBufferHandler(computer geodesy.Computer) *BufferHandler {
	return &BufferHandler{computer: computer}
}

// BufferPreviewRequest represents the query parameters for the preview
// endpoint. Radius and resolution default to the port buffer settings.
type BufferPreviewRequest struct {
	Lat        *float64 `form:"lat" binding:"required,latitude"`
	Lng        *float64 `form:"lng" binding:"required,longitude"`
	Radius     float64  `form:"radius" binding:"omitempty,gt=0,max=1000000"`
	Resolution int      `form:"resolution" binding:"omitempty,min=3,max=360"`
}

// Preview handles GET /api/v1/buffers/preview.
// It responds with a GeoJSON Feature whose geometry is the buffer polygon.
func (h *BufferHandler) Preview(c *gin.Context) {
	var req BufferPreviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	radius := req.Radius
	if radius == 0 {
		radius = h.computer.RadiusMeters
	}
	resolution := req.Resolution
	if resolution == 0 {
		resolution = h.computer.Resolution
	}

	poly, err := geodesy.Buffer(*req.Lat, *req.Lng, radius, resolution)
	if err != nil {
		if errors.Is(err, geodesy.ErrGeometry) {
			apierrors.UnprocessableGeometry(c, err)
			return
		}
		apierrors.InternalServerError(c, "Failed to compute buffer", err)
		return
	}

	center := orb.Point{*req.Lng, *req.Lat}

	// Largest geodesic deviation of a vertex from the requested radius.
	var maxError float64
	for _, v := range poly[0] {
		maxError = math.Max(maxError, math.Abs(geodesy.Distance(center, v)-radius))
	}

	feature := geojson.NewFeature(poly)
	feature.Properties["center"] = center
	feature.Properties["radius_meters"] = radius
	feature.Properties["resolution"] = resolution
	feature.Properties["vertices"] = len(poly[0]) - 1
	feature.Properties["max_error_meters"] = maxError

	c.JSON(http.StatusOK, feature)
}
