package handlers

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"roastreel/internal/apperr"
	"roastreel/internal/pipeline"
	"roastreel/utils"
)

var validate = validator.New()

// GenerateRoastRequest is the body of POST /api/generate-roast.
// LinkedInURL is the legacy name of ProfileURL and is read only when
// ProfileURL is empty.
type GenerateRoastRequest struct {
	ProfileURL  string `json:"profile_url" validate:"required,url"`
	LinkedInURL string `json:"linkedin_url,omitempty"`
	UseCache    bool   `json:"use_cache"`
}

// GenerateRoastResponse is returned when the video has been published.
type GenerateRoastResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	VideoURL string `json:"video_url"`
}

// HealthResponse is returned by the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// GenerateRoast godoc
// @Summary Generate a roast video
// @Description Fetches the LinkedIn profile, writes a roast, voices it, renders a captioned video and uploads it.
// @Tags roasts
// @Accept  json
// @Produce  json
// @Param   request body GenerateRoastRequest true "Profile to roast"
// @Success 200 {object} GenerateRoastResponse "Video generated and uploaded"
// @Failure 400 {object} utils.ErrorResponse "Missing or malformed profile URL"
// @Failure 429 {object} utils.ErrorResponse "Profile API rate limited and no cached profile"
// @Failure 500 {object} utils.ErrorResponse "Rendering or internal failure"
// @Failure 502 {object} utils.ErrorResponse "An upstream service returned an error"
// @Failure 503 {object} utils.ErrorResponse "An upstream service is unreachable"
// @Router /generate-roast [post]
func (h *ApplicationHandler) GenerateRoast(c *fiber.Ctx) error {
	payload := new(GenerateRoastRequest)
	if err := c.BodyParser(payload); err != nil {
		h.Logger.Errorf("Error parsing generate roast payload: %v", err)
		return utils.RespondWithError(c, fiber.StatusBadRequest, apperr.KindInvalidInput,
			fmt.Sprintf("Invalid request body: %v", err))
	}

	payload.ProfileURL = utils.SanitizeInput(payload.ProfileURL)
	if payload.ProfileURL == "" {
		payload.ProfileURL = utils.SanitizeInput(payload.LinkedInURL)
	}

	if err := validate.Struct(payload); err != nil {
		h.Logger.Warnf("Validation error for generate roast payload: %v", err)
		return utils.RespondWithError(c, fiber.StatusBadRequest, apperr.KindInvalidInput,
			"Profile URL is required: "+strings.Join(utils.FormatValidationErrors(err), "; "))
	}

	requestID, _ := c.Locals("requestid").(string)
	log := h.Logger.WithFields(logrus.Fields{
		"request_id":  requestID,
		"profile_url": payload.ProfileURL,
		"use_cache":   payload.UseCache,
	})
	log.Info("Received request to generate roast")

	result, err := h.Roaster.Roast(c.UserContext(), pipeline.Request{
		ProfileURL: payload.ProfileURL,
		UseCache:   payload.UseCache,
	})
	if err != nil {
		log.WithError(err).WithField("code", apperr.KindOf(err)).Error("Roast generation failed")
		return utils.RespondWithAppError(c, err)
	}

	log.WithFields(logrus.Fields{
		"run_id":    result.RunID,
		"video_url": result.VideoURL,
	}).Info("Roast generated")
	return utils.RespondWithJSON(c, fiber.StatusOK, GenerateRoastResponse{
		Status:   "success",
		Message:  "Video generated and uploaded successfully",
		VideoURL: result.VideoURL,
	})
}

// Health godoc
// @Summary Health check
// @Description Reports that the service is up.
// @Tags health
// @Produce  json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *ApplicationHandler) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(HealthResponse{Status: "healthy"})
}
