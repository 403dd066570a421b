package handler

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/RefurbishedContent/mysounds-sub002/internal/audio"
	"github.com/RefurbishedContent/mysounds-sub002/internal/client"
	"github.com/RefurbishedContent/mysounds-sub002/internal/middleware"
	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
	"github.com/RefurbishedContent/mysounds-sub002/pkg/response"
)

const maxUploadSize = 100 * 1024 * 1024 // 100MB

var contentTypes = map[audio.Container]string{
	audio.ContainerWAV:  "audio/wav",
	audio.ContainerFLAC: "audio/flac",
	audio.ContainerMP3:  "audio/mpeg",
}

type UploadHandler struct {
	storage client.StorageClient
}

func NewUploadHandler(storage client.StorageClient) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// Track handles POST /api/upload/track
// @Summary      Upload track source
// @Description  Store a WAV, FLAC or MP3 file and return the URL and analysis to reference from a project
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Audio file (WAV, FLAC, MP3; max 100MB)"
// @Success      201 {object} model.TrackUploadResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload/track [post]
func (h *UploadHandler) Track(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 100MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	container := audio.Sniff(data)
	contentType, ok := contentTypes[container]
	if !ok {
		return response.ValidationError(c, "Invalid file type. Supported: WAV, FLAC, MP3", nil)
	}

	pcm, err := audio.DecodeSource(data)
	if err != nil {
		return response.ValidationError(c, "File could not be decoded", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	trackID := uuid.New().String()
	key := fmt.Sprintf("tracks/%s/%s.%s", middleware.GetUserID(c), trackID, container)

	url, err := h.storage.Upload(c.UserContext(), key, bytes.NewReader(data), contentType)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, &model.TrackUploadResponse{
		ID:         trackID,
		URL:        url,
		Format:     string(container),
		SampleRate: pcm.SampleRate,
		Channels:   len(pcm.Channels),
		Analysis:   model.TrackAnalysis{Duration: pcm.Duration()},
		CreatedAt:  time.Now().UTC(),
	})
}
