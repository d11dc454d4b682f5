package handlers

import (
	"errors"
	"net/http"

	"github.com/Epin-platforms/nadal-server/services"
)

const maxUploadSize = 10 << 20 // 10MB

type UploadHandler struct {
	imageService services.ImageService
}

func NewUploadHandler(is services.ImageService) *UploadHandler {
	return &UploadHandler{imageService: is}
}

// UploadImageHandler
// @Summary Загрузить изображение
// @Tags uploads
// @Description Одинаковые файлы хранятся один раз, повторная загрузка вернёт тот же URL.
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "Изображение"
// @Success 200 {object} map[string]interface{} "image"
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string "Хранилище не настроено"
// @Security BearerAuth
// @Router /upload/image [post]
func (h *UploadHandler) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequestResponse(w, r, errors.New("request must be multipart/form-data no larger than 10MB"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		badRequestResponse(w, r, errors.New("form field 'image' is required"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		badRequestResponse(w, r, errors.New("content type required"))
		return
	}

	img, err := h.imageService.UploadImage(r.Context(), file, contentType)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"image": img, "url": img.URL}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
