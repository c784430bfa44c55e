package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/wildatlas/backend/internal/middleware"
	"github.com/wildatlas/backend/internal/models"
	"github.com/wildatlas/backend/internal/services"
	"github.com/wildatlas/backend/pkg/logger"
	"github.com/wildatlas/backend/pkg/utils"
	"gorm.io/gorm"
)

// MediaStore is the slice of the object store the animal handlers need.
// *storage.MediaClient satisfies it.
type MediaStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectName string) error
}

type AnimalsHandler struct {
	DB           *gorm.DB
	Storage      MediaStore
	Audit        *services.AuditService
	MediaBaseURL string
}

func NewAnimalsHandler(db *gorm.DB, store MediaStore, audit *services.AuditService, mediaBaseURL string) *AnimalsHandler {
	return &AnimalsHandler{DB: db, Storage: store, Audit: audit, MediaBaseURL: strings.TrimRight(mediaBaseURL, "/")}
}

// animalPatch captures which fields a request actually supplied, so create
// and update share one merge-patch application path.
type animalPatch struct {
	Name        *string `json:"name"`
	Habitat     *string `json:"habitat"`
	Family      *string `json:"family"`
	Lifespan    *string `json:"lifespan"`
	Diet        *string `json:"diet"`
	Description *string `json:"description"`
	Summary     *string `json:"summary"`
	Origin      *string `json:"origin"`
	Size        *string `json:"size"`
	Prey        *string `json:"prey"`
	Predators   *string `json:"predators"`
	CardImage   *string `json:"cardImage"`
	Sound       *string `json:"sound"`
	Featured    *bool   `json:"featured"`

	imageFile *multipart.FileHeader
	soundFile *multipart.FileHeader
}

func (h *AnimalsHandler) parsePatch(c *fiber.Ctx) (*animalPatch, error) {
	contentType := c.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		var patch animalPatch
		if err := c.BodyParser(&patch); err != nil {
			return nil, errors.New("invalid request body")
		}
		return &patch, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, errors.New("invalid multipart form")
	}

	patch := &animalPatch{
		Name:        formValue(form, "name"),
		Habitat:     formValue(form, "habitat"),
		Family:      formValue(form, "family"),
		Lifespan:    formValue(form, "lifespan"),
		Diet:        formValue(form, "diet"),
		Description: formValue(form, "description"),
		Summary:     formValue(form, "summary"),
		Origin:      formValue(form, "origin"),
		Size:        formValue(form, "size"),
		Prey:        formValue(form, "prey"),
		Predators:   formValue(form, "predators"),
		CardImage:   formValue(form, "cardImage"),
		Sound:       formValue(form, "sound"),
	}

	if raw := formValue(form, "featured"); raw != nil {
		parsed, parseErr := strconv.ParseBool(strings.TrimSpace(*raw))
		if parseErr != nil {
			return nil, errors.New("invalid featured value")
		}
		patch.Featured = &parsed
	}

	if files := form.File["image"]; len(files) > 0 {
		if uploadName(files[0]) == "" {
			return nil, errors.New("invalid image filename")
		}
		patch.imageFile = files[0]
	}
	if files := form.File["sound"]; len(files) > 0 {
		if uploadName(files[0]) == "" {
			return nil, errors.New("invalid sound filename")
		}
		patch.soundFile = files[0]
	}

	return patch, nil
}

// uploadName reduces a client-supplied filename to its base component.
// Returns "" when nothing usable remains.
func uploadName(fileHeader *multipart.FileHeader) string {
	name := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

func formValue(form *multipart.Form, key string) *string {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

// apply copies supplied fields onto the animal. Text fields not present in
// the patch keep their prior values. Returns a validation message on bad
// input with the animal left in an undefined state; callers apply to a copy.
func (p *animalPatch) apply(animal *models.Animal) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return errors.New("name cannot be empty")
		}
		animal.Name = name
	}

	if p.Habitat != nil {
		habitat, err := models.ParseHabitat(*p.Habitat)
		if err != nil {
			return errors.New("invalid habitat")
		}
		animal.Habitat = habitat
		animal.Type = habitat.DisplayLabel()
	}

	applyText(p.Family, &animal.Family)
	applyText(p.Lifespan, &animal.Lifespan)
	applyText(p.Diet, &animal.Diet)
	applyText(p.Description, &animal.Description)
	applyText(p.Summary, &animal.Summary)
	applyText(p.Origin, &animal.Origin)
	applyText(p.Size, &animal.Size)

	if p.Prey != nil {
		animal.Prey = splitCSV(*p.Prey)
	}
	if p.Predators != nil {
		animal.Predators = splitCSV(*p.Predators)
	}

	if p.CardImage != nil {
		animal.CardImage = strings.TrimSpace(*p.CardImage)
	}
	if p.Sound != nil {
		animal.Sound = strings.TrimSpace(*p.Sound)
	}

	if p.Featured != nil {
		animal.Featured = p.Featured
	}

	return nil
}

// storeUploads persists any uploaded media and overrides the corresponding
// reference fields. An uploaded file wins over a URL supplied alongside it.
// Returns the object names it stored so callers can discard them if the
// record never makes it to the database.
func (h *AnimalsHandler) storeUploads(c *fiber.Ctx, patch *animalPatch, animal *models.Animal) ([]string, error) {
	var stored []string
	if patch.imageFile != nil {
		path, err := h.storeUpload(c, patch.imageFile, "images")
		if err != nil {
			h.discardUploads(c, stored)
			return nil, err
		}
		stored = append(stored, path)
		animal.CardImage = path
	}
	if patch.soundFile != nil {
		path, err := h.storeUpload(c, patch.soundFile, "sounds")
		if err != nil {
			h.discardUploads(c, stored)
			return nil, err
		}
		stored = append(stored, path)
		animal.Sound = path
	}
	return stored, nil
}

// discardUploads removes objects stored for a request that failed after the
// upload. Best effort; a leftover object only costs bucket space.
func (h *AnimalsHandler) discardUploads(c *fiber.Ctx, stored []string) {
	if h.Storage == nil {
		return
	}
	for _, objectName := range stored {
		_ = h.Storage.Delete(c.Context(), objectName)
	}
}

func (h *AnimalsHandler) storeUpload(c *fiber.Ctx, fileHeader *multipart.FileHeader, prefix string) (string, error) {
	if h.Storage == nil {
		return "", errors.New("media storage is not configured")
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer stream.Close()

	filename := uploadName(fileHeader)
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s/%s", prefix, uuid.New().String(), filename)
	if err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType); err != nil {
		return "", err
	}
	return objectName, nil
}

func splitCSV(value string) models.StringList {
	parts := strings.Split(value, ",")
	result := models.StringList{}
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// resolveMedia renders relative storage paths as absolute URLs on a copy.
// The stored form stays host-independent.
func (h *AnimalsHandler) resolveMedia(animal models.Animal) models.Animal {
	animal.CardImage = h.resolvePath(animal.CardImage)
	animal.Sound = h.resolvePath(animal.Sound)
	return animal
}

func (h *AnimalsHandler) resolvePath(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return h.MediaBaseURL + "/" + strings.TrimLeft(path, "/")
}

func (h *AnimalsHandler) List(c *fiber.Ctx) error {
	query := h.DB.Model(&models.Animal{})

	if raw := strings.TrimSpace(c.Query("habitat")); raw != "" {
		habitat, err := models.ParseHabitat(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid habitat filter")
		}
		query = query.Where("habitat = ?", habitat)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("lower(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	if raw := strings.TrimSpace(c.Query("featured")); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid featured filter")
		}
		query = query.Where("featured = ?", featured)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Internal(c, "failed counting animals", err)
	}

	pagination := utils.ParsePagination(c)

	var animals []models.Animal
	if err := utils.ApplyPagination(query.Order("created_at DESC"), pagination).Find(&animals).Error; err != nil {
		return utils.Internal(c, "failed listing animals", err)
	}

	resolved := make([]models.Animal, 0, len(animals))
	for _, animal := range animals {
		resolved = append(resolved, h.resolveMedia(animal))
	}

	return utils.Paginated(c, resolved, pagination.Page, pagination.Limit, total)
}

func (h *AnimalsHandler) Get(c *fiber.Ctx) error {
	animalID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid animal id")
	}

	var animal models.Animal
	if err := h.DB.First(&animal, "id = ?", animalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "animal not found")
		}
		return utils.Internal(c, "failed loading animal", err)
	}

	return utils.Success(c, fiber.StatusOK, h.resolveMedia(animal))
}

func (h *AnimalsHandler) Create(c *fiber.Ctx) error {
	patch, err := h.parsePatch(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	featured := true
	animal := models.Animal{Featured: &featured}
	if err := patch.apply(&animal); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	if animal.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if animal.Habitat == "" {
		return utils.Error(c, fiber.StatusBadRequest, "habitat is required")
	}

	stored, err := h.storeUploads(c, patch, &animal)
	if err != nil {
		return utils.Internal(c, "failed storing media", err)
	}

	if err := h.DB.Create(&animal).Error; err != nil {
		h.discardUploads(c, stored)
		return utils.Internal(c, "failed creating animal", err)
	}

	logger.Info("animal_created", map[string]interface{}{
		"animal_id": animal.ID.String(),
		"name":      animal.Name,
		"habitat":   string(animal.Habitat),
	})

	h.auditMutation(c, "animal.create", animal.ID, map[string]interface{}{
		"name":    animal.Name,
		"habitat": string(animal.Habitat),
	})

	return utils.Success(c, fiber.StatusCreated, h.resolveMedia(animal))
}

func (h *AnimalsHandler) Update(c *fiber.Ctx) error {
	animalID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid animal id")
	}

	var animal models.Animal
	if err := h.DB.First(&animal, "id = ?", animalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "animal not found")
		}
		return utils.Internal(c, "failed loading animal", err)
	}

	patch, err := h.parsePatch(c)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	// Merge-patch onto a copy so a rejected field leaves the record alone.
	updated := animal
	if err := patch.apply(&updated); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}

	stored, err := h.storeUploads(c, patch, &updated)
	if err != nil {
		return utils.Internal(c, "failed storing media", err)
	}

	if err := h.DB.Save(&updated).Error; err != nil {
		h.discardUploads(c, stored)
		return utils.Internal(c, "failed updating animal", err)
	}

	logger.Info("animal_updated", map[string]interface{}{
		"animal_id": updated.ID.String(),
		"name":      updated.Name,
	})

	h.auditMutation(c, "animal.update", updated.ID, map[string]interface{}{
		"name": updated.Name,
	})

	return utils.Success(c, fiber.StatusOK, h.resolveMedia(updated))
}

func (h *AnimalsHandler) Delete(c *fiber.Ctx) error {
	animalID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid animal id")
	}

	var animal models.Animal
	if err := h.DB.First(&animal, "id = ?", animalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "animal not found")
		}
		return utils.Internal(c, "failed loading animal", err)
	}

	if err := h.DB.Delete(&animal).Error; err != nil {
		return utils.Internal(c, "failed deleting animal", err)
	}

	// Stored media cleanup is best effort; the record is already gone.
	if h.Storage != nil {
		for _, path := range []string{animal.CardImage, animal.Sound} {
			if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
				continue
			}
			_ = h.Storage.Delete(c.Context(), path)
		}
	}

	logger.Info("animal_deleted", map[string]interface{}{
		"animal_id": animal.ID.String(),
		"name":      animal.Name,
	})

	h.auditMutation(c, "animal.delete", animal.ID, map[string]interface{}{
		"name": animal.Name,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "animal deleted",
		"id":      animal.ID.String(),
	})
}

func (h *AnimalsHandler) auditMutation(c *fiber.Ctx, action string, animalID uuid.UUID, details map[string]interface{}) {
	entry := services.AuditEntry{
		Action:       action,
		ResourceType: "animal",
		ResourceID:   &animalID,
		Details:      details,
		IPAddress:    c.IP(),
	}
	if user := middleware.GetCurrentUser(c); user != nil {
		entry.UserID = &user.ID
	}
	h.Audit.LogAsync(entry)
}

func applyText(value *string, target *string) {
	if value != nil {
		*target = strings.TrimSpace(*value)
	}
}
