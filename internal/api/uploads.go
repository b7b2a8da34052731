package api

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"coursehub/internal/blob"
	"coursehub/internal/catalog"
	"coursehub/internal/constants"
	"coursehub/internal/models"
)

// multipartMemoryBytes is how much of a multipart body is kept in memory;
// the rest spills to temporary files.
const multipartMemoryBytes = 8 << 20

type UploadHandler struct {
	catalog                 *catalog.Service
	uploadRequestLimitBytes int64
}

func NewUploadHandler(courses *catalog.Service, uploadRequestLimitBytes int64) *UploadHandler {
	return &UploadHandler{
		catalog:                 courses,
		uploadRequestLimitBytes: uploadRequestLimitBytes,
	}
}

type courseForm struct {
	Title            string `json:"title" validate:"required,max=200"`
	Description      string `json:"description" validate:"max=20000"`
	Price            string `json:"price" validate:"required,numeric"`
	Visibility       string `json:"visibility" validate:"omitempty,oneof=true false"`
	PublishDate      string `json:"publishDate"`
	NumberOfLectures string `json:"numberOfLectures" validate:"omitempty,numeric"`
	InstructorName   string `json:"instructorName" validate:"max=200"`
	Level            string `json:"level" validate:"max=50"`
	Category         string `json:"category" validate:"max=100"`
}

type AddCourseResponse struct {
	Message string         `json:"message"`
	Course  *models.Course `json:"course"`
}

// POST /addcourse
func (h *UploadHandler) AddCourse(w http.ResponseWriter, r *http.Request) {
	form, cleanup, ok := readMultipartForm(w, r, h.uploadRequestLimitBytes)
	if !ok {
		return
	}
	defer cleanup()

	sub, opened, err := buildSubmission(form)
	defer closeAll(opened)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	course, err := h.catalog.Submit(r.Context(), sub)
	if !handleSubmitError(w, err) {
		return
	}

	writeJSON(w, http.StatusCreated, AddCourseResponse{
		Message: "Course submitted for approval.",
		Course:  course,
	})
}

func buildSubmission(form *multipart.Form) (catalog.Submission, []multipart.File, error) {
	var opened []multipart.File

	fields := courseForm{
		Title:            formValue(form, "title"),
		Description:      formValue(form, "description"),
		Price:            formValue(form, "price"),
		Visibility:       strings.ToLower(formValue(form, "visibility")),
		PublishDate:      formValue(form, "publishDate"),
		NumberOfLectures: formValue(form, "numberOfLectures"),
		InstructorName:   formValue(form, "instructorName"),
		Level:            formValue(form, "level"),
		Category:         formValue(form, "category"),
	}
	if err := validateStruct(&fields); err != nil {
		return catalog.Submission{}, nil, err
	}

	price, err := strconv.ParseFloat(fields.Price, 64)
	if err != nil || price < 0 {
		return catalog.Submission{}, nil, errors.New("price must be a non-negative number")
	}

	sub := catalog.Submission{
		Title:          fields.Title,
		Description:    fields.Description,
		Price:          price,
		InstructorName: fields.InstructorName,
		Level:          fields.Level,
		Category:       fields.Category,
	}

	if fields.Visibility != "" {
		visible := fields.Visibility == "true"
		sub.Visibility = &visible
	}
	if fields.NumberOfLectures != "" {
		n, err := strconv.Atoi(fields.NumberOfLectures)
		if err != nil {
			return catalog.Submission{}, nil, errors.New("numberOfLectures must be an integer")
		}
		sub.NumberOfLectures = n
	}
	if fields.PublishDate != "" {
		date, err := parsePublishDate(fields.PublishDate)
		if err != nil {
			return catalog.Submission{}, nil, errors.New("publishDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		}
		sub.PublishDate = date
	}

	videos := form.File["videos"]
	if len(videos) == 0 {
		return sub, nil, errors.New("at least one file in field 'videos' is required")
	}
	if len(videos) > constants.MaxCourseVideos {
		return sub, nil, errors.New("too many files in field 'videos'")
	}
	images := form.File["image"]
	if len(images) != 1 {
		return sub, nil, errors.New("exactly one file in field 'image' is required")
	}

	for _, header := range videos {
		f, err := header.Open()
		if err != nil {
			return sub, opened, errors.New("unreadable file in field 'videos'")
		}
		opened = append(opened, f)
		sub.Videos = append(sub.Videos, catalog.Upload{Name: header.Filename, Content: f})
	}

	f, err := images[0].Open()
	if err != nil {
		return sub, opened, errors.New("unreadable file in field 'image'")
	}
	opened = append(opened, f)
	sub.Image = &catalog.Upload{Name: images[0].Filename, Content: f}

	return sub, opened, nil
}

func parsePublishDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func readMultipartForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipart.Form, func(), bool) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	err := r.ParseMultipartForm(multipartMemoryBytes)
	if err != nil {
		if isBodyTooLargeError(err) {
			payloadTooLarge(w, "Upload exceeds maximum size")
		} else {
			badRequest(w, "Invalid multipart upload")
		}
		return nil, func() {}, false
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}
	return r.MultipartForm, cleanup, true
}

func handleSubmitError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	var msg string
	switch {
	case errors.Is(err, catalog.ErrInvalidSubmission):
		msg = strings.TrimPrefix(err.Error(), catalog.ErrInvalidSubmission.Error()+": ")
	case errors.Is(err, blob.ErrFileTooLarge):
		payloadTooLarge(w, "File exceeds maximum upload size")
		return false
	case errors.Is(err, blob.ErrDisallowedType):
		msg = "Videos must be video files and the image must be an image file"
	case errors.Is(err, blob.ErrExecutableFile):
		msg = "Executable files are not allowed"
	case errors.Is(err, blob.ErrInvalidImage):
		msg = "Invalid image file"
	default:
		slog.Error("error submitting course", "error", err)
		internalError(w)
		return false
	}

	badRequest(w, msg)
	return false
}

func isBodyTooLargeError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
