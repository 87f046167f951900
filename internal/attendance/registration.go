package attendance

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// ImageEmbeddings is the extraction result of one enrollment image.
type ImageEmbeddings struct {
	Ref        string
	Embeddings [][]float32
}

// ValidateRegistration checks the registration form before any image is
// processed.
func ValidateRegistration(studentID, name string, images int) error {
	switch {
	case strings.TrimSpace(studentID) == "":
		return fmt.Errorf("student id is required: %w", ErrInvalidInput)
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("name is required: %w", ErrInvalidInput)
	case images == 0:
		return fmt.Errorf("at least one image is required: %w", ErrInvalidInput)
	case images > constants.MaxRegisterImages:
		return fmt.Errorf("at most %d images are accepted: %w", constants.MaxRegisterImages, ErrInvalidInput)
	}
	return nil
}

// BuildProfile validates per-image extraction results and assembles a profile
// holding one embedding per image in input order. The first image without
// exactly one face aborts the whole registration.
func BuildProfile(studentID, name string, images []ImageEmbeddings) (database.StudentProfile, error) {
	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if err := ValidateRegistration(studentID, name, len(images)); err != nil {
		return database.StudentProfile{}, err
	}

	embeddings := make([][]float32, 0, len(images))
	for _, img := range images {
		if len(img.Embeddings) != 1 {
			return database.StudentProfile{}, &FaceCountError{ImageRef: img.Ref, Count: len(img.Embeddings)}
		}
		embeddings = append(embeddings, img.Embeddings[0])
	}

	return database.StudentProfile{
		StudentID:  studentID,
		Name:       name,
		Embeddings: embeddings,
	}, nil
}
