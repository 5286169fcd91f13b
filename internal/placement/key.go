package placement

import (
	"fmt"
	"path"
	"strings"

	"docvault-backend/internal/categorize"
	"docvault-backend/internal/shared/util"
)

// DeriveKey returns {project_id}/{category}/{filename}.
func DeriveKey(projectID string, category categorize.Category, fileName string) (string, error) {
	name, err := keyParts(projectID, category, fileName)
	if err != nil {
		return "", err
	}
	return projectID + "/" + string(category) + "/" + name, nil
}

// DisambiguatedKey returns {project_id}/{category}/{stem}-{document_id}{ext},
// the key used when the plain key belongs to a different document.
func DisambiguatedKey(projectID string, category categorize.Category, fileName, documentID string) (string, error) {
	name, err := keyParts(projectID, category, fileName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(documentID) == "" {
		return "", fmt.Errorf("%w: document id is required", ErrInvalidKey)
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return projectID + "/" + string(category) + "/" + stem + "-" + documentID + ext, nil
}

func keyParts(projectID string, category categorize.Category, fileName string) (string, error) {
	if strings.TrimSpace(projectID) == "" || strings.ContainsAny(projectID, "/\\") {
		return "", fmt.Errorf("%w: project id", ErrInvalidKey)
	}
	if !category.Valid() {
		return "", fmt.Errorf("%w: category %q", ErrInvalidKey, category)
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return name, nil
}
