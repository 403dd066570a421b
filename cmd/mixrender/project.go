package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/RefurbishedContent/mysounds-sub002/internal/model"
)

var validate = validator.New()

// LoadProject reads a project snapshot from a YAML or JSON file. A missing id
// defaults to the file name without its extension.
func LoadProject(path string) (*model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}

	var project model.Project
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &project)
	default:
		err = yaml.Unmarshal(data, &project)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", filepath.Base(path), err)
	}

	if project.ID == "" {
		project.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if project.Placements == nil {
		project.Placements = []model.Placement{}
	}

	if err := validate.Struct(&project); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}
	return &project, nil
}
