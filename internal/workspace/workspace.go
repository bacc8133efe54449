// Package workspace reads files the agent keeps in its workspace directory.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"clawdash/internal/model"
)

// ProjectsFile is the optional project index inside the workspace.
const ProjectsFile = "projects.json"

// Dir is an agent workspace root.
type Dir string

// Path joins name onto the workspace root.
func (d Dir) Path(name string) string {
	return filepath.Join(string(d), name)
}

// Projects returns the workspace project list. A missing file is not an
// error and yields an empty list. The file may carry comments and trailing
// commas.
func (d Dir) Projects(ctx context.Context) ([]model.Project, error) {
	if err := ctx.Err(); err != nil {
		return []model.Project{}, err
	}
	projects, err := ReadProjects(d.Path(ProjectsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Project{}, nil
	}
	if err != nil {
		return []model.Project{}, err
	}
	return projects, nil
}

// ReadProjects parses a projects file.
func ReadProjects(path string) ([]model.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var projects []model.Project
	if err := json.Unmarshal(jsonc.ToJSON(data), &projects); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if projects == nil {
		projects = []model.Project{}
	}
	return projects, nil
}
