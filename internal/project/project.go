package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/KaramelBytes/crashlens/internal/dataset"
	"github.com/KaramelBytes/crashlens/internal/utils"
)

const (
	projectFileName = "project.json"
	reportsDirName  = "reports"
	storeFileName   = "runs.db"
)

// Project groups datasets, analysis runs and per-project overrides on disk.
type Project struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Datasets    map[string]*Dataset `json:"datasets"`
	Runs        []*Run              `json:"runs"`
	Config      *ProjectConfig      `json:"config"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// Not serialized: on-disk location of the project.json
	rootDir string `json:"-"`
}

// ProjectConfig holds overrides; zero values inherit from global config.
type ProjectConfig struct {
	TopN       int      `json:"top_n,omitempty"`
	ModelTerms []string `json:"model_terms,omitempty"`
	DenseGrid  *bool    `json:"dense_grid,omitempty"`
}

// NewProject constructs an in-memory project. Call Save() to persist.
func NewProject(name, description, rootDir string) *Project {
	return &Project{
		Name:        name,
		Description: description,
		Datasets:    make(map[string]*Dataset),
		Config:      &ProjectConfig{},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		rootDir:     rootDir,
	}
}

// LoadProject loads a project.json from the provided directory.
func LoadProject(dir string) (*Project, error) {
	path := filepath.Join(dir, projectFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var p Project
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse project: %w", err)
	}
	if p.Datasets == nil {
		p.Datasets = make(map[string]*Dataset)
	}
	if p.Config == nil {
		p.Config = &ProjectConfig{}
	}
	p.rootDir = dir
	return &p, nil
}

// RootDir returns the on-disk project directory path.
func (p *Project) RootDir() string { return p.rootDir }

// ReportsDir is where rendered reports for this project are written.
func (p *Project) ReportsDir() string { return filepath.Join(p.rootDir, reportsDirName) }

// StorePath is the project's SQLite run history.
func (p *Project) StorePath() string { return filepath.Join(p.rootDir, storeFileName) }

// Save writes project.json using atomic write.
func (p *Project) Save() error {
	if p.rootDir == "" {
		return errors.New("project root directory not set")
	}
	if err := utils.EnsureDir(p.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	p.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(p)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(p.rootDir, projectFileName), data)
}

// AddDataset loads the file once to validate its columns and registers it.
// The stored path is absolute so runs can reload it from any directory.
func (p *Project) AddDataset(path, description string, opt dataset.Options) (*Dataset, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset path: %w", err)
	}
	tbl, err := dataset.Load(abs, opt)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	for _, d := range p.Datasets {
		if d.Path == abs {
			return nil, fmt.Errorf("dataset %s already added (id %s)", d.Name, d.ID)
		}
	}
	d := &Dataset{
		ID:            uuid.NewString(),
		Path:          abs,
		Name:          filepath.Base(abs),
		Description:   strings.TrimSpace(description),
		Rows:          tbl.Rows,
		DateColumn:    opt.DateColumn,
		TimeColumn:    opt.TimeColumn,
		BoroughColumn: opt.BoroughColumn,
		SheetName:     opt.SheetName,
		SheetIndex:    opt.SheetIndex,
		AddedAt:       time.Now(),
	}
	if p.Datasets == nil {
		p.Datasets = make(map[string]*Dataset)
	}
	p.Datasets[d.ID] = d
	p.UpdatedAt = time.Now()
	return d, nil
}

// FindDataset resolves a dataset by ID, ID prefix, or file name.
func (p *Project) FindDataset(ref string) (*Dataset, error) {
	if d, ok := p.Datasets[ref]; ok {
		return d, nil
	}
	var hits []*Dataset
	for _, d := range p.SortedDatasets() {
		if d.Name == ref || (len(ref) >= 4 && strings.HasPrefix(d.ID, ref)) {
			hits = append(hits, d)
		}
	}
	switch len(hits) {
	case 0:
		return nil, fmt.Errorf("dataset %q not found in project %s", ref, p.Name)
	case 1:
		return hits[0], nil
	default:
		return nil, fmt.Errorf("dataset reference %q is ambiguous (%d matches)", ref, len(hits))
	}
}

// SortedDatasets returns datasets ordered by name, then ID.
func (p *Project) SortedDatasets() []*Dataset {
	out := make([]*Dataset, 0, len(p.Datasets))
	for _, d := range p.Datasets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// RecordRun appends a run entry and returns it with a fresh ID.
func (p *Project) RecordRun(r Run) *Run {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	run := &r
	p.Runs = append(p.Runs, run)
	p.UpdatedAt = time.Now()
	return run
}
