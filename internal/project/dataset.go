package project

import (
	"time"

	"github.com/KaramelBytes/crashlens/internal/dataset"
)

// Dataset is an incident file registered with a project.
type Dataset struct {
	ID            string    `json:"id"`
	Path          string    `json:"path"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Rows          int       `json:"rows"`
	DateColumn    string    `json:"date_column,omitempty"`
	TimeColumn    string    `json:"time_column,omitempty"`
	BoroughColumn string    `json:"borough_column,omitempty"`
	SheetName     string    `json:"sheet_name,omitempty"`
	SheetIndex    int       `json:"sheet_index,omitempty"`
	AddedAt       time.Time `json:"added_at"`
}

// LoadOptions rebuilds the options the dataset was registered with.
func (d *Dataset) LoadOptions() dataset.Options {
	return dataset.Options{
		DateColumn:    d.DateColumn,
		TimeColumn:    d.TimeColumn,
		BoroughColumn: d.BoroughColumn,
		SheetName:     d.SheetName,
		SheetIndex:    d.SheetIndex,
	}
}

// Run records one analysis of a dataset.
type Run struct {
	ID          string    `json:"id"`
	DatasetID   string    `json:"dataset_id,omitempty"`
	Dataset     string    `json:"dataset"`
	ReportPath  string    `json:"report_path,omitempty"`
	Description string    `json:"description,omitempty"`
	Groups      int       `json:"groups"`
	Significant int       `json:"significant"`
	RSquared    *float64  `json:"r_squared,omitempty"`
	FitError    string    `json:"fit_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
