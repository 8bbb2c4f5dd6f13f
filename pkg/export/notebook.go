// Package export renders simulation artifacts into interchange formats:
// Jupyter notebooks, CSV tables and indented JSON.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mettamodeler/mettasim/pkg/model"
)

// Export types accepted by NewNotebook.
const (
	TypeModel      = "model"
	TypeScenario   = "scenario"
	TypeAnalysis   = "analysis"
	TypeComparison = "comparison"
)

// Notebook is a Jupyter notebook document, nbformat 4.
type Notebook struct {
	Metadata      NotebookMetadata `json:"metadata"`
	NBFormat      int              `json:"nbformat"`
	NBFormatMinor int              `json:"nbformat_minor"`
	Cells         []Cell           `json:"cells"`
}

type NotebookMetadata struct {
	Kernelspec   Kernelspec   `json:"kernelspec"`
	LanguageInfo LanguageInfo `json:"language_info"`
}

type Kernelspec struct {
	DisplayName string `json:"display_name"`
	Language    string `json:"language"`
	Name        string `json:"name"`
}

type LanguageInfo struct {
	CodemirrorMode    CodemirrorMode `json:"codemirror_mode"`
	FileExtension     string         `json:"file_extension"`
	Mimetype          string         `json:"mimetype"`
	Name              string         `json:"name"`
	NbconvertExporter string         `json:"nbconvert_exporter"`
	PygmentsLexer     string         `json:"pygments_lexer"`
	Version           string         `json:"version"`
}

type CodemirrorMode struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// Cell is a notebook cell. Code cells serialize with the execution fields
// the nbformat schema requires; markdown cells omit them.
type Cell struct {
	Type   string
	Source []string
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Type == "code" {
		return json.Marshal(struct {
			CellType       string         `json:"cell_type"`
			ExecutionCount *int           `json:"execution_count"`
			Metadata       map[string]any `json:"metadata"`
			Outputs        []any          `json:"outputs"`
			Source         []string       `json:"source"`
		}{
			CellType: c.Type,
			Metadata: map[string]any{},
			Outputs:  []any{},
			Source:   c.Source,
		})
	}
	return json.Marshal(struct {
		CellType string         `json:"cell_type"`
		Metadata map[string]any `json:"metadata"`
		Source   []string       `json:"source"`
	}{
		CellType: c.Type,
		Metadata: map[string]any{},
		Source:   c.Source,
	})
}

// NewNotebook builds a notebook embedding the given payload: a title, a
// generation timestamp, the standard analysis imports, the payload as a
// Python literal, and a cell that re-exports it to JSON.
func NewNotebook(exportType string, data any) (*Notebook, error) {
	switch exportType {
	case TypeModel, TypeScenario, TypeAnalysis, TypeComparison:
	default:
		return nil, model.Invalidf("unknown export type %q", exportType)
	}

	payload, err := ToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", exportType, err)
	}

	nb := newNotebookShell()
	nb.Cells = append(nb.Cells,
		markdownCell("# MettaModeler Export: "+capitalize(exportType)),
		markdownCell("**Generated:** "+time.Now().Format("2006-01-02 15:04:05")),
		codeCell(
			"import pandas as pd",
			"import numpy as np",
			"import matplotlib.pyplot as plt",
			"import networkx as nx",
			"import json",
			"import seaborn as sns",
			"",
			"# Set plot style",
			"plt.style.use('ggplot')",
			"sns.set_context('talk')",
		),
		codeCell(
			"# Load data",
			fmt.Sprintf("%s_data = %s", exportType, payload),
			"",
			"# Display basic information",
			fmt.Sprintf("print(f\"Data type: %s\")", exportType),
		),
		codeCell(
			"# Export the data to JSON",
			"with open('export_data.json', 'w') as f:",
			fmt.Sprintf("    json.dump(%s_data, f, indent=2)", exportType),
			"",
			"print('Data exported to export_data.json')",
		),
	)
	return nb, nil
}

// newNotebookShell builds an empty notebook with the standard Python 3
// kernel metadata.
func newNotebookShell() *Notebook {
	return &Notebook{
		Metadata: NotebookMetadata{
			Kernelspec: Kernelspec{
				DisplayName: "Python 3",
				Language:    "python",
				Name:        "python3",
			},
			LanguageInfo: LanguageInfo{
				CodemirrorMode:    CodemirrorMode{Name: "ipython", Version: 3},
				FileExtension:     ".py",
				Mimetype:          "text/x-python",
				Name:              "python",
				NbconvertExporter: "python",
				PygmentsLexer:     "ipython3",
				Version:           "3.10.8",
			},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}
}

// Bytes renders the notebook as indented JSON.
func (n *Notebook) Bytes() ([]byte, error) {
	return ToJSON(n)
}

func markdownCell(lines ...string) Cell {
	return Cell{Type: "markdown", Source: sourceLines(lines)}
}

func codeCell(lines ...string) Cell {
	return Cell{Type: "code", Source: sourceLines(lines)}
}

// sourceLines joins cell lines the way nbformat stores them: every line
// but the last keeps a trailing newline.
func sourceLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		if i < len(lines)-1 {
			out[i] = line + "\n"
		} else {
			out[i] = line
		}
	}
	return out
}

// capitalize uppercases the first letter and lowercases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
