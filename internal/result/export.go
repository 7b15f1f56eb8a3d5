package result

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"tasklist/internal/format"
	"tasklist/internal/store"
	"tasklist/pkg/cache"
)

// Lister is the read side of the task manager.
type Lister interface {
	List(ctx context.Context) ([]store.Task, error)
	Version() uint64
}

// Exporter renders the ranked list as json, csv or pdf. Output is cached
// per format and list version.
type Exporter struct {
	src   Lister
	cache *cache.MemoryCache
}

func NewExporter(src Lister, c *cache.MemoryCache) *Exporter {
	if c == nil {
		c = cache.NewMemory(0)
	}
	return &Exporter{src: src, cache: c}
}

// ContentType returns the MIME type for an export format.
func ContentType(f string) string {
	switch strings.ToLower(f) {
	case "csv":
		return "text/csv; charset=utf-8"
	case "pdf":
		return "application/pdf"
	default:
		return "application/json"
	}
}

func (e *Exporter) Export(ctx context.Context, f string) ([]byte, error) {
	f = strings.ToLower(f)
	key := fmt.Sprintf("%s@%d", f, e.src.Version())
	if b, ok := e.cache.Get(key); ok {
		return b, nil
	}
	all, err := e.src.List(ctx)
	if err != nil {
		return nil, err
	}

	var b []byte
	switch f {
	case "json":
		b, err = json.MarshalIndent(all, "", "  ")
	case "csv":
		b, err = exportCSV(all)
	case "pdf":
		b, err = exportPDF(all)
	default:
		return nil, fmt.Errorf("unknown format %s", f)
	}
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, b)
	return b, nil
}

// CSVHeader is shared with the importer.
var CSVHeader = []string{"id", "nome", "custo", "dataLimite", "ordem"}

func exportCSV(all []store.Task) ([]byte, error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	_ = w.Write(CSVHeader)
	for _, t := range all {
		_ = w.Write([]string{fmt.Sprint(t.ID), t.Name, fmt.Sprintf("%.2f", t.Cost), t.DueDate, fmt.Sprint(t.Rank)})
	}
	w.Flush()
	return b.Bytes(), w.Error()
}

func exportPDF(all []store.Task) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, tr("Lista de tarefas"))
	pdf.Ln(12)

	widths := []float64{15, 85, 45, 35}
	pdf.SetFont("Arial", "B", 10)
	for i, h := range []string{"#", "Nome", "Custo", "Data limite"} {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	var total float64
	pdf.SetFont("Arial", "", 10)
	for i, t := range all {
		total += t.Cost
		fill := t.Cost >= format.HighlightCost
		pdf.SetFillColor(255, 243, 205)
		pdf.CellFormat(widths[0], 6, fmt.Sprint(i+1), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[1], 6, tr(t.Name), "1", 0, "L", fill, 0, "")
		pdf.CellFormat(widths[2], 6, tr(format.CurrencyBR(t.Cost)), "1", 0, "R", fill, 0, "")
		pdf.CellFormat(widths[3], 6, format.DateISOToBR(t.DueDate), "1", 0, "L", fill, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(widths[0]+widths[1], 7, tr("Somatório dos custos"), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[2]+widths[3], 7, tr(format.CurrencyBR(total)), "1", 0, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
