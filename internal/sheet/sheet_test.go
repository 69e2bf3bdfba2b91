package sheet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/price-scout/internal/model"
)

func writeTestWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Лист1")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().Value = c
		}
	}
	path := filepath.Join(t.TempDir(), "input.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadItems(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"id", "product_name", "qty"},
		{"1", "АКИП-4204", "2"},
		{"2", "  Fluke 87V  ", "1"},
		{"3", "", "4"},
		{"4", "С1-64", "1"},
	})

	items, err := ReadItems(path, "", "product_name")
	require.NoError(t, err)
	require.Len(t, items, 4)

	assert.Equal(t, model.WorkItem{Index: 0, Key: "АКИП-4204"}, items[0])
	assert.Equal(t, "Fluke 87V", items[1].Key) // trimmed
	assert.Equal(t, "", items[2].Key)          // blank row kept for alignment
	assert.Equal(t, 3, items[3].Index)
}

func TestReadItems_HeaderCaseInsensitive(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"Product_Name"},
		{"В7-78/1"},
	})

	items, err := ReadItems(path, "", "product_name")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "В7-78/1", items[0].Key)
}

func TestReadItems_MissingColumn(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"id", "name"},
		{"1", "x"},
	})

	_, err := ReadItems(path, "", "product_name")
	require.Error(t, err)
}

func TestReadItems_NamedSheet(t *testing.T) {
	path := writeTestWorkbook(t, [][]string{
		{"product_name"},
		{"item"},
	})

	_, err := ReadItems(path, "nope", "product_name")
	require.Error(t, err)

	items, err := ReadItems(path, "Лист1", "product_name")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWriteResults_RoundTrip(t *testing.T) {
	items := []model.WorkItem{
		{Index: 0, Key: "АКИП-4204"},
		{Index: 1, Key: ""},
		{Index: 2, Key: "Fluke 87V"},
	}
	rec := make(model.Record)
	rec.Set("АКИП-4204", "electronpribor", model.SourceResult{
		Status: model.StatusAvailable,
		Price:  49000,
		Name:   "АКИП-4204 осциллограф",
		URL:    "https://example.com/akip",
	})
	rec.Set("АКИП-4204", "flukeshop", model.SourceResult{Status: model.StatusNotFound})
	rec.Set("Fluke 87V", "electronpribor", model.SourceResult{Status: model.StatusError})
	rec.Set("Fluke 87V", "flukeshop", model.SourceResult{
		Status: model.StatusOnRequest,
		Name:   "Fluke 87V мультиметр",
		URL:    "https://example.com/fluke",
	})

	sources := []string{"electronpribor", "flukeshop"}
	dir := t.TempDir()
	path, err := WriteResults(dir, "electronpribor-flukeshop", items, rec, sources)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "prices_electronpribor-flukeshop_")

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	prices, ok := f.Sheet["prices"]
	require.True(t, ok)
	require.Len(t, prices.Rows, 4) // header + 3 input rows

	header := prices.Rows[0]
	assert.Equal(t, "product", header.Cells[0].String())
	assert.Equal(t, "electronpribor price", header.Cells[1].String())
	assert.Equal(t, "flukeshop status", header.Cells[6].String())

	akip := prices.Rows[1]
	assert.Equal(t, "АКИП-4204", akip.Cells[0].String())
	price, err := akip.Cells[1].Float()
	require.NoError(t, err)
	assert.Equal(t, 49000.0, price)
	assert.Equal(t, "available", akip.Cells[2].String())
	assert.Equal(t, "not_found", akip.Cells[6].String())

	// Blank input row stays blank.
	assert.Empty(t, prices.Rows[2].Cells)

	fluke := prices.Rows[3]
	assert.Equal(t, "error", fluke.Cells[2].String())
	assert.Equal(t, "on_request", fluke.Cells[6].String())
	assert.Equal(t, "Fluke 87V мультиметр", fluke.Cells[7].String())

	summary, ok := f.Sheet["summary"]
	require.True(t, ok)
	require.Len(t, summary.Rows, 3)
	assert.Equal(t, "electronpribor", summary.Rows[1].Cells[0].String())
}
