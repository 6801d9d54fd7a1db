package admin

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"log"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.connectwisedev.com/storefront/models"
	"gitlab.connectwisedev.com/storefront/pkg/gateway"
)

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Created int
	Updated int
	Skipped []RowError
}

// RowError is a CSV row that was not imported. Row is 1-based and counts the header.
type RowError struct {
	Row  int
	Name string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Row, e.Name, e.Err)
}

// ImportCSV upserts products by name from a CSV with a header row. Recognized
// columns are name, price, description, priority and image; image is a path
// inside images. Rows naming an existing product update it, others create one.
// Bad rows are skipped and reported; an auth failure aborts the import.
func (d *Dashboard) ImportCSV(ctx context.Context, r io.Reader, images fs.FS) (ImportResult, error) {
	var res ImportResult

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return res, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return res, fmt.Errorf("CSV is empty or has only headers")
	}
	cols := columns(records[0])
	if _, ok := cols["name"]; !ok {
		return res, fmt.Errorf("CSV header has no name column")
	}
	if _, ok := cols["price"]; !ok {
		return res, fmt.Errorf("CSV header has no price column")
	}

	existing, err := d.Products(ctx)
	if err != nil {
		return res, err
	}
	byName := make(map[string]models.ID, len(existing))
	for _, p := range existing {
		byName[strings.ToLower(strings.TrimSpace(p.Name))] = p.ID
	}

	token, err := d.session.Token(ctx)
	if err != nil {
		return res, err
	}

	for i, row := range records[1:] {
		rowNum := i + 2
		form, err := rowForm(cols, row, images)
		if err != nil {
			log.Printf("Skipping row %d: %v", rowNum, err)
			res.Skipped = append(res.Skipped, RowError{Row: rowNum, Name: form.Name, Err: err})
			continue
		}

		if id, ok := byName[strings.ToLower(form.Name)]; ok {
			_, err = d.api.AdminUpdateProduct(ctx, id, form, token)
			if err == nil {
				res.Updated++
			}
		} else {
			var p models.Product
			p, err = d.api.AdminCreateProduct(ctx, form, token)
			if err == nil {
				res.Created++
				byName[strings.ToLower(form.Name)] = p.ID
			}
		}
		if err != nil {
			if NeedsLogin(err) {
				return res, err
			}
			log.Printf("Error importing product %s (row %d): %v", form.Name, rowNum, err)
			res.Skipped = append(res.Skipped, RowError{Row: rowNum, Name: form.Name, Err: err})
		}
	}

	if res.Created+res.Updated > 0 {
		d.catalogChanged(ctx)
	}
	log.Printf("Product import finished: %d created, %d updated, %d skipped", res.Created, res.Updated, len(res.Skipped))
	return res, nil
}

func columns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func rowForm(cols map[string]int, row []string, images fs.FS) (gateway.ProductForm, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	form := gateway.ProductForm{
		Name:        field("name"),
		Description: field("description"),
	}
	price, err := decimal.NewFromString(field("price"))
	if err != nil {
		return form, fmt.Errorf("invalid price %q", field("price"))
	}
	form.Price = price

	if raw := field("priority"); raw != "" {
		form.Priority, err = strconv.Atoi(raw)
		if err != nil {
			return form, fmt.Errorf("invalid priority %q", raw)
		}
	}

	if img := field("image"); img != "" {
		if images == nil {
			return form, fmt.Errorf("image %q given but no image directory", img)
		}
		b, err := fs.ReadFile(images, path.Clean(filepath.ToSlash(img)))
		if err != nil {
			return form, fmt.Errorf("read image: %w", err)
		}
		form.Image = bytes.NewReader(b)
		form.ImageName = img
	}
	return form, nil
}
