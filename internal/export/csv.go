// Package export renders dashboard listings as downloadable CSV. Every
// field is quoted and the file starts with a UTF-8 BOM so spreadsheet
// apps pick up the encoding on Windows.
package export

import (
	"fmt"
	"strings"

	"github.com/vyralhq/vyral-backend/internal/models"
)

// Column pairs a header label with a value extractor.
type Column[T any] struct {
	Label string
	Value func(T) string
}

const bom = "\uFEFF"

// Render builds a CSV document for the rows. The header row is unquoted
// labels; every data field is quoted with doubled inner quotes.
func Render[T any](columns []Column[T], rows []T) []byte {
	var b strings.Builder
	b.WriteString(bom)

	labels := make([]string, len(columns))
	for i, col := range columns {
		labels[i] = col.Label
	}
	b.WriteString(strings.Join(labels, ","))

	for _, row := range rows {
		b.WriteByte('\n')
		for i, col := range columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(col.Value(row), `"`, `""`))
			b.WriteByte('"')
		}
	}

	return []byte(b.String())
}

// ProductColumns is the export layout for the products dashboard.
var ProductColumns = []Column[models.ViralProduct]{
	{Label: "Produto", Value: func(p models.ViralProduct) string { return p.ProductName }},
	{Label: "Categoria", Value: func(p models.ViralProduct) string { return p.Category }},
	{Label: "Preço", Value: func(p models.ViralProduct) string { return formatFloat(p.Price) }},
	{Label: "Receita", Value: func(p models.ViralProduct) string { return formatFloat(p.Revenue) }},
	{Label: "Vendas", Value: func(p models.ViralProduct) string { return fmt.Sprintf("%d", p.SalesCount) }},
	{Label: "Views", Value: func(p models.ViralProduct) string { return fmt.Sprintf("%d", p.VideoViews) }},
	{Label: "Likes", Value: func(p models.ViralProduct) string { return fmt.Sprintf("%d", p.VideoLikes) }},
	{Label: "Score", Value: func(p models.ViralProduct) string { return fmt.Sprintf("%d", p.TrendingScore) }},
	{Label: "Loja", Value: func(p models.ViralProduct) string { return p.ShopName }},
	{Label: "País", Value: func(p models.ViralProduct) string { return p.Country }},
	{Label: "Link", Value: func(p models.ViralProduct) string { return p.TikTokURL }},
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
