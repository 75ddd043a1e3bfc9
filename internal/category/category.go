// Package category assigns scraped product descriptions to one of the
// fixed dashboard categories using Portuguese/English keyword matching.
package category

import (
	"regexp"
	"strings"
)

// DefaultCategory is returned when no keyword rule matches.
const DefaultCategory = "Outros"

type rule struct {
	pattern  *regexp.Regexp
	category string
}

// Ordered: first match wins. Beauty and electronics are checked before the
// broad apparel rule so "makeup para o look" classifies as Beleza.
var rules = []rule{
	{regexp.MustCompile(`beleza|makeup|maquiagem|skincare|pele|cabelo|hair|beauty|perfume|cosmético`), "Beleza"},
	{regexp.MustCompile(`eletrônic|tech|fone|celular|gadget|phone|headphone`), "Eletrônicos"},
	{regexp.MustCompile(`casa|home|decoraç|decor|organiz|cozinha|kitchen`), "Casa"},
	{regexp.MustCompile(`vestido|blusa|camisa|camiseta|calça|jeans|saia|conjunto|roupa|dress|outfit|estilo|jaqueta|casaco|moletom|plus size`), "Moda"},
	{regexp.MustCompile(`tênis|sapato|bota|chinelo|sandália|slide|shoe|sneaker`), "Calçados"},
	{regexp.MustCompile(`bolsa|mochila|carteira|bag|wallet|necessaire|pochete`), "Acessórios"},
	{regexp.MustCompile(`óculos|relógio|colar|pulseira|brinco|anel|bijuteria|joia`), "Acessórios"},
	{regexp.MustCompile(`fitness|gym|treino|workout|exercise|saúde|academia|legging|top fitness`), "Fitness"},
	{regexp.MustCompile(`pet|cachorro|gato|dog|cat|animal`), "Pet"},
	{regexp.MustCompile(`infantil|bebê|criança|brinquedo|kids|baby|child`), "Infantil"},
	{regexp.MustCompile(`moda|fashion`), "Moda"},
}

// Detect returns the category label for a free-text product description.
func Detect(text string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.pattern.MatchString(lower) {
			return r.category
		}
	}
	return DefaultCategory
}
