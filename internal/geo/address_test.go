package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAddress(t *testing.T) {
	testCases := []struct {
		name         string
		text         string
		full         string
		street       string
		neighborhood string
	}{
		{
			name:         "street neighbourhood city",
			text:         "## Localização\nRua Doutor Rubens Gomes Bueno - Várzea de Baixo, São Paulo - SP\nVer no mapa",
			full:         "Rua Doutor Rubens Gomes Bueno - Várzea de Baixo, São Paulo - SP",
			street:       "Rua Doutor Rubens Gomes Bueno",
			neighborhood: "Várzea de Baixo",
		},
		{
			name:         "markdown link around address",
			text:         "[Avenida Interlagos, 2000 - Interlagos, São Paulo - SP](https://maps.google.com/?q=x)",
			full:         "Avenida Interlagos, 2000 - Interlagos, São Paulo - SP",
			street:       "Avenida Interlagos, 2000",
			neighborhood: "Interlagos",
		},
		{
			name:         "street and neighbourhood",
			text:         "Alameda dos Maracatins - Moema\nOutro texto",
			full:         "Alameda dos Maracatins - Moema, São Paulo - SP",
			street:       "Alameda dos Maracatins",
			neighborhood: "Moema",
		},
		{
			name:   "labelled street",
			text:   "Endereço: Rua Augusta, 100",
			full:   "Rua Augusta, São Paulo - SP",
			street: "Rua Augusta",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			addr, ok := ExtractAddress(tc.text, "")
			require.True(t, ok)
			assert.Equal(t, tc.street, addr.Street)
			assert.Equal(t, tc.neighborhood, addr.Neighborhood)
			assert.Equal(t, tc.full, addr.FullAddress)
		})
	}
}

func TestExtractAddressFallsBackToURL(t *testing.T) {
	addr, ok := ExtractAddress("Sem endereço na página",
		"https://www.vivareal.com.br/imovel/apartamento-2-quartos-vila-mariana-zona-sul-sao-paulo-44m2-venda-RS600000-id-1/")
	require.True(t, ok)
	assert.Equal(t, "Vila Mariana, São Paulo - SP", addr.FullAddress)
	assert.Equal(t, "Vila Mariana", addr.Neighborhood)
	assert.Empty(t, addr.Street)

	_, ok = ExtractAddress("nada", "https://www.vivareal.com.br/imovel/apartamento-id-1/")
	assert.False(t, ok)
}

func TestNeighborhoodFromURL(t *testing.T) {
	testCases := []struct {
		link     string
		expected string
		ok       bool
	}{
		{"https://www.vivareal.com.br/imovel/apartamento-2-quartos-interlagos-zona-sul-sao-paulo-44m2-id-1/", "interlagos", true},
		{"https://www.vivareal.com.br/imovel/apartamento-1-quartos-alto-de-pinheiros-zona-oeste-sao-paulo-40m2-id-2/", "alto-de-pinheiros", true},
		{"https://www.vivareal.com.br/imovel/apartamento-2-quartos-jardim-das-acacias-zona-sul-sao-paulo-41m2-id-3/", "jardim-das-acacias", true},
		{"https://www.vivareal.com.br/venda/sp/sao-paulo/zona-norte/santana/", "", false},
		{"https://www.vivareal.com.br/imovel/apartamento-2-quartos-zona-sul-sao-paulo-id-4/", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.link, func(t *testing.T) {
			slug, ok := NeighborhoodFromURL(tc.link)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, slug)
		})
	}
}
