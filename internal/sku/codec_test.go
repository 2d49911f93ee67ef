package sku

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	require.Equal(t, "MOL-CARECA-Azul-M", Generate("MOL-CARECA", "azul", "m"))
	require.Equal(t, "CAM-LISA-AzulEscuro-GG", Generate(" cam-lisa ", " azul escuro ", " gg "))
	require.Equal(t, "SHORT-Cinza-38", Generate("short", "cinza!", "3-8"))
}

func TestGenerateIsPure(t *testing.T) {
	first := Generate("MOL-CARECA", "Verde Água", "XG")
	for i := 0; i < 5; i++ {
		require.Equal(t, first, Generate("MOL-CARECA", "Verde Água", "XG"))
	}
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "CAM-LISA-AZUL-M", Sanitize(" cam-lisa-azul-m "))
	require.Equal(t, "MOL_CARECA-PRETO-G", Sanitize("mol_careca-preto-g"))
	require.Equal(t, "CAMLISAAZULM", Sanitize("cam lisa azul m"))
	require.Equal(t, "CAM-AZUL-M", Sanitize("cam*-azul!-m?"))
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"cam-lisa-azul-m",
		" MOL CARECA ",
		"short/tactel#verde",
		"CAM-LISA-AZÚL-GG",
		"",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		require.Equal(t, once, Sanitize(once))
	}
}

func TestNormalizeKey(t *testing.T) {
	require.Equal(t, "CAMLISAAZULM", NormalizeKey("CAM-LISA-AZUL-M"))
	require.Equal(t, "CAMLISAAZULM", NormalizeKey("cam_lisa azul m"))
	require.Equal(t, "MOLCARECA20", NormalizeKey("MOL-CARECA--20"))
}
