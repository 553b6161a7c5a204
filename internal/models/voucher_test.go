package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"veyra_back_end/internal/models"
)

func TestVoucherDiscount(t *testing.T) {
	cases := []struct {
		name  string
		kind  string
		value int64
		total int64
		want  int64
	}{
		{"pourcentage entier", models.VoucherPercentage, 10, 2000, 200},
		{"pourcentage tronqué", models.VoucherPercentage, 10, 2599, 259},
		{"pourcentage sur total nul", models.VoucherPercentage, 50, 0, 0},
		{"fixe sous le total", models.VoucherFixed, 500, 2000, 500},
		{"fixe plafonné au total", models.VoucherFixed, 5000, 2000, 2000},
		{"fixe égal au total", models.VoucherFixed, 2000, 2000, 2000},
		{"type inconnu", "mystere", 500, 2000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &models.Voucher{Type: tc.kind, Value: tc.value}
			assert.Equal(t, tc.want, v.Discount(tc.total))
		})
	}
}
