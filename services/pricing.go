package services

import (
	"errors"
	"math"
)

// PricingPolicy menghitung harga jual kotor dari harga dasar produk dengan
// memperhitungkan target biaya tetap, fee processor (persen), dan pajak atas
// fee tersebut. Fungsi murni; dipanggil sekali saat membangun payment intent.
type PricingPolicy struct {
	FixedFee    int64   // rupiah, target keuntungan/biaya tetap per item
	FeePct      float64 // persen, mis. 0.7 untuk QRIS
	TaxOnFeePct float64 // persen pajak atas fee, mis. 11 (PPN)
}

var ErrInvalidFeePercentage = errors.New("combined fee percentage must be below 100%")

// SalePrice mengembalikan harga jual per unit yang dibulatkan ke atas
// sehingga setelah fee dan pajak atas fee, hasil bersih >= baseCost + FixedFee.
func (p PricingPolicy) SalePrice(baseCost int64) (int64, error) {
	feeDecimal := p.FeePct / 100
	taxDecimal := p.TaxOnFeePct / 100

	totalPct := feeDecimal + feeDecimal*taxDecimal
	if totalPct >= 1 {
		return 0, ErrInvalidFeePercentage
	}

	gross := float64(baseCost+p.FixedFee) / (1 - totalPct)
	return int64(math.Ceil(gross)), nil
}
