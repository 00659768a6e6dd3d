package services

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/kantinku/kantinku-api/models"
)

// GatewayItem adalah satu baris item yang dikirim ke gateway. Harga sudah
// harga jual (hasil PricingPolicy), bukan harga dasar produk.
type GatewayItem struct {
	ID    string
	Name  string
	Price int64
	Qty   int32
}

// PaymentIntent adalah hasil pembuatan transaksi Snap.
type PaymentIntent struct {
	Token       string
	RedirectURL string
}

// PaymentGateway mengabstraksi Midtrans supaya aggregator dan monitor
// bisa diuji tanpa memanggil API sungguhan.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, ref string, gross int64, customer models.User, items []GatewayItem) (*PaymentIntent, error)
	TransactionStatus(ctx context.Context, ref string) (string, error)
	ValidateSignature(orderRef, statusCode, grossAmount, signature string) bool
}

// MidtransGateway mengimplementasikan PaymentGateway di atas midtrans-go.
type MidtransGateway struct {
	snapClient snap.Client
	coreClient coreapi.Client
	serverKey  string
}

func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}

	g := &MidtransGateway{serverKey: serverKey}
	g.snapClient.New(serverKey, env)
	g.coreClient.New(serverKey, env)
	return g
}

// CreateTransaction membuat transaksi Snap dan mengembalikan token + redirect
// URL untuk customer. ref adalah external reference order, bukan ID mentah.
func (g *MidtransGateway) CreateTransaction(_ context.Context, ref string, gross int64, customer models.User, items []GatewayItem) (*PaymentIntent, error) {
	details := make([]midtrans.ItemDetails, 0, len(items))
	for _, it := range items {
		details = append(details, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  it.Name,
			Price: it.Price,
			Qty:   it.Qty,
		})
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  ref,
			GrossAmt: gross,
		},
		Items: &details,
		CustomerDetail: &midtrans.CustomerDetails{
			FName: customer.Name,
			Phone: customer.Phone,
		},
	}

	resp, err := g.snapClient.CreateTransaction(req)
	if err != nil {
		return nil, &UpstreamError{Op: "midtrans create transaction", Err: err}
	}
	return &PaymentIntent{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// TransactionStatus mengambil status mentah transaksi dari Midtrans
// (settlement/pending/expire/...); mapping ke status internal ada di
// reconciler supaya satu-satunya tempat.
func (g *MidtransGateway) TransactionStatus(_ context.Context, ref string) (string, error) {
	resp, err := g.coreClient.CheckTransaction(ref)
	if err != nil {
		return "", &UpstreamError{Op: "midtrans check transaction", Err: err}
	}
	if resp.TransactionStatus == "" {
		return "", &UpstreamError{Op: "midtrans check transaction", Err: fmt.Errorf("empty transaction_status for %s", ref)}
	}
	return resp.TransactionStatus, nil
}

// ValidateSignature memverifikasi signature_key notifikasi:
// sha512(order_id + status_code + gross_amount + server_key).
func (g *MidtransGateway) ValidateSignature(orderRef, statusCode, grossAmount, signature string) bool {
	raw := orderRef + statusCode + grossAmount + g.serverKey
	sum := sha512.Sum512([]byte(raw))
	return hex.EncodeToString(sum[:]) == signature
}
