package services

import (
	"errors"
	"fmt"
)

// Error taxonomy koordinator. Controller memetakan error ini ke kode HTTP;
// selain ini dianggap kegagalan upstream.
var (
	// ErrForbidden: identitas pemanggil tidak punya hak atas order/item target.
	ErrForbidden = errors.New("you do not have permission for this order")
	// ErrAlreadyDecided: staff mengirim keputusan konfirmasi kedua kali.
	ErrAlreadyDecided = errors.New("confirmation already submitted for these items")
	// ErrNotFound: referensi order/item/payment tidak ditemukan.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCallback: replay callback settlement; no-op yang dilaporkan sukses.
	ErrDuplicateCallback = errors.New("duplicate payment callback")
	// ErrEmptyCart: checkout dengan keranjang kosong.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidSignature: signature callback gateway tidak cocok.
	ErrInvalidSignature = errors.New("invalid gateway signature")
	// ErrInvalidPaymentMethod: metode pembayaran di luar cash/qris.
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	// ErrProductUnavailable: produk di keranjang tidak punya penjual aktif.
	ErrProductUnavailable = errors.New("product has no active seller")
)

// InvalidTransitionError menolak transisi state yang tidak terdaftar pada tabel.
type InvalidTransitionError struct {
	From  string
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: event %q is not allowed from status %q", e.Event, e.From)
}

// MalformedCallbackError menolak payload gateway yang tidak bisa diparse;
// dikembalikan sebagai client error supaya gateway berhenti me-retry.
type MalformedCallbackError struct {
	Reason string
}

func (e *MalformedCallbackError) Error() string {
	return "malformed payment callback: " + e.Reason
}

// UpstreamError membungkus kegagalan transient store/gateway; caller boleh retry.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
