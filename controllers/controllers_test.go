package controllers_test

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kantinku/kantinku-api/database"
	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/router"
	"github.com/kantinku/kantinku-api/services"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.InitLogger()
}

const testServerKey = "SB-Mid-server-testkey"

// stubGateway menghindari API Midtrans sungguhan; signature divalidasi dengan
// formula yang sama seperti gateway asli supaya jalur callback teruji penuh.
type stubGateway struct {
	createCalls int
}

func (g *stubGateway) CreateTransaction(_ context.Context, ref string, _ int64, _ models.User, _ []services.GatewayItem) (*services.PaymentIntent, error) {
	g.createCalls++
	return &services.PaymentIntent{Token: "snap-token", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/" + ref}, nil
}

func (g *stubGateway) TransactionStatus(context.Context, string) (string, error) {
	return "pending", nil
}

func (g *stubGateway) ValidateSignature(orderRef, statusCode, grossAmount, signature string) bool {
	sum := sha512.Sum512([]byte(orderRef + statusCode + grossAmount + testServerKey))
	return hex.EncodeToString(sum[:]) == signature
}

type testServer struct {
	engine  *gin.Engine
	db      *gorm.DB
	gateway *stubGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	st := store.NewGormStore(db)
	hub := ws.NewHub()
	notifier := services.NewNotificationDispatcher(hub, nil, nil, st)
	gw := &stubGateway{}
	pricing := services.PricingPolicy{FixedFee: 500, FeePct: 0.7, TaxOnFeePct: 11}

	confirmation := services.NewConfirmationAggregator(st, gw, pricing, notifier, nil)
	reconciler := services.NewPaymentReconciler(st, gw, notifier, nil)
	orders := services.NewOrderService(st, notifier, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	engine := router.SetupRouter(ctx, router.Deps{
		DB:           db,
		Store:        st,
		Hub:          hub,
		Notifier:     notifier,
		Orders:       orders,
		Confirmation: confirmation,
		Reconciler:   reconciler,
	})
	return &testServer{engine: engine, db: db, gateway: gw}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Status  bool                   `json:"status"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Data
}

func (s *testServer) seedStaff(t *testing.T, phone string) models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.DefaultCost)
	require.NoError(t, err)
	staff := models.User{Name: "Staff " + phone, Phone: phone, Password: string(hashed), Role: models.RoleStaff}
	require.NoError(t, s.db.Create(&staff).Error)
	return staff
}

func (s *testServer) seedProduct(t *testing.T, ownerID uint, name string, price int64) models.Product {
	t.Helper()
	cat := models.Category{Name: "Makanan " + name}
	require.NoError(t, s.db.Create(&cat).Error)
	p := models.Product{Name: name, Price: price, CategoryID: cat.ID}
	require.NoError(t, s.db.Create(&p).Error)
	require.NoError(t, s.db.Create(&models.ProductOwner{UserID: ownerID, ProductID: p.ID}).Error)
	return p
}

func (s *testServer) login(t *testing.T, phone, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/auth/login", "", gin.H{"phone": phone, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token, _ := decodeData(t, w)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegisterLoginProfile(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Budi", "phone": "0811111111", "password": "rahasia123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Nomor yang sama tidak boleh didaftarkan dua kali.
	w = s.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Budi Lagi", "phone": "0811111111", "password": "rahasia123",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/auth/login", "", gin.H{"phone": "0811111111", "password": "salah-total"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.login(t, "0811111111", "rahasia123")

	w = s.do(t, http.MethodGet, "/profile", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStaffEndpointsRejectCustomers(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Cici", "phone": "0822222222", "password": "rahasia123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	token := s.login(t, "0822222222", "rahasia123")

	w = s.do(t, http.MethodGet, "/staff/orders", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/admin/dashboard/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// Jalur penuh: cart -> checkout -> konfirmasi staff -> callback settlement,
// semuanya lewat HTTP seperti client sungguhan.
func TestOrderLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	staff := s.seedStaff(t, "0833333333")
	product := s.seedProduct(t, staff.ID, "Nasi Goreng", 15000)

	w := s.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"name": "Dina", "phone": "0844444444", "password": "rahasia123",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	customerToken := s.login(t, "0844444444", "rahasia123")
	staffToken := s.login(t, "0833333333", "rahasia123")

	// Checkout dari cart kosong harus ditolak.
	w = s.do(t, http.MethodPost, "/orders", customerToken, gin.H{"payment_method": models.PaymentMethodQRIS})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/cart", customerToken, gin.H{"product_id": product.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/orders", customerToken, gin.H{"payment_method": models.PaymentMethodQRIS})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderData := decodeData(t, w)
	orderID := uint(orderData["id"].(float64))

	// Order muncul di inbox staff pemilik produk.
	w = s.do(t, http.MethodGet, "/staff/orders", staffToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf(`"id":%d`, orderID))

	// Staff satu-satunya pemilik: satu accept langsung menyelesaikan konfirmasi.
	w = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", orderID), staffToken, gin.H{"decision": "accept"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decision := decodeData(t, w)
	assert.Equal(t, services.OutcomeConfirmed, decision["outcome"])
	assert.NotEmpty(t, decision["redirect_url"])
	require.Equal(t, 1, s.gateway.createCalls)

	// Keputusan kedua ditolak.
	w = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/confirm", orderID), staffToken, gin.H{"decision": "accept"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var payment models.Payment
	require.NoError(t, s.db.Where("order_id = ?", orderID).First(&payment).Error)

	gross := fmt.Sprintf("%d.00", payment.GrossAmount)
	sum := sha512.Sum512([]byte(payment.ExternalRef + "200" + gross + testServerKey))
	callback := gin.H{
		"order_id":           payment.ExternalRef,
		"transaction_id":     "txn-http-1",
		"transaction_status": "settlement",
		"status_code":        "200",
		"gross_amount":       gross,
		"signature_key":      hex.EncodeToString(sum[:]),
	}

	w = s.do(t, http.MethodPost, "/payments/callback", "", callback)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Replay callback: tetap 200 tapi tanpa efek kedua.
	w = s.do(t, http.MethodPost, "/payments/callback", "", callback)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Callback already processed")

	// Signature palsu ditolak.
	bad := gin.H{}
	for k, v := range callback {
		bad[k] = v
	}
	bad["signature_key"] = "deadbeef"
	w = s.do(t, http.MethodPost, "/payments/callback", "", bad)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var got models.Order
	require.NoError(t, s.db.First(&got, orderID).Error)
	assert.Equal(t, models.OrderPaid, got.Status)

	// Customer melihat status pembayaran ordernya.
	w = s.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/payment", orderID), customerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.PaymentSettled)
}
