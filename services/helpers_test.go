package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kantinku/kantinku-api/database"
	"github.com/kantinku/kantinku-api/models"
	"github.com/kantinku/kantinku-api/store"
	"github.com/kantinku/kantinku-api/utils"
	"github.com/kantinku/kantinku-api/ws"
)

func init() {
	utils.InitLogger()
}

// fakeGateway adalah PaymentGateway in-memory untuk test.
type fakeGateway struct {
	createCalls int
	statusCalls int
	failCreate  bool
	lastRef     string
	lastGross   int64
	statusByRef map[string]string
	validSig    bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statusByRef: map[string]string{}, validSig: true}
}

func (g *fakeGateway) CreateTransaction(_ context.Context, ref string, gross int64, _ models.User, _ []GatewayItem) (*PaymentIntent, error) {
	g.createCalls++
	if g.failCreate {
		return nil, &UpstreamError{Op: "fake gateway", Err: fmt.Errorf("boom")}
	}
	g.lastRef = ref
	g.lastGross = gross
	return &PaymentIntent{Token: "snap-token", RedirectURL: "https://pay.example/" + ref}, nil
}

func (g *fakeGateway) TransactionStatus(_ context.Context, ref string) (string, error) {
	g.statusCalls++
	if s, ok := g.statusByRef[ref]; ok {
		return s, nil
	}
	return "", &UpstreamError{Op: "fake gateway", Err: fmt.Errorf("unknown ref %s", ref)}
}

func (g *fakeGateway) ValidateSignature(_, _, _, _ string) bool {
	return g.validSig
}

type testEnv struct {
	db       *gorm.DB
	store    store.Store
	hub      *ws.Hub
	notifier *NotificationDispatcher
	gateway  *fakeGateway
	pricing  PricingPolicy
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	st := store.NewGormStore(db)
	hub := ws.NewHub()
	return &testEnv{
		db:       db,
		store:    st,
		hub:      hub,
		notifier: NewNotificationDispatcher(hub, nil, nil, st),
		gateway:  newFakeGateway(),
		pricing:  PricingPolicy{FixedFee: 500, FeePct: 0.7, TaxOnFeePct: 11},
	}
}

func (e *testEnv) confirmation() *ConfirmationAggregator {
	return NewConfirmationAggregator(e.store, e.gateway, e.pricing, e.notifier, nil)
}

func (e *testEnv) reconciler() *PaymentReconciler {
	return NewPaymentReconciler(e.store, e.gateway, e.notifier, nil)
}

func (e *testEnv) orders() *OrderService {
	return NewOrderService(e.store, e.notifier, nil)
}

// seedUser membuat user dengan role tertentu.
func (e *testEnv) seedUser(t *testing.T, name, role string) models.User {
	t.Helper()
	u := models.User{Name: name, Phone: name + "-0812", Password: "x", Role: role}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

// seedProduct membuat produk + pivot kepemilikan untuk staff.
func (e *testEnv) seedProduct(t *testing.T, name string, price int64, staffID uint) models.Product {
	t.Helper()
	cat := models.Category{Name: "cat-" + name}
	require.NoError(t, e.db.Create(&cat).Error)
	p := models.Product{Name: name, Price: price, CategoryID: cat.ID}
	require.NoError(t, e.db.Create(&p).Error)
	require.NoError(t, e.db.Create(&models.ProductOwner{UserID: staffID, ProductID: p.ID}).Error)
	return p
}

// seedOrder membuat order langsung di status tertentu dengan item per staff.
type seedItem struct {
	staffID uint
	product models.Product
	qty     int
	status  models.ItemStatus
}

func (e *testEnv) seedOrder(t *testing.T, customerID uint, status models.OrderStatus, method string, items []seedItem) models.Order {
	t.Helper()
	var total int64
	order := models.Order{
		UserID:        customerID,
		Status:        status,
		PaymentMethod: method,
	}
	require.NoError(t, e.db.Create(&order).Error)
	for _, si := range items {
		sub := si.product.Price * int64(si.qty)
		total += sub
		it := models.OrderItem{
			OrderID:   order.ID,
			ProductID: si.product.ID,
			StaffID:   si.staffID,
			Quantity:  si.qty,
			UnitPrice: si.product.Price,
			Subtotal:  sub,
			Status:    si.status,
		}
		require.NoError(t, e.db.Create(&it).Error)
	}
	require.NoError(t, e.db.Model(&order).Update("total_price", total).Error)
	order.TotalPrice = total
	return order
}

func (e *testEnv) reloadOrder(t *testing.T, id uint) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, e.db.Preload("Items").First(&o, id).Error)
	return o
}
