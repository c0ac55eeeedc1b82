package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret   = "gmao-test-jwt-secret"
	TestUserID  = "test-user-001"
	TestManager = "gmao_manager"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// SetupTestDB 每个测试独立的 sqlite 内存库。
// 只开一个连接：事务内的所有查询都必须走事务句柄。
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(entity.Models()...); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"roles": roles,
		"iss":   "gmao",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a technician with the manager role
func DefaultTestToken() string {
	return GenerateTestToken(TestUserID, "Test Technician", []string{TestManager})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		data, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(data)
	}
	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

func newID() string {
	return uuid.New().String()[:32]
}

// SeedMachine 创建设备，parentID 为空表示根设备
func SeedMachine(t *testing.T, db *gorm.DB, code string, parentID string, hourCounter bool, hours float64) *entity.Machine {
	t.Helper()
	m := &entity.Machine{
		ID:                 newID(),
		Name:               "Machine " + code,
		Code:               code,
		HourCounterEnabled: hourCounter,
		Hours:              hours,
		CounterUnit:        "h",
		CreatedBy:          TestUserID,
	}
	if parentID != "" {
		m.ParentID = &parentID
	}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("Failed to seed machine: %v", err)
	}
	return m
}

// SeedCounter 在根设备上创建命名计数器
func SeedCounter(t *testing.T, db *gorm.DB, machineID, name string, value float64) *entity.Counter {
	t.Helper()
	c := &entity.Counter{ID: newID(), MachineID: machineID, Name: name, Value: value, Unit: "h"}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("Failed to seed counter: %v", err)
	}
	return c
}

// SeedPlan 创建计划，counterID 为空表示使用设备自身计数器
func SeedPlan(t *testing.T, db *gorm.DB, machineID, name string, periodicity int, counterID string, components ...entity.PlanComponent) *entity.MaintenancePlan {
	t.Helper()
	p := &entity.MaintenancePlan{
		ID:          newID(),
		MachineID:   machineID,
		Name:        name,
		Periodicity: periodicity,
		CreatedBy:   TestUserID,
	}
	if counterID != "" {
		p.CounterID = &counterID
	}
	for i := range components {
		components[i].ID = newID()
		components[i].PlanID = p.ID
		components[i].SortOrder = i
	}
	p.Components = components
	if err := db.Omit("Counter").Create(p).Error; err != nil {
		t.Fatalf("Failed to seed plan: %v", err)
	}
	return p
}

// SeedStock 创建库存点
func SeedStock(t *testing.T, db *gorm.DB, name string) *entity.Stock {
	t.Helper()
	s := &entity.Stock{ID: newID(), Name: name}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("Failed to seed stock: %v", err)
	}
	return s
}

// SeedProduct 创建产品
func SeedProduct(t *testing.T, db *gorm.DB, code string, price string, minimum int) *entity.Product {
	t.Helper()
	p := &entity.Product{
		ID:           newID(),
		Code:         code,
		Name:         "Product " + code,
		Price:        decimal.RequireFromString(price),
		MinimumStock: minimum,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed product: %v", err)
	}
	return p
}

// SeedQuantity 直接写入台账单元数量
func SeedQuantity(t *testing.T, db *gorm.DB, stockID, productID string, quantity int) {
	t.Helper()
	cell := &entity.StockProduct{ID: newID(), StockID: stockID, ProductID: productID, Quantity: quantity}
	if err := db.Create(cell).Error; err != nil {
		t.Fatalf("Failed to seed stock quantity: %v", err)
	}
}

// Quantity 读取台账单元数量，不存在时为0
func Quantity(t *testing.T, db *gorm.DB, stockID, productID string) int {
	t.Helper()
	var cell entity.StockProduct
	err := db.Where("stock_id = ? AND product_id = ?", stockID, productID).Limit(1).Find(&cell).Error
	if err != nil {
		t.Fatalf("Failed to read stock quantity: %v", err)
	}
	return cell.Quantity
}

// HoursSince 读取进度记录，不存在时 ok 为 false
func HoursSince(t *testing.T, db *gorm.DB, machineID, planID string) (float64, bool) {
	t.Helper()
	var rec entity.ProgressRecord
	res := db.Where("machine_id = ? AND plan_id = ?", machineID, planID).Limit(1).Find(&rec)
	if res.Error != nil {
		t.Fatalf("Failed to read progress: %v", res.Error)
	}
	return rec.HoursSince, res.RowsAffected == 1
}
