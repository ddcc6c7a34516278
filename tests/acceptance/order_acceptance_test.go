package acceptance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/batchplant/plant-api/controllers"
	"github.com/batchplant/plant-api/middleware"
	"github.com/batchplant/plant-api/models"
	"github.com/batchplant/plant-api/services"
	"github.com/batchplant/plant-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderAcceptanceTestSuite defines the acceptance test suite for order endpoints
type OrderAcceptanceTestSuite struct {
	suite.Suite
	server   *httptest.Server
	db       *gorm.DB
	notifier *services.MockNotifier
	site     models.Site
	recipe   models.Recipe
}

// SetupSuite runs once before all tests
func (suite *OrderAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	// Setup database
	suite.db = testutil.NewTestDB(suite.T())
	suite.site = testutil.CreateSite(suite.T(), suite.db, "Acceptance Plant")
	suite.recipe = testutil.CreateRecipe(suite.T(), suite.db, suite.site.ID, "C40")

	// Create test server
	suite.notifier = services.NewMockNotifier()
	router := suite.createRouter()
	suite.server = httptest.NewServer(router)
}

// TearDownSuite runs once after all tests
func (suite *OrderAcceptanceTestSuite) TearDownSuite() {
	suite.server.Close()
}

// SetupTest runs before each test
func (suite *OrderAcceptanceTestSuite) SetupTest() {
	// Clean up database before each test
	suite.db.Exec("DELETE FROM order_status_logs")
	suite.db.Exec("DELETE FROM tasks")
	suite.db.Exec("DELETE FROM order_items")
	suite.db.Exec("DELETE FROM orders")
	suite.notifier.Clear()
}

// createRouter creates the full application router for acceptance testing
func (suite *OrderAcceptanceTestSuite) createRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(zap.NewNop()), gin.Recovery())

	svc := services.NewOrderService(suite.db, services.WithNotifier(suite.notifier), services.WithTaskGuard(true))
	orders := controllers.NewOrderController(svc, zap.NewNop())

	v1 := router.Group("/api/v1")
	{
		// Operator routes (using mock auth for acceptance testing)
		operator := v1.Group("", testutil.MockAuthMiddleware("auth0|operator", middleware.RoleOperator))
		operator.POST("/orders", orders.CreateOrder)
		operator.GET("/orders", orders.ListOrders)
		operator.GET("/orders/statistics", orders.GetStatistics)
		operator.GET("/orders/:id", orders.GetOrder)
		operator.GET("/orders/:id/history", orders.OrderHistory)
		operator.PUT("/orders/:id", orders.UpdateOrder)
		operator.PATCH("/orders/:id/status", orders.ChangeStatus)

		// Routes for admin scenarios
		admin := v1.Group("/admin", testutil.MockAuthMiddleware("auth0|admin", middleware.RoleAdmin))
		admin.DELETE("/orders/:id", middleware.RequireRole(middleware.RoleAdmin), orders.DeleteOrder)
	}

	return router
}

// makeRequest is a helper to make HTTP requests
func (suite *OrderAcceptanceTestSuite) makeRequest(method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	var bodyReader *bytes.Reader
	if body != nil {
		bodyJSON, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyJSON)
	} else {
		bodyReader = bytes.NewReader([]byte{})
	}

	req, err := http.NewRequest(method, suite.server.URL+path, bodyReader)
	suite.NoError(err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)

	var responseData map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&responseData)
	suite.NoError(err)
	resp.Body.Close()

	return resp, responseData
}

func (suite *OrderAcceptanceTestSuite) orderBody(customer string, volume float64) map[string]interface{} {
	return map[string]interface{}{
		"site_id":       suite.site.ID,
		"customer_name": customer,
		"project_name":  "Harbour Tunnel",
		"delivery_time": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"items": []map[string]interface{}{
			{"recipe_id": suite.recipe.ID, "volume": volume, "unit_price": 450},
		},
	}
}

// TestCompleteOrderWorkflow_Acceptance tests an order from intake to delivery
func (suite *OrderAcceptanceTestSuite) TestCompleteOrderWorkflow_Acceptance() {
	// Step 1: Operator takes the order
	resp, respData := suite.makeRequest("POST", "/api/v1/orders", suite.orderBody("Metro Builders", 16))

	assert.Equal(suite.T(), http.StatusCreated, resp.StatusCode)
	assert.True(suite.T(), respData["success"].(bool))
	assert.NotEmpty(suite.T(), resp.Header.Get(middleware.RequestIDHeader))

	orderData := respData["data"].(map[string]interface{})
	orderID := int(orderData["id"].(float64))
	assert.Equal(suite.T(), "pending", orderData["status"])
	assert.Equal(suite.T(), 7200.0, orderData["total_amount"])

	// Step 2: The customer changes the volume before confirmation
	resp, respData = suite.makeRequest("PUT", fmt.Sprintf("/api/v1/orders/%d", orderID), map[string]interface{}{
		"items": []map[string]interface{}{
			{"recipe_id": suite.recipe.ID, "volume": 18, "unit_price": 450},
		},
	})
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	orderData = respData["data"].(map[string]interface{})
	assert.Equal(suite.T(), 18.0, orderData["total_volume"])
	assert.Equal(suite.T(), 8100.0, orderData["total_amount"])

	// Step 3: The order moves through production
	for _, status := range []string{"confirmed", "in_production", "completed"} {
		resp, respData = suite.makeRequest("PATCH", fmt.Sprintf("/api/v1/orders/%d/status", orderID), map[string]interface{}{"status": status})
		assert.Equal(suite.T(), http.StatusOK, resp.StatusCode, respData)
	}

	// Step 4: The order is retrievable with its items
	resp, respData = suite.makeRequest("GET", fmt.Sprintf("/api/v1/orders/%d", orderID), nil)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	retrieved := respData["data"].(map[string]interface{})
	assert.Equal(suite.T(), "completed", retrieved["status"])
	assert.Len(suite.T(), retrieved["items"], 1)

	// Step 5: Every change was published
	events := suite.notifier.Events()
	suite.Require().Len(events, 5)
	assert.Equal(suite.T(), services.EventOrderCreated, events[0].Type)
	assert.Equal(suite.T(), services.EventOrderUpdated, events[1].Type)
	assert.Equal(suite.T(), services.EventOrderStatusChanged, events[4].Type)
	assert.Equal(suite.T(), models.OrderStatusCompleted, events[4].ToStatus)
}

// TestListOrders_Pagination_Acceptance tests pagination with real HTTP requests
func (suite *OrderAcceptanceTestSuite) TestListOrders_Pagination_Acceptance() {
	// Create 5 orders
	for i := 1; i <= 5; i++ {
		resp, _ := suite.makeRequest("POST", "/api/v1/orders", suite.orderBody(fmt.Sprintf("Customer %d", i), float64(i)))
		suite.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	// Test page 1 with limit 2
	resp, respData := suite.makeRequest("GET", "/api/v1/orders?page=1&limit=2", nil)

	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.True(suite.T(), respData["success"].(bool))

	orders := respData["data"].([]interface{})
	assert.Equal(suite.T(), 2, len(orders))
	// Newest first
	assert.Equal(suite.T(), "Customer 5", orders[0].(map[string]interface{})["customer_name"])

	pagination := respData["pagination"].(map[string]interface{})
	assert.Equal(suite.T(), float64(1), pagination["page"])
	assert.Equal(suite.T(), float64(2), pagination["limit"])
	assert.Equal(suite.T(), float64(5), pagination["total"])
	assert.Equal(suite.T(), float64(3), pagination["totalPages"])

	// Test page 3
	resp, respData = suite.makeRequest("GET", "/api/v1/orders?page=3&limit=2", nil)

	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	orders = respData["data"].([]interface{})
	assert.Equal(suite.T(), 1, len(orders))
	assert.Equal(suite.T(), "Customer 1", orders[0].(map[string]interface{})["customer_name"])
}

// TestDeleteOrder_Acceptance tests archiving with and without dispatched trucks
func (suite *OrderAcceptanceTestSuite) TestDeleteOrder_Acceptance() {
	order := testutil.InsertOrder(suite.T(), suite.db, suite.site.ID, "PO-900", models.OrderStatusConfirmed)
	task := testutil.CreateTask(suite.T(), suite.db, order, models.TaskStatusTransporting)

	resp, respData := suite.makeRequest("DELETE", fmt.Sprintf("/api/v1/admin/orders/%d", order.ID), nil)
	assert.Equal(suite.T(), http.StatusBadRequest, resp.StatusCode)
	errorData := respData["error"].(map[string]interface{})
	assert.Equal(suite.T(), "INVALID_OPERATION", errorData["code"])
	assert.Equal(suite.T(), fmt.Sprintf("order %d has 1 active task(s) and cannot be deleted", order.ID), errorData["message"])

	suite.Require().NoError(suite.db.Model(&task).Update("status", models.TaskStatusCompleted).Error)

	resp, respData = suite.makeRequest("DELETE", fmt.Sprintf("/api/v1/admin/orders/%d", order.ID), nil)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(suite.T(), "order PO-900 deleted", respData["message"])

	// The number stays reserved
	body := suite.orderBody("Metro Builders", 4)
	body["order_no"] = "PO-900"
	resp, respData = suite.makeRequest("POST", "/api/v1/orders", body)
	assert.Equal(suite.T(), http.StatusConflict, resp.StatusCode)
	assert.Equal(suite.T(), "CONFLICT", respData["error"].(map[string]interface{})["code"])
}

// TestGetOrder_NotFound_Acceptance tests getting a non-existent order
func (suite *OrderAcceptanceTestSuite) TestGetOrder_NotFound_Acceptance() {
	resp, respData := suite.makeRequest("GET", "/api/v1/orders/99999", nil)

	assert.Equal(suite.T(), http.StatusNotFound, resp.StatusCode)
	assert.False(suite.T(), respData["success"].(bool))

	errorData := respData["error"].(map[string]interface{})
	assert.Equal(suite.T(), "NOT_FOUND", errorData["code"])
}

// TestStatistics_Acceptance tests the dashboard figures
func (suite *OrderAcceptanceTestSuite) TestStatistics_Acceptance() {
	for _, volume := range []float64{10, 6} {
		resp, _ := suite.makeRequest("POST", "/api/v1/orders", suite.orderBody("Metro Builders", volume))
		suite.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	today := time.Now().UTC().Format("2006-01-02")
	resp, respData := suite.makeRequest("GET",
		fmt.Sprintf("/api/v1/orders/statistics?site_id=%d&start_date=%s&end_date=%s", suite.site.ID, today, today), nil)
	assert.Equal(suite.T(), http.StatusOK, resp.StatusCode)

	stats := respData["data"].(map[string]interface{})
	assert.Equal(suite.T(), float64(2), stats["total_orders"])
	assert.Equal(suite.T(), 16.0, stats["total_volume"])
	assert.Equal(suite.T(), 7200.0, stats["total_amount"])
	assert.Equal(suite.T(), float64(2), stats["by_status"].(map[string]interface{})["pending"])

	resp, respData = suite.makeRequest("GET", "/api/v1/orders/statistics?start_date=2026-02-01&end_date=2026-01-01", nil)
	assert.Equal(suite.T(), http.StatusBadRequest, resp.StatusCode)
	assert.Equal(suite.T(), "VALIDATION_ERROR", respData["error"].(map[string]interface{})["code"])
}

// TestOrderAcceptanceTestSuite runs the acceptance test suite
func TestOrderAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(OrderAcceptanceTestSuite))
}
