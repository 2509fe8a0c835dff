package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradepost/transaction-service/shared/cqrs"
	"github.com/tradepost/transaction-service/shared/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ---- mock implementations ----

type mockTransactionCommander struct {
	createFn func(cqrs.CreateTransactionCommand) (*models.Transaction, error)
	updateFn func(cqrs.UpdateTransactionCommand) error
	deleteFn func(cqrs.DeleteTransactionCommand) error
}

func (m *mockTransactionCommander) CreateTransaction(_ context.Context, cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionCommander) UpdateTransaction(_ context.Context, cmd cqrs.UpdateTransactionCommand) error {
	if m.updateFn != nil {
		return m.updateFn(cmd)
	}
	return fmt.Errorf("not configured")
}

func (m *mockTransactionCommander) DeleteTransaction(_ context.Context, cmd cqrs.DeleteTransactionCommand) error {
	if m.deleteFn != nil {
		return m.deleteFn(cmd)
	}
	return fmt.Errorf("not configured")
}

type mockTransactionQuerier struct {
	getFn  func(cqrs.GetTransactionQuery) ([]models.TransactionView, error)
	listFn func(cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
}

func (m *mockTransactionQuerier) GetTransaction(_ context.Context, q cqrs.GetTransactionQuery) ([]models.TransactionView, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

func (m *mockTransactionQuerier) ListTransactions(_ context.Context, q cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return nil, fmt.Errorf("not configured")
}

// ---- helpers ----

const testAccountID = "65f1c0ffee0000000000a001"

func fakeAuth(accountID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("accountId", accountID)
		c.Next()
	}
}

func newTxTestRouter(cmds TransactionCommander, qrys TransactionQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(fakeAuth(testAccountID))
	NewTransactionHandler(cmds, qrys).RegisterRoutes(r.Group("/transactions"))
	return r
}

func txDoRequest(router *gin.Engine, method, url string, body any) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	switch b := body.(type) {
	case nil:
	case string:
		req, _ = http.NewRequest(method, url, strings.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	default:
		raw, _ := json.Marshal(b)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not a JSON object: %s", w.Body.String())
	}
	return body
}

// ---- test data ----

var (
	txTestPostID = "65f1c0ffee0000000000b001"
	txTestID     = "65f1c0ffee0000000000c001"
)

func txTestTransaction() *models.Transaction {
	id, _ := primitive.ObjectIDFromHex(txTestID)
	client, _ := primitive.ObjectIDFromHex(testAccountID)
	post, _ := primitive.ObjectIDFromHex(txTestPostID)
	now := time.Now().UTC()
	return &models.Transaction{ID: id, Client: client, Post: post, CreatedAt: now, UpdatedAt: now}
}

func txTestView() models.TransactionView {
	return models.TransactionView{
		"_id":    txTestID,
		"client": []any{map[string]any{"_id": testAccountID, "user": []any{}}},
		"post":   []any{map[string]any{"_id": txTestPostID, "owner": []any{}}},
	}
}

// ---- tests ----

func TestCreateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		createFn       func(cqrs.CreateTransactionCommand) (*models.Transaction, error)
		expectedStatus int
	}{
		{
			name: "success - claim a post",
			body: map[string]any{"post": txTestPostID},
			createFn: func(cmd cqrs.CreateTransactionCommand) (*models.Transaction, error) {
				if cmd.AccountID != testAccountID || cmd.PostID != txTestPostID {
					return nil, fmt.Errorf("unexpected command %+v", cmd)
				}
				return txTestTransaction(), nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "not found - account does not exist",
			body:           map[string]any{"post": txTestPostID},
			createFn:       func(cqrs.CreateTransactionCommand) (*models.Transaction, error) { return nil, models.ErrAccountNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "not found - post does not exist",
			body:           map[string]any{"post": txTestPostID},
			createFn:       func(cqrs.CreateTransactionCommand) (*models.Transaction, error) { return nil, models.ErrPostNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "conflict - transaction already exists",
			body:           map[string]any{"post": txTestPostID},
			createFn:       func(cqrs.CreateTransactionCommand) (*models.Transaction, error) { return nil, models.ErrTransactionExists },
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "internal error - store unavailable",
			body:           map[string]any{"post": txTestPostID},
			createFn:       func(cqrs.CreateTransactionCommand) (*models.Transaction, error) { return nil, fmt.Errorf("connection refused") },
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "bad request - missing post",
			body:           map[string]any{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - malformed json",
			body:           `{"post":`,
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{createFn: tt.createFn}, &mockTransactionQuerier{})
			w := txDoRequest(router, http.MethodPost, "/transactions", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			body := decodeBody(t, w)
			if w.Code == http.StatusCreated {
				tx, ok := body["transaction"].(map[string]any)
				if !ok || tx["_id"] != txTestID || tx["post"] != txTestPostID {
					t.Errorf("[%s] unexpected transaction %v", tt.name, body["transaction"])
				}
				if body["message"] != "transaction created" {
					t.Errorf("[%s] unexpected message %v", tt.name, body["message"])
				}
			} else if _, ok := body["error"]; !ok {
				t.Errorf("[%s] error response without error field: %v", tt.name, body)
			}
		})
	}
}

func TestCreateTransactionValidationUsesJSONKeys(t *testing.T) {
	router := newTxTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{})
	w := txDoRequest(router, http.MethodPost, "/transactions", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d; body: %s", w.Code, w.Body.String())
	}
	details, ok := decodeBody(t, w)["details"].([]any)
	if !ok || len(details) != 1 {
		t.Fatalf("unexpected details %s", w.Body.String())
	}
	if field := details[0].(map[string]any)["field"]; field != "post" {
		t.Errorf("expected field %q got %v", "post", field)
	}
}

func TestUpdateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		updateFn       func(cqrs.UpdateTransactionCommand) error
		expectedStatus int
	}{
		{
			name: "success - move to another post",
			body: map[string]any{"post": txTestPostID},
			updateFn: func(cmd cqrs.UpdateTransactionCommand) error {
				if cmd.TransactionID != txTestID || cmd.Fields["post"] != txTestPostID || cmd.AccountID != testAccountID {
					return fmt.Errorf("unexpected command %+v", cmd)
				}
				return nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "bad request - unknown field",
			body: map[string]any{"locked": true},
			updateFn: func(cqrs.UpdateTransactionCommand) error {
				return &models.ValidationError{Fields: []models.FieldError{{Field: "locked", Message: "Field cannot be updated", Type: "unknown"}}}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found - post does not exist",
			body:           map[string]any{"post": txTestPostID},
			updateFn:       func(cqrs.UpdateTransactionCommand) error { return models.ErrPostNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "not found - transaction does not exist",
			body:           map[string]any{"post": txTestPostID},
			updateFn:       func(cqrs.UpdateTransactionCommand) error { return models.ErrTransactionNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "conflict - pair already claimed",
			body:           map[string]any{"post": txTestPostID},
			updateFn:       func(cqrs.UpdateTransactionCommand) error { return models.ErrTransactionExists },
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "bad request - body is not an object",
			body:           `["post"]`,
			expectedStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{updateFn: tt.updateFn}, &mockTransactionQuerier{})
			w := txDoRequest(router, http.MethodPatch, "/transactions/"+txTestID, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdateTransactionValidationDetails(t *testing.T) {
	cmds := &mockTransactionCommander{updateFn: func(cqrs.UpdateTransactionCommand) error {
		return &models.ValidationError{Fields: []models.FieldError{{Field: "locked", Message: "Field cannot be updated", Type: "unknown"}}}
	}}
	w := txDoRequest(newTxTestRouter(cmds, &mockTransactionQuerier{}), http.MethodPatch, "/transactions/"+txTestID, map[string]any{"locked": true})
	body := decodeBody(t, w)
	details, ok := body["details"].([]any)
	if !ok || len(details) != 1 || details[0].(map[string]any)["field"] != "locked" {
		t.Errorf("unexpected validation body %v", body)
	}
}

func TestDeleteTransaction(t *testing.T) {
	deleted := map[string]bool{}
	cmds := &mockTransactionCommander{deleteFn: func(cmd cqrs.DeleteTransactionCommand) error {
		if cmd.TransactionID != txTestID || deleted[cmd.TransactionID] {
			return models.ErrTransactionNotFound
		}
		deleted[cmd.TransactionID] = true
		return nil
	}}
	router := newTxTestRouter(cmds, &mockTransactionQuerier{})

	tests := []struct {
		name           string
		transactionID  string
		expectedStatus int
	}{
		{name: "success - delete transaction", transactionID: txTestID, expectedStatus: http.StatusOK},
		{name: "not found - already deleted", transactionID: txTestID, expectedStatus: http.StatusNotFound},
		{name: "not found - unknown transaction", transactionID: "65f1c0ffee0000000000c999", expectedStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := txDoRequest(router, http.MethodDelete, "/transactions/"+tt.transactionID, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetTransaction(t *testing.T) {
	tests := []struct {
		name           string
		transactionID  string
		getFn          func(cqrs.GetTransactionQuery) ([]models.TransactionView, error)
		expectedStatus int
	}{
		{
			name:          "success - fetch transaction",
			transactionID: txTestID,
			getFn: func(q cqrs.GetTransactionQuery) ([]models.TransactionView, error) {
				return []models.TransactionView{txTestView()}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "not found - transaction does not exist",
			transactionID:  "65f1c0ffee0000000000c999",
			getFn:          func(cqrs.GetTransactionQuery) ([]models.TransactionView, error) { return nil, models.ErrTransactionNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "internal error - aggregation failed",
			transactionID:  txTestID,
			getFn:          func(cqrs.GetTransactionQuery) ([]models.TransactionView, error) { return nil, fmt.Errorf("timeout") },
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{getFn: tt.getFn})
			w := txDoRequest(router, http.MethodGet, "/transactions/"+tt.transactionID, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code == http.StatusOK {
				body := decodeBody(t, w)
				records, ok := body["transaction"].([]any)
				if body["count"] != 1.0 || !ok || len(records) != 1 {
					t.Errorf("[%s] unexpected body %v", tt.name, body)
				}
			}
		})
	}
}

func TestListTransactions(t *testing.T) {
	tests := []struct {
		name           string
		listFn         func(cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
		expectedStatus int
		expectedCount  float64
	}{
		{
			name: "success - list transactions",
			listFn: func(cqrs.ListTransactionsQuery) ([]models.TransactionView, error) {
				return []models.TransactionView{txTestView(), txTestView()}, nil
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:           "not found - no transactions",
			listFn:         func(cqrs.ListTransactionsQuery) ([]models.TransactionView, error) { return nil, models.ErrTransactionNotFound },
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTxTestRouter(&mockTransactionCommander{}, &mockTransactionQuerier{listFn: tt.listFn})
			w := txDoRequest(router, http.MethodGet, "/transactions", nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("[%s] expected %d got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code == http.StatusOK {
				if got := decodeBody(t, w)["count"]; got != tt.expectedCount {
					t.Errorf("[%s] expected count %v got %v", tt.name, tt.expectedCount, got)
				}
			}
		})
	}
}
