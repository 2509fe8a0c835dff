package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tradepost/transaction-service/shared/cqrs"
	"github.com/tradepost/transaction-service/shared/middleware"
	"github.com/tradepost/transaction-service/shared/models"
)

// TransactionCommander defines the write-side operations used by TransactionHandler.
type TransactionCommander interface {
	CreateTransaction(context.Context, cqrs.CreateTransactionCommand) (*models.Transaction, error)
	UpdateTransaction(context.Context, cqrs.UpdateTransactionCommand) error
	DeleteTransaction(context.Context, cqrs.DeleteTransactionCommand) error
}

// TransactionQuerier defines the read-side operations used by TransactionHandler.
type TransactionQuerier interface {
	GetTransaction(context.Context, cqrs.GetTransactionQuery) ([]models.TransactionView, error)
	ListTransactions(context.Context, cqrs.ListTransactionsQuery) ([]models.TransactionView, error)
}

type TransactionHandler struct {
	commands TransactionCommander
	queries  TransactionQuerier
}

type CreateTransactionRequest struct {
	Post string `json:"post" validate:"required"`
}

type CreateTransactionResponse struct {
	Message     string              `json:"message"`
	Transaction *models.Transaction `json:"transaction"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type TransactionsResponse struct {
	Count       int                      `json:"count"`
	Transaction []models.TransactionView `json:"transaction"`
}

func NewTransactionHandler(commands TransactionCommander, queries TransactionQuerier) *TransactionHandler {
	return &TransactionHandler{commands: commands, queries: queries}
}

// RegisterRoutes mounts the transaction routes on rg.
func (h *TransactionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateTransaction)
	rg.GET("", h.ListTransactions)
	rg.GET("/:transactionId", h.GetTransaction)
	rg.PATCH("/:transactionId", h.UpdateTransaction)
	rg.DELETE("/:transactionId", h.DeleteTransaction)
}

func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	accountID, _ := middleware.GetAccountID(c)

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	transaction, err := h.commands.CreateTransaction(c.Request.Context(), cqrs.CreateTransactionCommand{
		AccountID: accountID,
		PostID:    req.Post,
	})
	if err != nil {
		respondWithError(c, err, "Failed to create transaction")
		return
	}

	c.JSON(http.StatusCreated, CreateTransactionResponse{Message: "transaction created", Transaction: transaction})
}

func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	accountID, _ := middleware.GetAccountID(c)

	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.commands.UpdateTransaction(c.Request.Context(), cqrs.UpdateTransactionCommand{
		AccountID:     accountID,
		TransactionID: c.Param("transactionId"),
		Fields:        fields,
	})
	if err != nil {
		respondWithError(c, err, "Failed to update transaction")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "updated transaction"})
}

func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	accountID, _ := middleware.GetAccountID(c)

	err := h.commands.DeleteTransaction(c.Request.Context(), cqrs.DeleteTransactionCommand{
		AccountID:     accountID,
		TransactionID: c.Param("transactionId"),
	})
	if err != nil {
		respondWithError(c, err, "Failed to delete transaction")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "transaction deleted"})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	views, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID: c.Param("transactionId"),
	})
	if err != nil {
		respondWithError(c, err, "Failed to get transaction")
		return
	}

	c.JSON(http.StatusOK, TransactionsResponse{Count: len(views), Transaction: views})
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	views, err := h.queries.ListTransactions(c.Request.Context(), cqrs.ListTransactionsQuery{})
	if err != nil {
		respondWithError(c, err, "Failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, TransactionsResponse{Count: len(views), Transaction: views})
}

// respondWithError maps domain errors to status codes; anything unrecognised
// is logged through the gin context and reported as a 500 with fallback.
func respondWithError(c *gin.Context, err error, fallback string) {
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithValidationError(c, validationErr.Fields)
	case errors.Is(err, models.ErrAccountNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "account not found")
	case errors.Is(err, models.ErrPostNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "post does not exist")
	case errors.Is(err, models.ErrTransactionNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "transaction not found")
	case errors.Is(err, models.ErrTransactionExists):
		middleware.RespondWithError(c, http.StatusConflict, "transaction exist")
	default:
		_ = c.Error(err)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
