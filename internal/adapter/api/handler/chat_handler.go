package handler

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/usecase"
	"agrolink/pkg/response"
	"agrolink/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type quotationPayload struct {
	ListingID    string  `json:"listing_id"`
	CropName     string  `json:"crop_name"`
	Quantity     int     `json:"quantity" validate:"required,min=1"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"price_per_unit" validate:"omitempty,min=0"`
	Total        float64 `json:"total" validate:"omitempty,min=0"`
	Notes        string  `json:"notes"`
}

// Content may be blank when a quotation rides along; it then defaults
// from the quotation's notes or crop name.
type sendMessageRequest struct {
	RecipientID string            `json:"recipient_id" validate:"required"`
	Content     string            `json:"content" validate:"required_without=Quotation"`
	Quotation   *quotationPayload `json:"quotation"`
}

type sendQuotationRequest struct {
	RecipientID  string  `json:"recipient_id" validate:"required"`
	ListingID    string  `json:"listing_id"`
	CropName     string  `json:"crop_name"`
	Quantity     int     `json:"quantity" validate:"required,min=1"`
	Unit         string  `json:"unit"`
	PricePerUnit float64 `json:"price_per_unit" validate:"omitempty,min=0"`
	Total        float64 `json:"total" validate:"omitempty,min=0"`
	Notes        string  `json:"notes"`
}

// GetConversations returns the caller's inbox, most recently active first.
func (h *ChatHandler) GetConversations(c echo.Context) error {
	userID := c.Get("uid").(string)

	entries, err := h.chatUseCase.ListConversations(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, entries)
}

// GetHistory returns the message history with a recipient and marks the
// thread read for the caller as a side effect of viewing it.
func (h *ChatHandler) GetHistory(c echo.Context) error {
	userID := c.Get("uid").(string)
	recipientID := c.Param("recipientId")

	limit, offset := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.GetHistoryAndAcknowledge(c.Request().Context(), userID, recipientID, limit, offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, messages, total, limit, offset)
}

// SendMessage sends a message to a recipient, optionally carrying a
// quotation.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	input := usecase.SendMessageInput{
		RecipientID: req.RecipientID,
		Content:     req.Content,
	}
	if req.Quotation != nil {
		input.Quotation = &usecase.QuotationInput{
			ListingID:    req.Quotation.ListingID,
			CropName:     req.Quotation.CropName,
			Quantity:     req.Quotation.Quantity,
			Unit:         req.Quotation.Unit,
			PricePerUnit: req.Quotation.PricePerUnit,
			Total:        req.Quotation.Total,
			Notes:        req.Quotation.Notes,
		}
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// SendQuotation sends a structured quotation message to a recipient.
func (h *ChatHandler) SendQuotation(c echo.Context) error {
	var req sendQuotationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		RecipientID: req.RecipientID,
		Content:     req.Notes,
		Quotation: &usecase.QuotationInput{
			ListingID:    req.ListingID,
			CropName:     req.CropName,
			Quantity:     req.Quantity,
			Unit:         req.Unit,
			PricePerUnit: req.PricePerUnit,
			Total:        req.Total,
			Notes:        req.Notes,
		},
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// MarkAsRead clears the caller's unread count for a conversation.
func (h *ChatHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)
	conversationID := c.Param("conversationId")

	if err := h.chatUseCase.MarkAsRead(c.Request().Context(), userID, conversationID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"conversation_id": conversationID,
		"read":            true,
	})
}
