package ledgerserver

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/webhooks"
)

// CreateWebhookRequest is a request to notify the URL about committed events of the wallet.
// Proof is signed by a wallet owner over ledger.CreateWebhookMessage.
type CreateWebhookRequest struct {
	WalletID identity.Handle `json:"wallet_id"`
	URL      string          `json:"url"`
	Token    string          `json:"token"`
	Proof    ledger.Proof    `json:"proof"`
}

// RemoveWebhookRequest is a request to stop notifying the URL about events of the wallet.
// Proof is signed by a wallet owner over ledger.RemoveWebhookMessage.
type RemoveWebhookRequest struct {
	WalletID identity.Handle `json:"wallet_id"`
	URL      string          `json:"url"`
	Proof    ledger.Proof    `json:"proof"`
}

// WebhookResponse is a response to webhook requests.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Cause   string `json:"cause,omitempty"`
}

func (s *server) createWebhook(c *fiber.Ctx) error {
	var req CreateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("create webhook endpoint, failed to parse request body: %s", err))
		return fiber.ErrBadRequest
	}

	hook := webhooks.Hook{URL: req.URL, Token: req.Token}
	if err := s.hooks.CreateWebhook(c.Context(), req.WalletID, hook, req.Proof); err != nil {
		return c.JSON(WebhookResponse{Success: false, Cause: err.Error()})
	}
	s.log.Info(fmt.Sprintf("webhook [ %s ] created for wallet [ %s ] by [ %s ]", req.URL, req.WalletID, req.Proof.Signer))

	return c.JSON(WebhookResponse{Success: true})
}

func (s *server) removeWebhook(c *fiber.Ctx) error {
	var req RemoveWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("remove webhook endpoint, failed to parse request body: %s", err))
		return fiber.ErrBadRequest
	}

	if err := s.hooks.RemoveWebhook(c.Context(), req.WalletID, req.URL, req.Proof); err != nil {
		return c.JSON(WebhookResponse{Success: false, Cause: err.Error()})
	}
	s.log.Info(fmt.Sprintf("webhook [ %s ] removed from wallet [ %s ] by [ %s ]", req.URL, req.WalletID, req.Proof.Signer))

	return c.JSON(WebhookResponse{Success: true})
}
