package ledgerserver

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
)

// AliveResponse is a response for alive and version check.
type AliveResponse struct {
	Alive      bool   `json:"alive"`
	APIVersion string `json:"api_version"`
	APIHeader  string `json:"api_header"`
}

func (s *server) alive(c *fiber.Ctx) error {
	return c.JSON(
		AliveResponse{
			Alive:      true,
			APIVersion: ApiVersion,
			APIHeader:  Header,
		})
}

// CreateWalletRequest is a request to create a wallet owned by the owners.
type CreateWalletRequest struct {
	Owners    []identity.Owner `json:"owners"`
	Threshold int              `json:"threshold"`
}

// WalletResponse is a response carrying the wallet record.
// When Success is false Cause holds the reason of the rejection.
type WalletResponse struct {
	Success bool                `json:"success"`
	Cause   string              `json:"cause,omitempty"`
	Wallet  ledger.WalletRecord `json:"wallet"`
}

func (s *server) createWallet(c *fiber.Ctx) error {
	var req CreateWalletRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("create wallet endpoint, failed to parse request body: %s", err))
		return fiber.ErrBadRequest
	}

	w, err := s.ledger.CreateWallet(c.Context(), req.Owners, req.Threshold)
	if err != nil {
		cause, errx := s.rejection("create wallet", err)
		if errx != nil {
			return errx
		}
		return c.JSON(WalletResponse{Success: false, Cause: cause})
	}

	return c.JSON(WalletResponse{Success: true, Wallet: w})
}

func (s *server) fetchWallet(c *fiber.Ctx) error {
	id := identity.Handle(c.Params(walletIDParam))
	if err := id.Validate(); err != nil {
		s.log.Error(fmt.Sprintf("fetch wallet endpoint, wrong wallet id [ %s ]: %s", id, err))
		return fiber.ErrBadRequest
	}

	w, err := s.ledger.FetchWallet(c.Context(), id)
	if err != nil {
		cause, errx := s.rejection("fetch wallet", err)
		if errx != nil {
			return errx
		}
		return c.JSON(WalletResponse{Success: false, Cause: cause})
	}

	return c.JSON(WalletResponse{Success: true, Wallet: w})
}

// ProposeTransactionRequest is a request to propose a transaction signed by the proposer.
type ProposeTransactionRequest struct {
	WalletID identity.Handle `json:"wallet_id"`
	Proposer identity.Owner  `json:"proposer"`
	Subject  string          `json:"subject"`
	Payload  []byte          `json:"payload"`
	Proof    ledger.Proof    `json:"proof"`
}

// TransactionResponse is a response carrying the transaction record.
type TransactionResponse struct {
	Success     bool                     `json:"success"`
	Cause       string                   `json:"cause,omitempty"`
	Transaction ledger.TransactionRecord `json:"transaction"`
}

func (s *server) propose(c *fiber.Ctx) error {
	var req ProposeTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("propose endpoint, failed to parse request body: %s", err))
		return fiber.ErrBadRequest
	}

	trx, err := s.ledger.CreateTransaction(c.Context(), req.WalletID, req.Proposer, req.Subject, req.Payload, req.Proof)
	if err != nil {
		cause, errx := s.rejection("propose", err)
		if errx != nil {
			return errx
		}
		return c.JSON(TransactionResponse{Success: false, Cause: cause})
	}

	return c.JSON(TransactionResponse{Success: true, Transaction: trx})
}

// ApproveTransactionRequest is a request to approve a transaction signed by the approver.
type ApproveTransactionRequest struct {
	WalletID      identity.Handle `json:"wallet_id"`
	TransactionID identity.Handle `json:"transaction_id"`
	Approver      identity.Owner  `json:"approver"`
	Proof         ledger.Proof    `json:"proof"`
}

// ApproveTransactionResponse is a response acknowledging the approval.
type ApproveTransactionResponse struct {
	Success bool               `json:"success"`
	Cause   string             `json:"cause,omitempty"`
	Ack     ledger.ApprovalAck `json:"ack"`
}

func (s *server) approve(c *fiber.Ctx) error {
	var req ApproveTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("approve endpoint, failed to parse request body: %s", err))
		return fiber.ErrBadRequest
	}

	ack, err := s.ledger.Approve(c.Context(), req.WalletID, req.TransactionID, req.Approver, req.Proof)
	if err != nil {
		cause, errx := s.rejection("approve", err)
		if errx != nil {
			return errx
		}
		return c.JSON(ApproveTransactionResponse{Success: false, Cause: cause})
	}

	return c.JSON(ApproveTransactionResponse{Success: true, Ack: ack})
}

// ExecuteTransactionRequest is a request to execute a transaction with the authority derived from the wallet.
type ExecuteTransactionRequest struct {
	WalletID      identity.Handle `json:"wallet_id"`
	TransactionID identity.Handle `json:"transaction_id"`
	Authority     identity.Owner  `json:"authority"`
	Proof         ledger.Proof    `json:"proof"`
}

// ExecuteTransactionResponse is a response acknowledging the execution.
type ExecuteTransactionResponse struct {
	Success bool                `json:"success"`
	Cause   string              `json:"cause,omitempty"`
	Ack     ledger.ExecutionAck `json:"ack"`
}

func (s *server) execute(c *fiber.Ctx) error {
	var req ExecuteTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		s.log.Error(fmt.Sprintf("execute endpoint, failed to parse request body: %s", err))
		return fiber.ErrBadRequest
	}

	ack, err := s.ledger.Execute(c.Context(), req.WalletID, req.TransactionID, req.Authority, req.Proof)
	if err != nil {
		cause, errx := s.rejection("execute", err)
		if errx != nil {
			return errx
		}
		return c.JSON(ExecuteTransactionResponse{Success: false, Cause: cause})
	}

	return c.JSON(ExecuteTransactionResponse{Success: true, Ack: ack})
}

// rejection returns the cause to report when the ledger rejected the request,
// or the fiber error when the ledger failed to process it.
func (s *server) rejection(endpoint string, err error) (string, error) {
	if errors.Is(err, ledger.ErrRejected) {
		s.log.Info(fmt.Sprintf("%s endpoint, rejected: %s", endpoint, err))
		return err.Error(), nil
	}
	s.log.Error(fmt.Sprintf("%s endpoint, ledger failure: %s", endpoint, err))
	return "", fiber.ErrInternalServerError
}
