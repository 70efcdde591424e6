package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/bartossh/Multisigner/identity"
	"github.com/bartossh/Multisigner/ledger"
	"github.com/bartossh/Multisigner/ledgerserver"
)

const defaultTimeout = 5 * time.Second

var (
	ErrApiVersionMismatch            = fmt.Errorf("api version mismatch")
	ErrApiHeaderMismatch             = fmt.Errorf("api header mismatch")
	ErrStatusCodeMismatch            = fmt.Errorf("status code mismatch")
	ErrContentTypeMismatch           = fmt.Errorf("content type mismatch")
	ErrServerReturnsInconsistentData = fmt.Errorf("server returns inconsistent data")
)

// Config configures the connection to the ledger node.
type Config struct {
	URL            string `yaml:"url"`             // Root URL of the ledger node API.
	TimeoutSeconds int    `yaml:"timeout_seconds"` // Request timeout when context has no earlier deadline.
}

// Rest is a rest client of the ledger node. It implements ledger.Ledger.
type Rest struct {
	apiRoot string
	timeout time.Duration
	client  *fasthttp.Client
}

var _ ledger.Ledger = (*Rest)(nil)

// NewRest creates a new rest client.
func NewRest(cfg Config) *Rest {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Rest{
		apiRoot: strings.TrimSuffix(cfg.URL, "/"),
		timeout: timeout,
		client:  &fasthttp.Client{Name: ledgerserver.Header},
	}
}

// ValidateApiVersion makes a call to the API server and validates client and server API versions and header correctness.
func (r *Rest) ValidateApiVersion(ctx context.Context) error {
	var alive ledgerserver.AliveResponse
	if err := r.makeGet(ctx, ledgerserver.AliveURL, &alive); err != nil {
		return err
	}

	if alive.APIVersion != ledgerserver.ApiVersion {
		return errors.Join(ErrApiVersionMismatch, fmt.Errorf("expected %s but got %s", ledgerserver.ApiVersion, alive.APIVersion))
	}

	if alive.APIHeader != ledgerserver.Header {
		return errors.Join(ErrApiHeaderMismatch, fmt.Errorf("expected %s but got %s", ledgerserver.Header, alive.APIHeader))
	}

	return nil
}

// CreateWallet requests the ledger to create a wallet.
func (r *Rest) CreateWallet(ctx context.Context, owners []identity.Owner, threshold int) (ledger.WalletRecord, error) {
	req := ledgerserver.CreateWalletRequest{Owners: owners, Threshold: threshold}
	var res ledgerserver.WalletResponse
	if err := r.makePost(ctx, ledgerserver.CreateWalletURL, req, &res); err != nil {
		return ledger.WalletRecord{}, err
	}
	if !res.Success {
		return ledger.WalletRecord{}, rejected(res.Cause)
	}
	return res.Wallet, nil
}

// CreateTransaction requests the ledger to create a transaction proposed by the proposer.
func (r *Rest) CreateTransaction(
	ctx context.Context, walletID identity.Handle, proposer identity.Owner, subject string, payload []byte, proof ledger.Proof,
) (ledger.TransactionRecord, error) {
	req := ledgerserver.ProposeTransactionRequest{
		WalletID: walletID,
		Proposer: proposer,
		Subject:  subject,
		Payload:  payload,
		Proof:    proof,
	}
	var res ledgerserver.TransactionResponse
	if err := r.makePost(ctx, ledgerserver.ProposeTransactionURL, req, &res); err != nil {
		return ledger.TransactionRecord{}, err
	}
	if !res.Success {
		return ledger.TransactionRecord{}, rejected(res.Cause)
	}
	if res.Transaction.WalletID != walletID || res.Transaction.Proposer != proposer {
		return ledger.TransactionRecord{}, errors.Join(
			ErrServerReturnsInconsistentData, errors.New("proposed transaction does not match the request"))
	}
	return res.Transaction, nil
}

// Approve requests the ledger to record the approval.
func (r *Rest) Approve(
	ctx context.Context, walletID, trxID identity.Handle, approver identity.Owner, proof ledger.Proof,
) (ledger.ApprovalAck, error) {
	req := ledgerserver.ApproveTransactionRequest{
		WalletID:      walletID,
		TransactionID: trxID,
		Approver:      approver,
		Proof:         proof,
	}
	var res ledgerserver.ApproveTransactionResponse
	if err := r.makePost(ctx, ledgerserver.ApproveTransactionURL, req, &res); err != nil {
		return ledger.ApprovalAck{}, err
	}
	if !res.Success {
		return ledger.ApprovalAck{}, rejected(res.Cause)
	}
	if res.Ack.TransactionID != trxID {
		return ledger.ApprovalAck{}, errors.Join(
			ErrServerReturnsInconsistentData, fmt.Errorf("approval acknowledged for transaction %s", res.Ack.TransactionID))
	}
	return res.Ack, nil
}

// Execute requests the ledger to execute the transaction.
func (r *Rest) Execute(
	ctx context.Context, walletID, trxID identity.Handle, authority identity.Owner, proof ledger.Proof,
) (ledger.ExecutionAck, error) {
	req := ledgerserver.ExecuteTransactionRequest{
		WalletID:      walletID,
		TransactionID: trxID,
		Authority:     authority,
		Proof:         proof,
	}
	var res ledgerserver.ExecuteTransactionResponse
	if err := r.makePost(ctx, ledgerserver.ExecuteTransactionURL, req, &res); err != nil {
		return ledger.ExecutionAck{}, err
	}
	if !res.Success {
		return ledger.ExecutionAck{}, rejected(res.Cause)
	}
	if res.Ack.TransactionID != trxID {
		return ledger.ExecutionAck{}, errors.Join(
			ErrServerReturnsInconsistentData, fmt.Errorf("execution acknowledged for transaction %s", res.Ack.TransactionID))
	}
	return res.Ack, nil
}

// FetchWallet reads the wallet from the ledger.
func (r *Rest) FetchWallet(ctx context.Context, walletID identity.Handle) (ledger.WalletRecord, error) {
	if err := walletID.Validate(); err != nil {
		return ledger.WalletRecord{}, err
	}
	var res ledgerserver.WalletResponse
	if err := r.makeGet(ctx, ledgerserver.FetchWalletPath(walletID), &res); err != nil {
		return ledger.WalletRecord{}, err
	}
	if !res.Success {
		return ledger.WalletRecord{}, rejected(res.Cause)
	}
	if res.Wallet.ID != walletID {
		return ledger.WalletRecord{}, errors.Join(
			ErrServerReturnsInconsistentData, fmt.Errorf("requested wallet %s but got %s", walletID, res.Wallet.ID))
	}
	return res.Wallet, nil
}

// CreateWebhook registers the hook URL notified about committed events of the wallet.
// The signer must be a wallet owner.
func (r *Rest) CreateWebhook(ctx context.Context, walletID identity.Handle, hookURL, token string, signer ledger.Signer) error {
	req := ledgerserver.CreateWebhookRequest{
		WalletID: walletID,
		URL:      hookURL,
		Token:    token,
		Proof:    ledger.Sign(signer, ledger.CreateWebhookMessage(walletID, hookURL)),
	}
	var res ledgerserver.WebhookResponse
	if err := r.makePost(ctx, ledgerserver.CreateWebhookURL, req, &res); err != nil {
		return err
	}
	if !res.Success {
		return rejected(res.Cause)
	}
	return nil
}

// RemoveWebhook stops notifying the hook URL about events of the wallet.
func (r *Rest) RemoveWebhook(ctx context.Context, walletID identity.Handle, hookURL string, signer ledger.Signer) error {
	req := ledgerserver.RemoveWebhookRequest{
		WalletID: walletID,
		URL:      hookURL,
		Proof:    ledger.Sign(signer, ledger.RemoveWebhookMessage(walletID, hookURL)),
	}
	var res ledgerserver.WebhookResponse
	if err := r.makePost(ctx, ledgerserver.RemoveWebhookURL, req, &res); err != nil {
		return err
	}
	if !res.Success {
		return rejected(res.Cause)
	}
	return nil
}

func rejected(cause string) error {
	if cause == "" {
		cause = "no cause given"
	}
	return ledger.Reject(errors.New(cause))
}

func (r *Rest) makePost(ctx context.Context, path string, out, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(r.apiRoot + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req.SetBody(raw)

	return r.do(ctx, req, in)
}

func (r *Rest) makeGet(ctx context.Context, path string, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(r.apiRoot + path)
	req.Header.SetMethod(fasthttp.MethodGet)

	return r.do(ctx, req, in)
}

func (r *Rest) do(ctx context.Context, req *fasthttp.Request, in any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := r.timeout
	boundByCtx := false
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
			boundByCtx = true
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := r.client.DoTimeout(req, resp, timeout); err != nil {
		if boundByCtx && errors.Is(err, fasthttp.ErrTimeout) {
			return errors.Join(err, context.DeadlineExceeded)
		}
		return err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return errors.Join(
			ErrStatusCodeMismatch,
			fmt.Errorf("expected status code %d but got %d", fasthttp.StatusOK, resp.StatusCode()))
	}

	contentType := resp.Header.Peek("Content-Type")
	if !bytes.HasPrefix(contentType, []byte("application/json")) {
		return errors.Join(
			ErrContentTypeMismatch,
			fmt.Errorf("expected content type application/json but got %s", contentType))
	}

	return json.Unmarshal(resp.Body(), in)
}
