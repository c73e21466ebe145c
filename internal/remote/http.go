package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kasirinaja/posclient/internal/domain"
)

const maxResponseBytes = 8 << 20

// Client talks to the commerce authority over HTTP JSON.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL string, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) SubmitSale(ctx context.Context, payload domain.SalePayload) (SaleResult, error) {
	var out wireSaleResult
	if err := c.do(ctx, http.MethodPost, "/sales", fromSalePayload(payload), &out); err != nil {
		return SaleResult{}, err
	}
	if out.ID == "" {
		return SaleResult{}, fmt.Errorf("%w: sale accepted without id", domain.ErrBackendRejected)
	}
	return SaleResult{TransactionID: out.ID, CreatedAt: out.CreatedAt}, nil
}

func (c *Client) SubmitVoid(ctx context.Context, transactionID string, reason string) error {
	return c.do(ctx, http.MethodPost, "/transactions/"+url.PathEscape(transactionID)+"/void", wireReversal{Reason: reason}, nil)
}

func (c *Client) SubmitRefund(ctx context.Context, transactionID string, reason string) error {
	return c.do(ctx, http.MethodPost, "/transactions/"+url.PathEscape(transactionID)+"/refund", wireReversal{Reason: reason}, nil)
}

func (c *Client) FetchTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var out wireTransaction
	if err := c.do(ctx, http.MethodGet, "/transactions/"+url.PathEscape(transactionID), nil, &out); err != nil {
		return nil, err
	}
	tx := toTransaction(out)
	return &tx, nil
}

func (c *Client) FetchSnapshot(ctx context.Context, storeID string) (*domain.Snapshot, error) {
	var out wireSnapshot
	if err := c.do(ctx, http.MethodGet, storePath(storeID, "snapshot"), nil, &out); err != nil {
		return nil, err
	}
	snap := toSnapshot(out)
	return &snap, nil
}

func (c *Client) FetchCatalog(ctx context.Context, storeID string) ([]domain.Product, error) {
	return fetchList(ctx, c, storePath(storeID, "products"), toProduct)
}

func (c *Client) FetchTransactions(ctx context.Context, storeID string) ([]domain.Transaction, error) {
	return fetchList(ctx, c, storePath(storeID, "transactions"), toTransaction)
}

func (c *Client) FetchCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	return fetchList(ctx, c, storePath(storeID, "customers"), toCustomer)
}

func (c *Client) FetchSuppliers(ctx context.Context, storeID string) ([]domain.Supplier, error) {
	return fetchList(ctx, c, storePath(storeID, "suppliers"), toSupplier)
}

func (c *Client) FetchPromotions(ctx context.Context, storeID string) ([]domain.Promotion, error) {
	return fetchList(ctx, c, storePath(storeID, "promotions"), toPromotion)
}

func (c *Client) FetchPurchaseOrders(ctx context.Context, storeID string) ([]domain.PurchaseOrder, error) {
	return fetchList(ctx, c, storePath(storeID, "purchase-orders"), toPurchaseOrder)
}

func (c *Client) FetchStockMovements(ctx context.Context, storeID string) ([]domain.StockMovement, error) {
	return fetchList(ctx, c, storePath(storeID, "stock-movements"), toStockMovement)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func storePath(storeID string, collection string) string {
	return "/stores/" + url.PathEscape(storeID) + "/" + collection
}

func fetchList[W any, D any](ctx context.Context, c *Client, path string, fn func(W) D) ([]D, error) {
	var out []W
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return mapAll(out, fn), nil
}

// do performs one request and classifies the outcome: transport failures and
// 5xx are ErrNetworkUnavailable, 403 is ErrPermissionDenied, other 4xx and
// explicit {success:false} bodies are ErrBackendRejected.
func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: authority url is not configured", domain.ErrNetworkUnavailable)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrNetworkUnavailable, method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrNetworkUnavailable, path, err)
	}

	var env envelope[json.RawMessage]
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && res.StatusCode < 300 {
			return fmt.Errorf("%w: decode %s: %v", domain.ErrBackendRejected, path, err)
		}
	}

	switch {
	case res.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d", domain.ErrNetworkUnavailable, path, res.StatusCode)
	case res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrPermissionDenied, messageOr(env.Error, "forbidden"))
	case res.StatusCode >= 400:
		return fmt.Errorf("%w: %s", domain.ErrBackendRejected, messageOr(env.Error, http.StatusText(res.StatusCode)))
	case env.Success != nil && !*env.Success:
		return fmt.Errorf("%w: %s", domain.ErrBackendRejected, messageOr(env.Error, "request rejected"))
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s data: %v", domain.ErrBackendRejected, path, err)
	}
	return nil
}

func messageOr(msg string, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
