package execution

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"polytrader/internal/models"
	"polytrader/internal/repository"
	"polytrader/internal/service"
	"polytrader/pkg/crypto"
	"polytrader/pkg/ratelimit"
	"polytrader/pkg/retry"
	"polytrader/pkg/utils"
)

// Минимальный шаг размера ордера на площадке
const orderLotSize = 0.01

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Credentials - L2-креды торговой площадки. Без кред клиент работает
// в симуляции: ордера пишутся в БД со статусом simulated и на
// площадку не уходят.
type Credentials struct {
	Address    string
	APIKey     string
	Secret     string
	Passphrase string
}

// Configured возвращает true если кред достаточно для live-торговли
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.Secret != "" && c.Passphrase != ""
}

// OrderStore - персистентность ордеров, нужная клиенту
type OrderStore interface {
	Create(o *models.Order) (int, error)
	UpdateStatus(id int, status, orderID, errorMessage string) error
	GetActive() ([]*models.Order, error)
	CreateTrade(t *models.Trade) (int, error)
}

var _ OrderStore = (*repository.OrderRepository)(nil)
var _ service.OrderCanceller = (*Client)(nil)

// Client - HTTP-клиент CLOB площадки.
//
// Все пишущие операции идут DB-first: ордер сначала фиксируется в БД
// со статусом pending и только потом уходит на площадку. Упавший
// между этими шагами процесс оставляет pending-запись, которую
// подберет сверка.
type Client struct {
	baseURL    string
	creds      Credentials
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	orders     OrderStore
	positions  service.PositionRepositoryInterface
	pnl        service.PnLRepositoryInterface
	breakerSvc service.BreakerServiceInterface
	auditSvc   service.AuditServiceInterface
	logger     *zap.Logger
	simulated  bool
}

// NewClient создает новый экземпляр Client
func NewClient(
	baseURL string,
	creds Credentials,
	orders OrderStore,
	positions service.PositionRepositoryInterface,
	pnl service.PnLRepositoryInterface,
	breakerSvc service.BreakerServiceInterface,
	auditSvc service.AuditServiceInterface,
	logger *zap.Logger,
) *Client {
	simulated := !creds.Configured()
	if simulated {
		logger.Warn("exchange credentials missing, running in simulated mode")
	}

	return &Client{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    ratelimit.NewRateLimiter(10, 20),
		orders:     orders,
		positions:  positions,
		pnl:        pnl,
		breakerSvc: breakerSvc,
		auditSvc:   auditSvc,
		logger:     logger,
		simulated:  simulated,
	}
}

// Simulated возвращает true если клиент в симуляции
func (c *Client) Simulated() bool {
	return c.simulated
}

// ============ Исполнение ордеров ============

// PlaceOrder отправляет ордер на покупку токена на сумму sizeUSD.
// Размер в токенах считается от текущего midpoint.
func (c *Client) PlaceOrder(ctx context.Context, sig models.TradeSignal, sizeUSD float64, decisionID int64) (*models.Order, error) {
	price, err := c.Midpoint(ctx, sig.TokenID)
	if err != nil {
		return nil, fmt.Errorf("midpoint for token %s: %w", sig.TokenID, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("invalid midpoint %.4f for token %s", price, sig.TokenID)
	}

	did := int(decisionID)
	order := &models.Order{
		MarketID:   sig.MarketID,
		DecisionID: &did,
		Side:       models.SideBuy,
		TokenID:    sig.TokenID,
		Price:      price,
		Size:       utils.RoundToLotSize(sizeUSD/price, orderLotSize),
		Status:     models.OrderStatusPending,
		OrderType:  "GTC",
	}

	id, err := c.orders.Create(order)
	if err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	order.ID = id

	if c.simulated {
		return c.fillSimulated(order)
	}

	exchangeID, err := c.submit(ctx, order)
	if err != nil {
		if uerr := c.orders.UpdateStatus(id, models.OrderStatusError, "", err.Error()); uerr != nil {
			c.logger.Error("order status update failed", zap.Int("id", id), zap.Error(uerr))
		}
		return nil, err
	}

	order.OrderID = exchangeID
	order.Status = models.OrderStatusOpen
	if err := c.orders.UpdateStatus(id, models.OrderStatusOpen, exchangeID, ""); err != nil {
		c.logger.Error("order status update failed", zap.Int("id", id), zap.Error(err))
	}

	c.logger.Info("order placed",
		zap.String("order_id", exchangeID),
		zap.String("token_id", order.TokenID),
		zap.Float64("price", order.Price),
		zap.Float64("size", order.Size))

	c.auditSvc.Record(models.AuditOrderPlaced, map[string]interface{}{
		"order_id": exchangeID,
		"token_id": order.TokenID,
		"side":     order.Side,
		"price":    order.Price,
		"size":     order.Size,
		"size_usd": sizeUSD,
	}, "system")

	return order, nil
}

// fillSimulated мгновенно "исполняет" симулированный ордер и
// открывает позицию по цене ордера
func (c *Client) fillSimulated(order *models.Order) (*models.Order, error) {
	order.Status = models.OrderStatusSimulated
	if err := c.orders.UpdateStatus(order.ID, models.OrderStatusSimulated, "", ""); err != nil {
		return nil, err
	}

	if _, err := c.orders.CreateTrade(&models.Trade{
		TradeID:   localTradeID(order.ID),
		OrderID:   order.ID,
		MarketID:  order.MarketID,
		Side:      order.Side,
		Price:     order.Price,
		Size:      order.Size,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		c.logger.Error("simulated trade record failed", zap.Error(err))
	}

	if order.Side == models.SideBuy {
		pos := &models.Position{
			MarketID:      order.MarketID,
			TokenID:       order.TokenID,
			Side:          order.Side,
			Size:          order.Size,
			AvgEntryPrice: order.Price,
			CurrentPrice:  order.Price,
			Status:        "open",
		}
		if err := c.positions.Upsert(pos); err != nil {
			c.logger.Error("simulated position upsert failed", zap.Error(err))
		}
	}

	c.auditSvc.Record(models.AuditOrderPlaced, map[string]interface{}{
		"token_id":  order.TokenID,
		"side":      order.Side,
		"price":     order.Price,
		"size":      order.Size,
		"simulated": true,
	}, "system")

	return order, nil
}

// ClosePosition продает позицию целиком по текущему midpoint
func (c *Client) ClosePosition(ctx context.Context, p *models.Position, reason string) error {
	price, err := c.Midpoint(ctx, p.TokenID)
	if err != nil {
		return fmt.Errorf("midpoint for token %s: %w", p.TokenID, err)
	}

	order := &models.Order{
		MarketID:  p.MarketID,
		Side:      models.SideSell,
		TokenID:   p.TokenID,
		Price:     price,
		Size:      p.Size,
		Status:    models.OrderStatusPending,
		OrderType: "GTC",
	}

	id, err := c.orders.Create(order)
	if err != nil {
		return fmt.Errorf("persist close order: %w", err)
	}
	order.ID = id

	if !c.simulated {
		exchangeID, err := c.submit(ctx, order)
		if err != nil {
			if uerr := c.orders.UpdateStatus(id, models.OrderStatusError, "", err.Error()); uerr != nil {
				c.logger.Error("order status update failed", zap.Int("id", id), zap.Error(uerr))
			}
			return err
		}
		if err := c.orders.UpdateStatus(id, models.OrderStatusOpen, exchangeID, ""); err != nil {
			c.logger.Error("order status update failed", zap.Int("id", id), zap.Error(err))
		}
	} else {
		if err := c.orders.UpdateStatus(id, models.OrderStatusSimulated, "", ""); err != nil {
			c.logger.Error("order status update failed", zap.Int("id", id), zap.Error(err))
		}
	}

	if _, err := c.orders.CreateTrade(&models.Trade{
		TradeID:   localTradeID(id),
		OrderID:   id,
		MarketID:  p.MarketID,
		Side:      models.SideSell,
		Price:     price,
		Size:      p.Size,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		c.logger.Error("close trade record failed", zap.Error(err))
	}

	realized := utils.PositionPNL(p.AvgEntryPrice, price, p.Size)
	if err := c.positions.Close(p.ID, realized); err != nil {
		return fmt.Errorf("close position %d: %w", p.ID, err)
	}
	if err := c.pnl.AddRealizedPnL(realized, 0); err != nil {
		c.logger.Error("realized pnl update failed", zap.Error(err))
	}

	c.logger.Info("position closed",
		zap.Int("position_id", p.ID),
		zap.String("token_id", p.TokenID),
		zap.Float64("realized_pnl", realized),
		zap.String("reason", reason))

	return nil
}

// CancelAll отменяет все активные ордера. Используется при Stop и
// EmergencyStop, поэтому retry агрессивный.
func (c *Client) CancelAll(ctx context.Context) (int, error) {
	active, err := c.orders.GetActive()
	if err != nil {
		return 0, fmt.Errorf("read active orders: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	if !c.simulated {
		cfg := retry.AggressiveConfig()
		cfg.RetryIf = retry.IsRetryable
		err := retry.Do(ctx, func() error {
			_, err := c.request(ctx, http.MethodDelete, "/cancel-all", nil)
			return err
		}, cfg)
		if err != nil {
			return 0, fmt.Errorf("cancel-all request: %w", err)
		}
	}

	cancelled := 0
	for _, o := range active {
		if err := c.orders.UpdateStatus(o.ID, models.OrderStatusCancelled, "", ""); err != nil {
			c.logger.Error("cancel status update failed", zap.Int("id", o.ID), zap.Error(err))
			continue
		}
		cancelled++
	}

	c.logger.Info("orders cancelled", zap.Int("count", cancelled))
	return cancelled, nil
}

// ============ Отчеты для сверки ============

// OpenOrdersReport возвращает открытые ордера глазами площадки.
// В симуляции площадки нет - отчетом служит локальное состояние.
func (c *Client) OpenOrdersReport(ctx context.Context) ([]models.BrokerOrderReport, error) {
	if c.simulated {
		return c.localOrdersReport()
	}

	body, err := c.request(ctx, http.MethodGet, "/data/orders", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID           string `json:"id"`
		AssetID      string `json:"asset_id"`
		Side         string `json:"side"`
		Price        string `json:"price"`
		OriginalSize string `json:"original_size"`
		SizeMatched  string `json:"size_matched"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode orders report: %w", err)
	}

	report := make([]models.BrokerOrderReport, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.OriginalSize, 64)
		matched, _ := strconv.ParseFloat(r.SizeMatched, 64)
		report = append(report, models.BrokerOrderReport{
			OrderID: r.ID,
			TokenID: r.AssetID,
			Side:    r.Side,
			Price:   price,
			Size:    size - matched,
		})
	}
	return report, nil
}

// PositionsReport возвращает позиции глазами площадки
func (c *Client) PositionsReport(ctx context.Context) ([]models.BrokerPositionReport, error) {
	if c.simulated {
		return c.localPositionsReport()
	}

	body, err := c.request(ctx, http.MethodGet, "/data/positions", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		AssetID string  `json:"asset"`
		Size    float64 `json:"size"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode positions report: %w", err)
	}

	report := make([]models.BrokerPositionReport, 0, len(raw))
	for _, r := range raw {
		report = append(report, models.BrokerPositionReport{
			TokenID: r.AssetID,
			Size:    r.Size,
		})
	}
	return report, nil
}

func (c *Client) localOrdersReport() ([]models.BrokerOrderReport, error) {
	active, err := c.orders.GetActive()
	if err != nil {
		return nil, err
	}
	report := make([]models.BrokerOrderReport, 0, len(active))
	for _, o := range active {
		if o.OrderID == "" {
			continue
		}
		report = append(report, models.BrokerOrderReport{
			OrderID: o.OrderID,
			TokenID: o.TokenID,
			Side:    o.Side,
			Price:   o.Price,
			Size:    o.Size,
		})
	}
	return report, nil
}

func (c *Client) localPositionsReport() ([]models.BrokerPositionReport, error) {
	open, err := c.positions.GetOpen()
	if err != nil {
		return nil, err
	}
	report := make([]models.BrokerPositionReport, 0, len(open))
	for _, p := range open {
		report = append(report, models.BrokerPositionReport{
			TokenID: p.TokenID,
			Size:    p.Size,
		})
	}
	return report, nil
}

// ============ Переоценка позиций ============

// MarkPositions обновляет текущие цены открытых позиций по midpoint
// и пересчитывает unrealized PnL
func (c *Client) MarkPositions(ctx context.Context) error {
	open, err := c.positions.GetOpen()
	if err != nil {
		return fmt.Errorf("read open positions: %w", err)
	}

	var totalUnrealized float64
	for _, p := range open {
		price, err := c.Midpoint(ctx, p.TokenID)
		if err != nil {
			c.logger.Warn("position mark skipped",
				zap.Int("position_id", p.ID),
				zap.Error(err))
			totalUnrealized += p.UnrealizedPnL
			continue
		}

		unrealized := utils.PositionPNL(p.AvgEntryPrice, price, p.Size)
		totalUnrealized += unrealized

		if err := c.positions.UpdateMark(p.ID, price, unrealized); err != nil {
			c.logger.Error("position mark failed",
				zap.Int("position_id", p.ID),
				zap.Error(err))
		}
	}

	if err := c.pnl.UpdateUnrealized(totalUnrealized); err != nil {
		c.logger.Error("unrealized pnl update failed", zap.Error(err))
	}
	return nil
}

// ============ Рыночные запросы ============

// Midpoint возвращает середину спреда токена
func (c *Client) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	body, err := c.request(ctx, http.MethodGet, "/midpoint?token_id="+tokenID, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Mid string `json:"mid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode midpoint: %w", err)
	}
	return strconv.ParseFloat(resp.Mid, 64)
}

// Book возвращает снимок стакана токена
func (c *Client) Book(ctx context.Context, tokenID string) (*models.MarketSnapshot, error) {
	body, err := c.request(ctx, http.MethodGet, "/book?token_id="+tokenID, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Bids []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"bids"`
		Asks []struct {
			Price string `json:"price"`
			Size  string `json:"size"`
		} `json:"asks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode book: %w", err)
	}

	snap := &models.MarketSnapshot{Timestamp: time.Now().UTC()}
	for i, b := range resp.Bids {
		price, _ := strconv.ParseFloat(b.Price, 64)
		size, _ := strconv.ParseFloat(b.Size, 64)
		if i == 0 {
			snap.BestBid = price
		}
		snap.BidDepth += price * size
	}
	for i, a := range resp.Asks {
		price, _ := strconv.ParseFloat(a.Price, 64)
		size, _ := strconv.ParseFloat(a.Size, 64)
		if i == 0 {
			snap.BestAsk = price
		}
		snap.AskDepth += price * size
	}
	return snap, nil
}

// Ping проверяет доступность площадки
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ok", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange ping: status %d", resp.StatusCode)
	}
	return nil
}

// ============ HTTP внутренности ============

// submit отправляет ордер на площадку и возвращает его биржевой ID
func (c *Client) submit(ctx context.Context, order *models.Order) (string, error) {
	payload := map[string]interface{}{
		"tokenID": order.TokenID,
		"side":    order.Side,
		"price":   strconv.FormatFloat(order.Price, 'f', 4, 64),
		"size":    strconv.FormatFloat(order.Size, 'f', 4, 64),
		"type":    order.OrderType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	respBody, err := c.request(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		Success bool   `json:"success"`
		OrderID string `json:"orderID"`
		Error   string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("order rejected: %s", resp.Error)
	}
	return resp.OrderID, nil
}

// request выполняет подписанный запрос с rate limiting. HTTP 429
// взводит api_rate_limit - лимиты площадки исчерпаны и продолжать
// торговать нельзя.
func (c *Client) request(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.creds.Configured() {
		if err := c.sign(req, method, path, body); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		if terr := c.breakerSvc.Trip(ctx, models.BreakerAPIRateLimit,
			fmt.Sprintf("HTTP 429 on %s %s", method, path), "system"); terr != nil {
			c.logger.Error("rate limit breaker trip failed", zap.Error(terr))
		}
		return nil, fmt.Errorf("exchange rate limit exceeded: %s %s", method, path)
	}

	if resp.StatusCode >= 400 {
		return nil, retry.Permanent(fmt.Errorf("exchange error: status %d: %s", resp.StatusCode, string(respBody)))
	}

	return respBody, nil
}

// localTradeID генерирует уникальный trade_id для локальных fill'ов
func localTradeID(orderID int) string {
	return fmt.Sprintf("local-%d-%d", orderID, time.Now().UnixNano())
}

// sign проставляет L2-заголовки аутентификации
func (c *Client) sign(req *http.Request, method, path string, body []byte) error {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	message := timestamp + method + path + string(body)

	signature, err := crypto.SignHMAC(c.creds.Secret, message)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	req.Header.Set("POLY_ADDRESS", c.creds.Address)
	req.Header.Set("POLY_API_KEY", c.creds.APIKey)
	req.Header.Set("POLY_PASSPHRASE", c.creds.Passphrase)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_SIGNATURE", signature)
	return nil
}
