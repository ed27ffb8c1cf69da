package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"polytrader/internal/models"
)

// RiskVerdict - результат прохождения сигнала через риск-шлюз
type RiskVerdict struct {
	Allowed    bool                     `json:"allowed"`
	DenyReason string                   `json:"deny_reason,omitempty"`
	SizeUSD    float64                  `json:"size_usd"`
	Checks     []models.RiskCheckResult `json:"checks"`
	DecisionID int64                    `json:"decision_id"`
}

// RiskService - риск-шлюз: единственная точка, через которую сигнал
// стратегии может превратиться в ордер.
//
// Evaluate выполняет ВСЕ проверки и записывает каждый результат в
// решение: аудит должен видеть полную картину и на Allow. Причиной
// отказа считается первая непройденная проверка в фиксированном
// порядке. Любая ошибка чтения данных трактуется как отказ
// соответствующей проверки - при сомнениях не торгуем.
type RiskService struct {
	stateRepo    StateRepositoryInterface
	breakerRepo  BreakerRepositoryInterface
	positionRepo PositionRepositoryInterface
	pnlRepo      PnLRepositoryInterface
	decisionRepo DecisionRepositoryInterface
	metricsRepo  MetricsRepositoryInterface
	configSvc    ConfigServiceInterface
	breakerSvc   BreakerServiceInterface
	auditSvc     AuditServiceInterface
	marketData   MarketDataProvider
	publisher    EventPublisher
	logger       *zap.Logger
}

// NewRiskService создает новый экземпляр RiskService
func NewRiskService(
	stateRepo StateRepositoryInterface,
	breakerRepo BreakerRepositoryInterface,
	positionRepo PositionRepositoryInterface,
	pnlRepo PnLRepositoryInterface,
	decisionRepo DecisionRepositoryInterface,
	metricsRepo MetricsRepositoryInterface,
	configSvc ConfigServiceInterface,
	breakerSvc BreakerServiceInterface,
	auditSvc AuditServiceInterface,
	marketData MarketDataProvider,
	publisher EventPublisher,
	logger *zap.Logger,
) *RiskService {
	return &RiskService{
		stateRepo:    stateRepo,
		breakerRepo:  breakerRepo,
		positionRepo: positionRepo,
		pnlRepo:      pnlRepo,
		decisionRepo: decisionRepo,
		metricsRepo:  metricsRepo,
		configSvc:    configSvc,
		breakerSvc:   breakerSvc,
		auditSvc:     auditSvc,
		marketData:   marketData,
		publisher:    publisher,
		logger:       logger,
	}
}

// Evaluate прогоняет сигнал через все риск-проверки и сохраняет решение.
//
// Перед выдачей Allow состояние бота перечитывается еще раз: Stop или
// halt, случившийся во время проверок, превращает Allow в Deny.
// Обратное невозможно - отказ никогда не пересматривается.
func (s *RiskService) Evaluate(ctx context.Context, sig models.TradeSignal) (*RiskVerdict, error) {
	sizeUSD, err := s.positionSize(sig.Confidence)
	if err != nil {
		return nil, err
	}

	checks := make([]models.RiskCheckResult, 0, 8)
	checks = append(checks, s.checkBotRunning())
	checks = append(checks, s.checkCircuitBreakers())
	checks = append(checks, s.checkMinLiquidity(sig.MarketID))
	checks = append(checks, s.checkTradeSize(sizeUSD))
	checks = append(checks, s.checkCorrelationCap(sig.Asset, sizeUSD))
	checks = append(checks, s.checkMaxPositions())
	checks = append(checks, s.checkMarketClose(sig.MarketID))
	checks = append(checks, s.checkStaleData(sig.Asset))

	denyReason := firstFailed(checks)

	// Протухшие цены не только блокируют сделку, но и взводят предохранитель
	for _, c := range checks {
		if c.Code == models.CheckStaleData && !c.Passed {
			if err := s.breakerSvc.Trip(ctx, models.BreakerStaleData, c.Detail, "system"); err != nil {
				s.logger.Error("failed to trip stale_data breaker",
					zap.String("asset", sig.Asset),
					zap.Error(err))
			}
			break
		}
	}

	// Финальный шлюз: состояние могло измениться пока шли проверки
	if denyReason == "" {
		final := s.checkBotRunning()
		if !final.Passed {
			for i := range checks {
				if checks[i].Code == models.CheckBotRunning {
					checks[i] = final
					break
				}
			}
			denyReason = models.CheckBotRunning
		}
	}

	verdict := &RiskVerdict{
		Allowed:    denyReason == "",
		DenyReason: denyReason,
		SizeUSD:    sizeUSD,
		Checks:     checks,
	}

	decision := &models.Decision{
		Timestamp:    time.Now().UTC(),
		Asset:        sig.Asset,
		MarketID:     sig.MarketID,
		Direction:    sig.Direction,
		Confidence:   sig.Confidence,
		SizeUSD:      sizeUSD,
		RiskChecks:   checks,
		SignalSource: sig.Source,
	}

	id, err := s.decisionRepo.Create(decision)
	if err != nil {
		return nil, err
	}
	verdict.DecisionID = id

	if verdict.Allowed {
		s.auditSvc.Record(models.AuditDecisionAllowed, map[string]interface{}{
			"decision_id": id,
			"asset":       sig.Asset,
			"direction":   sig.Direction,
			"size_usd":    sizeUSD,
		}, "system")
	} else {
		s.logger.Info("trade signal denied",
			zap.String("asset", sig.Asset),
			zap.String("reason", denyReason),
			zap.Int64("decision_id", id))
		s.auditSvc.Record(models.AuditDecisionDenied, map[string]interface{}{
			"decision_id": id,
			"asset":       sig.Asset,
			"direction":   sig.Direction,
			"deny_reason": denyReason,
		}, "system")
	}

	if s.publisher != nil {
		decision.ID = int(id)
		s.publisher.Publish("decision", decision)
	}

	return verdict, nil
}

// MarkExecuted помечает решение исполненным после отправки ордера
func (s *RiskService) MarkExecuted(decisionID int64, executionID string) error {
	return s.decisionRepo.MarkExecuted(decisionID, executionID)
}

// Decisions возвращает последние решения
func (s *RiskService) Decisions(limit int) ([]*models.Decision, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.decisionRepo.List(limit)
}

// CheckDailyLoss сверяет дневной убыток с лимитом и при превышении
// взводит daily_loss_limit (что через BreakerService останавливает
// торговлю). Вызывается воркером после каждой закрытой сделки.
func (s *RiskService) CheckDailyLoss(ctx context.Context) error {
	loss, err := s.pnlRepo.GetDailyLoss()
	if err != nil {
		return err
	}
	limit, err := s.configSvc.GetFloat(models.ConfigDailyLossLimitUSD)
	if err != nil {
		return err
	}

	if loss >= limit {
		reason := fmt.Sprintf("daily loss %.2f >= limit %.2f", loss, limit)
		return s.breakerSvc.Trip(ctx, models.BreakerDailyLossLimit, reason, "system")
	}
	return nil
}

// ShouldExit проверяет take-profit / stop-loss открытой позиции.
// Возвращает признак выхода и причину.
func (s *RiskService) ShouldExit(p *models.Position) (bool, string, error) {
	if p.AvgEntryPrice <= 0 {
		return false, "", nil
	}

	tpPct, err := s.configSvc.GetFloat(models.ConfigTakeProfitPct)
	if err != nil {
		return false, "", err
	}
	slPct, err := s.configSvc.GetFloat(models.ConfigStopLossPct)
	if err != nil {
		return false, "", err
	}

	changePct := (p.CurrentPrice - p.AvgEntryPrice) / p.AvgEntryPrice * 100

	if changePct >= tpPct {
		return true, fmt.Sprintf("take profit: +%.2f%% >= %.2f%%", changePct, tpPct), nil
	}
	if changePct <= -slPct {
		return true, fmt.Sprintf("stop loss: %.2f%% <= -%.2f%%", changePct, slPct), nil
	}
	return false, "", nil
}

// RecordRiskMetrics снимает и сохраняет снимок риск-метрик
func (s *RiskService) RecordRiskMetrics(ctx context.Context) (*models.RiskMetricsSnapshot, error) {
	exposure, err := s.positionRepo.AssetExposure()
	if err != nil {
		return nil, err
	}

	var total, basket float64
	for asset, usd := range exposure {
		total += usd
		for _, correlated := range models.CorrelatedAssets {
			if asset == correlated {
				basket += usd
				break
			}
		}
	}

	loss, err := s.pnlRepo.GetDailyLoss()
	if err != nil {
		return nil, err
	}
	portfolio, err := s.configSvc.GetFloat(models.ConfigPortfolioSizeUSD)
	if err != nil {
		return nil, err
	}

	var correlationRisk float64
	if portfolio > 0 {
		correlationRisk = basket / portfolio * 100
	}

	snapshot := &models.RiskMetricsSnapshot{
		Timestamp:       time.Now().UTC(),
		TotalExposure:   total,
		BTCExposure:     exposure["BTC"],
		ETHExposure:     exposure["ETH"],
		SOLExposure:     exposure["SOL"],
		CorrelationRisk: correlationRisk,
		DailyLoss:       loss,
		PortfolioValue:  portfolio,
	}

	if err := s.metricsRepo.InsertRiskMetrics(snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// LatestRiskMetrics возвращает последний снимок риск-метрик
func (s *RiskService) LatestRiskMetrics() (*models.RiskMetricsSnapshot, error) {
	return s.metricsRepo.LatestRiskMetrics()
}

// positionSize вычисляет размер позиции в долларах.
//
// База - portfolio_trade_pct от портфеля, масштабируется уверенностью
// сигнала и ограничивается max_market_usd сверху.
func (s *RiskService) positionSize(confidence float64) (float64, error) {
	portfolio, err := s.configSvc.GetFloat(models.ConfigPortfolioSizeUSD)
	if err != nil {
		return 0, err
	}
	tradePct, err := s.configSvc.GetFloat(models.ConfigPortfolioTradePct)
	if err != nil {
		return 0, err
	}
	maxMarket, err := s.configSvc.GetFloat(models.ConfigMaxMarketUSD)
	if err != nil {
		return 0, err
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	size := portfolio * tradePct / 100 * confidence
	if size > maxMarket {
		size = maxMarket
	}
	return size, nil
}

// ============ Отдельные риск-проверки ============

func (s *RiskService) checkBotRunning() models.RiskCheckResult {
	st, err := s.stateRepo.Current()
	if err != nil {
		return failed(models.CheckBotRunning, fmt.Sprintf("state read failed: %v", err))
	}
	if st.State != models.StateRunning {
		return failed(models.CheckBotRunning, fmt.Sprintf("bot state is %s", st.State))
	}
	return passed(models.CheckBotRunning)
}

func (s *RiskService) checkCircuitBreakers() models.RiskCheckResult {
	names, err := s.breakerRepo.TrippedNames()
	if err != nil {
		return failed(models.CheckCircuitBreakers, fmt.Sprintf("breaker read failed: %v", err))
	}
	if len(names) > 0 {
		return failed(models.CheckCircuitBreakers, fmt.Sprintf("tripped: %v", names))
	}
	return passed(models.CheckCircuitBreakers)
}

func (s *RiskService) checkMinLiquidity(marketID int) models.RiskCheckResult {
	minLiquidity, err := s.configSvc.GetFloat(models.ConfigMinLiquidityUSD)
	if err != nil {
		return failed(models.CheckMinLiquidity, fmt.Sprintf("config read failed: %v", err))
	}

	liquidity, err := s.marketData.Liquidity(marketID)
	if err != nil {
		return failed(models.CheckMinLiquidity, fmt.Sprintf("liquidity unavailable: %v", err))
	}
	if liquidity < minLiquidity {
		return failed(models.CheckMinLiquidity, fmt.Sprintf("liquidity %.2f < min %.2f", liquidity, minLiquidity))
	}
	return passed(models.CheckMinLiquidity)
}

func (s *RiskService) checkTradeSize(sizeUSD float64) models.RiskCheckResult {
	portfolio, err := s.configSvc.GetFloat(models.ConfigPortfolioSizeUSD)
	if err != nil {
		return failed(models.CheckTradeSize, fmt.Sprintf("config read failed: %v", err))
	}
	tradePct, err := s.configSvc.GetFloat(models.ConfigPortfolioTradePct)
	if err != nil {
		return failed(models.CheckTradeSize, fmt.Sprintf("config read failed: %v", err))
	}
	maxMarketUSD, err := s.configSvc.GetFloat(models.ConfigMaxMarketUSD)
	if err != nil {
		return failed(models.CheckTradeSize, fmt.Sprintf("config read failed: %v", err))
	}

	maxByTradePct := portfolio * tradePct / 100
	if sizeUSD > maxByTradePct {
		return failed(models.CheckTradeSize, fmt.Sprintf("size %.2f > %.2f (%.0f%% of portfolio)", sizeUSD, maxByTradePct, tradePct))
	}
	if sizeUSD > maxMarketUSD {
		return failed(models.CheckTradeSize, fmt.Sprintf("size %.2f > max per market %.2f", sizeUSD, maxMarketUSD))
	}
	if sizeUSD <= 0 {
		return failed(models.CheckTradeSize, "computed size is zero")
	}
	return passed(models.CheckTradeSize)
}

func (s *RiskService) checkCorrelationCap(asset string, sizeUSD float64) models.RiskCheckResult {
	correlated := false
	for _, a := range models.CorrelatedAssets {
		if a == asset {
			correlated = true
			break
		}
	}
	if !correlated {
		return passed(models.CheckCorrelationCap)
	}

	maxBasketPct, err := s.configSvc.GetFloat(models.ConfigCorrelationMaxBasketPct)
	if err != nil {
		return failed(models.CheckCorrelationCap, fmt.Sprintf("config read failed: %v", err))
	}
	portfolio, err := s.configSvc.GetFloat(models.ConfigPortfolioSizeUSD)
	if err != nil {
		return failed(models.CheckCorrelationCap, fmt.Sprintf("config read failed: %v", err))
	}

	exposure, err := s.positionRepo.AssetExposure()
	if err != nil {
		return failed(models.CheckCorrelationCap, fmt.Sprintf("exposure read failed: %v", err))
	}

	var basket float64
	for _, a := range models.CorrelatedAssets {
		basket += exposure[a]
	}

	capUSD := portfolio * maxBasketPct / 100
	if basket+sizeUSD > capUSD {
		return failed(models.CheckCorrelationCap,
			fmt.Sprintf("basket %.2f + size %.2f > cap %.2f", basket, sizeUSD, capUSD))
	}
	return passed(models.CheckCorrelationCap)
}

func (s *RiskService) checkMaxPositions() models.RiskCheckResult {
	maxPositions, err := s.configSvc.GetInt(models.ConfigMaxOpenPositions)
	if err != nil {
		return failed(models.CheckMaxPositions, fmt.Sprintf("config read failed: %v", err))
	}

	count, err := s.positionRepo.OpenCount()
	if err != nil {
		return failed(models.CheckMaxPositions, fmt.Sprintf("position count failed: %v", err))
	}
	if count >= maxPositions {
		return failed(models.CheckMaxPositions, fmt.Sprintf("open positions %d >= max %d", count, maxPositions))
	}
	return passed(models.CheckMaxPositions)
}

func (s *RiskService) checkMarketClose(marketID int) models.RiskCheckResult {
	bufferMinutes, err := s.configSvc.GetInt(models.ConfigMarketCloseBufferMinutes)
	if err != nil {
		return failed(models.CheckMarketClose, fmt.Sprintf("config read failed: %v", err))
	}

	closeTime, err := s.marketData.CloseTime(marketID)
	if err != nil {
		return failed(models.CheckMarketClose, fmt.Sprintf("close time unavailable: %v", err))
	}
	if closeTime == nil {
		return passed(models.CheckMarketClose)
	}

	deadline := closeTime.Add(-time.Duration(bufferMinutes) * time.Minute)
	if !time.Now().Before(deadline) {
		return failed(models.CheckMarketClose,
			fmt.Sprintf("market closes at %s, inside %dm buffer", closeTime.UTC().Format(time.RFC3339), bufferMinutes))
	}
	return passed(models.CheckMarketClose)
}

func (s *RiskService) checkStaleData(asset string) models.RiskCheckResult {
	thresholdSec, err := s.configSvc.GetInt(models.ConfigStaleDataThresholdSec)
	if err != nil {
		return failed(models.CheckStaleData, fmt.Sprintf("config read failed: %v", err))
	}

	age, err := s.marketData.PriceAge(asset)
	if err != nil {
		return failed(models.CheckStaleData, fmt.Sprintf("price age unavailable: %v", err))
	}

	threshold := time.Duration(thresholdSec) * time.Second
	if age > threshold {
		return failed(models.CheckStaleData, fmt.Sprintf("price age %s > threshold %s", age.Round(time.Second), threshold))
	}
	return passed(models.CheckStaleData)
}

// firstFailed возвращает код первой непройденной проверки
func firstFailed(checks []models.RiskCheckResult) string {
	for _, c := range checks {
		if !c.Passed {
			return c.Code
		}
	}
	return ""
}

func passed(code string) models.RiskCheckResult {
	return models.RiskCheckResult{Code: code, Passed: true}
}

func failed(code, detail string) models.RiskCheckResult {
	return models.RiskCheckResult{Code: code, Passed: false, Detail: detail}
}
