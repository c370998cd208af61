package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/ksred/paper-api/internal/auth"
	"github.com/ksred/paper-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minOrders     = 15
	maxOrders     = 100
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
)

var (
	symbols      = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}
	instructions = []string{types.InstructionBuy, types.InstructionSell}
	orderTypes   = []string{types.OrderTypeMarket, types.OrderTypeLimit}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the paper trading API
type simulationClient struct {
	baseURL     string
	authToken   string
	accountHash string
	client      *http.Client
	mu          sync.Mutex
	stats       map[string]*routeStats
}

// envelope mirrors the standard API response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newSimulationClient creates a client, authenticates, and provisions a
// fresh paper account for the run
func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":         {name: "Authentication"},
			"account":      {name: "Create Account"},
			"place":        {name: "Place Order"},
			"get":          {name: "Get Order"},
			"cancel":       {name: "Cancel Order"},
			"transactions": {name: "List Transactions"},
			"snapshot":     {name: "Get Account"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	hash, err := sc.createAccount()
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	sc.accountHash = hash

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	stats := sc.stats[route]
	stats.addDuration(time.Since(start))
	if failed {
		stats.failures++
	}
}

// call performs one API request and unwraps the response envelope
func (sc *simulationClient) call(route, method, path string, body interface{}, out interface{}) error {
	start := time.Now()
	failed := true
	defer func() { sc.record(route, start, failed) }()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("invalid response (%d): %s", resp.StatusCode, raw)
	}
	if !env.Success {
		code := "UNKNOWN"
		if env.Error != nil {
			code = env.Error.Code
		}
		return fmt.Errorf("%s %s failed: %s", method, path, code)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return err
		}
	}

	failed = false
	return nil
}

// authenticate performs API authentication and returns a bearer token
func (sc *simulationClient) authenticate() (string, error) {
	credentials := auth.Credentials{
		AppKey:    auth.TestAppKey,
		AppSecret: auth.TestAppSecret,
	}

	var token auth.TokenResponse
	if err := sc.call("auth", http.MethodPost, "/v1/oauth/token", credentials, &token); err != nil {
		return "", err
	}
	return token.Token, nil
}

// createAccount provisions a paper account and returns its hash
func (sc *simulationClient) createAccount() (string, error) {
	var pair types.AccountNumberHash
	if err := sc.call("account", http.MethodPost, "/admin/v1/accounts", nil, &pair); err != nil {
		return "", err
	}

	log.Info().
		Str("account_number", pair.AccountNumber).
		Msg("created simulation account")
	return pair.HashValue, nil
}

// placeOrder submits a random order and returns its public ID
func (sc *simulationClient) placeOrder() (int64, error) {
	symbol := symbols[rand.Intn(len(symbols))]
	request := types.OrderRequest{
		Session:   "NORMAL",
		Duration:  "DAY",
		OrderType: orderTypes[rand.Intn(len(orderTypes))],
		OrderLegCollection: []types.OrderLeg{{
			Instruction: instructions[rand.Intn(len(instructions))],
			Quantity:    float64(rand.Intn(20) + 1),
			Instrument:  types.Instrument{Symbol: symbol, AssetType: "EQUITY"},
		}},
	}
	if request.OrderType == types.OrderTypeLimit {
		// Place limits near the oracle baselines so some fill and some rest
		request.Price = 50 + rand.Float64()*450
	}

	var result struct {
		OrderID int64 `json:"order_id"`
	}
	path := fmt.Sprintf("/trader/v1/accounts/%s/orders", sc.accountHash)
	if err := sc.call("place", http.MethodPost, path, request, &result); err != nil {
		return 0, err
	}
	return result.OrderID, nil
}

// getOrder fetches an order's current state
func (sc *simulationClient) getOrder(orderID int64) (*types.Order, error) {
	var order types.Order
	path := fmt.Sprintf("/trader/v1/accounts/%s/orders/%d", sc.accountHash, orderID)
	if err := sc.call("get", http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// cancelOrder attempts to cancel a WORKING order
func (sc *simulationClient) cancelOrder(orderID int64) error {
	path := fmt.Sprintf("/trader/v1/accounts/%s/orders/%d", sc.accountHash, orderID)
	return sc.call("cancel", http.MethodDelete, path, nil, nil)
}

// listTransactions fetches the account's settled fills
func (sc *simulationClient) listTransactions() ([]types.Transaction, error) {
	var txns []types.Transaction
	path := fmt.Sprintf("/trader/v1/accounts/%s/transactions", sc.accountHash)
	if err := sc.call("transactions", http.MethodGet, path, nil, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// getSnapshot fetches the account balance/position snapshot
func (sc *simulationClient) getSnapshot() (*types.AccountSnapshot, error) {
	var snapshot types.AccountSnapshot
	path := fmt.Sprintf("/trader/v1/accounts/%s", sc.accountHash)
	if err := sc.call("snapshot", http.MethodGet, path, nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// runWorker places orders and follows a few of them through their lifecycle
func (sc *simulationClient) runWorker(id, orderCount int, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := 0; i < orderCount; i++ {
		orderID, err := sc.placeOrder()
		if err != nil {
			log.Warn().Err(err).Int("worker", id).Msg("order placement failed")
			continue
		}

		// Occasionally try to cancel straight away; the executor may
		// win the race, which is expected behavior
		if rand.Intn(4) == 0 {
			if err := sc.cancelOrder(orderID); err != nil {
				log.Debug().Err(err).Int64("order_id", orderID).Msg("cancel lost to execution")
			}
		}

		if _, err := sc.getOrder(orderID); err != nil {
			log.Warn().Err(err).Int64("order_id", orderID).Msg("order lookup failed")
		}

		time.Sleep(time.Duration(rand.Intn(80)+20) * time.Millisecond)
	}
}

// printStats outputs the collected per-route latency statistics
func (sc *simulationClient) printStats() {
	fmt.Println("\nSimulation results:")
	for _, stats := range sc.stats {
		if stats.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s calls=%-5d failures=%-4d min=%-10v max=%-10v mean=%-10v median=%-10v p95=%-10v p99=%v\n",
			stats.name, stats.totalCalls, stats.failures, min, max, mean, median, p95, p99)
	}
}

func main() {
	log.Info().Msg("starting paper trading simulation")

	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize simulation client")
	}

	totalOrders := rand.Intn(maxOrders-minOrders+1) + minOrders
	perWorker := totalOrders / numWorkers

	log.Info().
		Int("total_orders", totalOrders).
		Int("workers", numWorkers).
		Msg("placing orders")

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go sc.runWorker(w, perWorker, &wg)
	}
	wg.Wait()

	// Give the execution loop a couple of ticks to settle market orders
	time.Sleep(3 * time.Second)

	txns, err := sc.listTransactions()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list transactions")
	}

	snapshot, err := sc.getSnapshot()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to fetch account snapshot")
	}

	log.Info().
		Int("settled_fills", len(txns)).
		Float64("cash", snapshot.CurrentBalances.TotalCash).
		Int("positions", len(snapshot.Positions)).
		Msg("simulation complete")

	sc.printStats()
}
