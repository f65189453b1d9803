package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"leased/config"
	nhbstate "leased/core/state"
	"leased/crypto"
	"leased/lease"
	"leased/observability"
	"leased/observability/logging"
	"leased/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	inMemory := flag.Bool("in-memory", false, "Use an in-memory store instead of LevelDB (development only)")
	allowMigrateFlag := flag.Bool("allow-migrate", false, "Allow starting with a mismatched state schema (manual migrations only)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LEASED_ENV"))
	logger := logging.Setup("leased", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openStore(cfg.DataDir, *inMemory)
	if err != nil {
		logger.Error("failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := nhbstate.EnsureStateVersion(db, *allowMigrateFlag); err != nil {
		logger.Error("state schema mismatch", slog.Any("error", err))
		os.Exit(1)
	}
	manager := nhbstate.NewManager(db)
	if err := manager.SetStateVersion(nhbstate.StateVersion); err != nil {
		logger.Error("failed to persist state schema version", slog.Any("error", err))
		os.Exit(1)
	}

	engine := lease.NewEngine(time.Now, cfg.Lease)

	srv := &server{
		logger:       logger,
		manager:      manager,
		engine:       engine,
		repayLimiter: rate.NewLimiter(rate.Limit(20), 40),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/leases", srv.handleListLeases)
	mux.HandleFunc("/leases/get", srv.handleGetLease)
	mux.HandleFunc("/leases/repay", srv.handleRepay)
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("lease module listening", slog.String("addr", cfg.RPCAddress))
	if err := http.ListenAndServe(cfg.RPCAddress, mux); err != nil {
		logger.Error("http server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

func openStore(dataDir string, inMemory bool) (storage.Database, error) {
	if inMemory {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(dataDir)
}

type server struct {
	logger       *slog.Logger
	manager      *nhbstate.Manager
	engine       *lease.Engine
	repayLimiter *rate.Limiter
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) handleListLeases(w http.ResponseWriter, r *http.Request) {
	addrs, err := s.manager.ListLeaseAddresses()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.String())
	}
	writeJSON(w, out)
}

func (s *server) handleGetLease(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("address"))
	if raw == "" {
		http.Error(w, "address query parameter required", http.StatusBadRequest)
		return
	}
	addr, err := crypto.DecodeAddress(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid address: %v", err), http.StatusBadRequest)
		return
	}
	l, ok, err := s.manager.GetLease(addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, leaseView{
		Address:       l.Address.String(),
		Customer:      l.Customer.String(),
		PositionAsset: l.Position.Amount.Amount.String(),
		State:         l.State.Kind.String(),
		PrincipalDue:  l.Loan.PrincipalDue.Amount.String(),
	})
}

type repayRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *server) handleRepay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.repayLimiter.Allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	var req repayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	addr, err := crypto.DecodeAddress(strings.TrimSpace(req.Address))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid address: %v", err), http.StatusBadRequest)
		return
	}
	payment, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
	if !ok {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}

	l, found, err := s.manager.GetLease(addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	resp, err := s.engine.Repay(l, payment)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	l.State = resp.Next
	if err := s.manager.PutLease(l); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	observability.RecordBatch(resp.Batch.Events)
	s.logger.Info("lease repaid", slog.String("address", addr.String()), slog.String("state", l.State.Kind.String()))

	writeJSON(w, leaseView{
		Address:       l.Address.String(),
		Customer:      l.Customer.String(),
		PositionAsset: l.Position.Amount.Amount.String(),
		State:         l.State.Kind.String(),
		PrincipalDue:  l.Loan.PrincipalDue.Amount.String(),
	})
}

type leaseView struct {
	Address       string `json:"address"`
	Customer      string `json:"customer"`
	PositionAsset string `json:"positionAsset"`
	State         string `json:"state"`
	PrincipalDue  string `json:"principalDue"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
