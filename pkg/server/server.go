package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"walletunity/pkg/cctp"
	"walletunity/pkg/chains"
	"walletunity/pkg/metrics"
	"walletunity/pkg/models"
	"walletunity/pkg/session"
	"walletunity/pkg/tracker"
	"walletunity/pkg/watcher"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	watcher *watcher.Watcher
	tracker *tracker.Tracker
	log     *logrus.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(w *watcher.Watcher, t *tracker.Tracker, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		watcher: w,
		tracker: t,
		log:     log,
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.handle("GET /api/portfolio", s.handlePortfolio)
	s.handle("GET /api/chains", s.handleChains)
	s.handle("GET /api/transactions", s.handleGetTransactions)
	s.handle("POST /api/transactions", s.handleTrack)
	s.handle("DELETE /api/transactions", s.handleCancel)
	s.handle("POST /api/bridge", s.handleBridge)
	s.handle("POST /api/redeem", s.handleRedeem)
	s.mux.Handle("GET /metrics", metrics.Handler())
	// Not instrumented: the upgrade needs the raw ResponseWriter.
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	path := pattern[strings.Index(pattern, " ")+1:]
	s.mux.HandleFunc(pattern, metrics.Middleware(path, h))
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) Start(port int) error {
	go s.listen(s.watcher.Hub(), s.watcher.Hub().Subscribe())
	if th := s.tracker.Hub(); th != s.watcher.Hub() {
		go s.listen(th, th.Subscribe())
	}

	s.log.Infof("API Server listening on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.mux)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if address == "" {
		writeJSON(w, http.StatusOK, s.watcher.Portfolios())
		return
	}
	if !common.IsHexAddress(address) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid address %q", address))
		return
	}
	if p, ok := s.watcher.Portfolio(address); ok && r.URL.Query().Get("refresh") == "" {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeJSON(w, http.StatusOK, s.watcher.Fetch(r.Context(), address))
}

type chainView struct {
	chains.ChainInfo
	Tokens []chains.Token `json:"tokens"`
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	var out []chainView
	for _, info := range chains.Infos() {
		out = append(out, chainView{ChainInfo: info, Tokens: chains.TokensOn(info.Chain)})
	}
	writeJSON(w, http.StatusOK, out)
}

// transactionView is a record plus the location the dashboard should move to.
type transactionView struct {
	Transaction models.Transaction `json:"transaction"`
	Redirect    string             `json:"redirect,omitempty"`
	Polling     bool               `json:"polling"`
}

func (s *Server) newTransactionView(tx models.Transaction) transactionView {
	v := transactionView{Transaction: tx, Polling: s.tracker.Polling(tx.Hash)}
	if loc, ok := session.Redirect(tx); ok {
		v.Redirect = loc.String()
	}
	return v
}

func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get(session.TxHashParam)
	if hash == "" {
		views := make([]transactionView, 0)
		for _, tx := range s.tracker.List() {
			views = append(views, s.newTransactionView(tx))
		}
		writeJSON(w, http.StatusOK, views)
		return
	}

	tx, err := s.tracker.Get(hash)
	switch {
	case errors.Is(err, tracker.ErrInvalidHash):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, s.newTransactionView(tx))
	}
}

type trackRequest struct {
	Hash  string        `json:"hash"`
	Chain string        `json:"chain"`
	Type  models.TxType `json:"type"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	chain, err := chains.ParseChain(req.Chain)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Type == "" {
		req.Type = models.TxSend
	}

	tx, err := s.tracker.Track(req.Hash, chain, req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.newTransactionView(tx))
}

// handleCancel stops polling ?txHash=. POSTing the hash again resumes it.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := s.tracker.Cancel(r.URL.Query().Get(session.TxHashParam))
	switch {
	case errors.Is(err, tracker.ErrInvalidHash):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	var req cctp.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	plan, err := cctp.Plan(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

type redeemRequest struct {
	TxHash      string `json:"tx_hash"`
	Destination string `json:"destination"`
}

// handleRedeem builds the receiveMessage call for a signed send.
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	dest, err := chains.ParseChain(req.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tx, err := s.tracker.Get(req.TxHash)
	if errors.Is(err, tracker.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if tx.Type != models.TxSend || !tx.HasSignature() {
		writeError(w, http.StatusConflict, fmt.Errorf("transaction %s has no attestation yet", tx.Hash))
		return
	}

	message, err := hexutil.Decode(tx.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("message: %w", err))
		return
	}
	sig, err := hexutil.Decode(tx.Signature)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("attestation: %w", err))
		return
	}
	call, err := cctp.ReceiveMessage(dest, message, sig)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	// Send initial state before the client is visible to broadcast.
	initialData := map[string]interface{}{
		"type": "initial",
		"data": map[string]interface{}{
			"portfolios":   s.watcher.Portfolios(),
			"transactions": s.tracker.List(),
		},
	}
	s.mu.Lock()
	err = conn.WriteJSON(initialData)
	if err == nil {
		s.clients[conn] = true
	}
	s.mu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listen(hub *watcher.Hub, sub watcher.Subscriber) {
	defer hub.Unsubscribe(sub)

	for event := range sub {
		s.broadcast(event)
	}
}

func (s *Server) broadcast(event watcher.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
