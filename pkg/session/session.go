package session

import (
	"net/url"
	"strings"
	"sync"

	"walletunity/pkg/chains"
	"walletunity/pkg/models"
)

// TxHashParam is the query parameter carrying the active transaction.
const TxHashParam = "txHash"

// View is a routable page.
type View string

const (
	ViewPortfolio    View = "/"
	ViewRedeem       View = "/redeem"
	ViewTransactions View = "/transactions"
)

func ParseView(path string) (View, bool) {
	switch View(path) {
	case ViewPortfolio, ViewRedeem, ViewTransactions:
		return View(path), true
	case "":
		return ViewPortfolio, true
	}
	return "", false
}

// Location is a view plus its query string.
type Location struct {
	View  View
	Query url.Values
}

func (l Location) TxHash() string {
	return l.Query.Get(TxHashParam)
}

func (l Location) String() string {
	if len(l.Query) == 0 {
		return string(l.View)
	}
	return string(l.View) + "?" + l.Query.Encode()
}

// ParseLocation reads a path such as "/redeem?txHash=0x..".
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}
	view, ok := ParseView(u.Path)
	if !ok {
		view = ViewPortfolio
	}
	return Location{View: view, Query: u.Query()}, nil
}

func locationWithTx(view View, hash string) Location {
	q := url.Values{}
	if hash != "" {
		q.Set(TxHashParam, hash)
	}
	return Location{View: view, Query: q}
}

// Dialogs holds one visibility flag per modal. The flags are independent.
type Dialogs struct {
	SendForm     bool `json:"send_form"`
	Confirmation bool `json:"confirmation"`
	Transaction  bool `json:"transaction"`
	Swap         bool `json:"swap"`
}

func (d Dialogs) Any() bool {
	return d.SendForm || d.Confirmation || d.Transaction || d.Swap
}

// SwapInput is what the swap dialog is opened with.
type SwapInput struct {
	Chain chains.Chain `json:"chain"`
	Token chains.Token `json:"token"`
}

// Redirect applies the navigation rule for an observed transaction: a
// signed, completed send or any redeem moves to the redeem view.
func Redirect(tx models.Transaction) (Location, bool) {
	if tx.Hash == "" {
		return Location{}, false
	}
	if tx.Type == models.TxRedeem || (tx.Type == models.TxSend && tx.Status == models.TxComplete && tx.HasSignature()) {
		return locationWithTx(ViewRedeem, tx.Hash), true
	}
	return Location{}, false
}

// Session is the navigation and dialog state of one dashboard user.
type Session struct {
	mu        sync.Mutex
	location  Location
	history   []Location
	dialogs   Dialogs
	source    chains.Chain
	swap      SwapInput
	onRefresh func()
}

// New starts a session at loc. onRefresh, if set, is called whenever the
// portfolio should be fetched again.
func New(loc Location, onRefresh func()) *Session {
	if loc.View == "" {
		loc.View = ViewPortfolio
	}
	if loc.Query == nil {
		loc.Query = url.Values{}
	}
	return &Session{location: loc, onRefresh: onRefresh}
}

func (s *Session) Location() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocation()
}

func (s *Session) copyLocation() Location {
	q := url.Values{}
	for k, v := range s.location.Query {
		q[k] = append([]string(nil), v...)
	}
	return Location{View: s.location.View, Query: q}
}

func (s *Session) Dialogs() Dialogs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialogs
}

// Source is the chain the send form was opened for.
func (s *Session) Source() chains.Chain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Session) SwapInput() SwapInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swap
}

func (s *Session) TxHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location.TxHash()
}

// Navigate pushes loc onto the history.
func (s *Session) Navigate(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(loc)
}

func (s *Session) push(loc Location) {
	s.history = append(s.history, s.location)
	s.replace(loc)
}

func (s *Session) replace(loc Location) {
	if loc.Query == nil {
		loc.Query = url.Values{}
	}
	s.location = loc
}

// Back returns to the previous location. It reports false at the start of
// the history.
func (s *Session) Back() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return false
	}
	s.location = s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	return true
}

// Bridge opens the send form with chain as the source.
func (s *Session) Bridge(chain chains.Chain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = chain
	s.dialogs.SendForm = true
}

// Swap opens the swap dialog for token on chain.
func (s *Session) Swap(chain chains.Chain, token chains.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.swap = SwapInput{Chain: chain, Token: token}
	s.dialogs.Swap = true
}

// CloseSwap closes the swap dialog and asks for a portfolio refresh.
func (s *Session) CloseSwap() {
	s.mu.Lock()
	s.dialogs.Swap = false
	refresh := s.onRefresh
	s.mu.Unlock()
	if refresh != nil {
		refresh()
	}
}

// CloseSendForm dismisses the send form without submitting.
func (s *Session) CloseSendForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs.SendForm = false
}

// Next moves from the send form to the confirmation dialog.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs.SendForm = false
	s.dialogs.Confirmation = true
}

// CloseConfirmation dismisses the confirmation dialog without a transaction.
func (s *Session) CloseConfirmation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs.Confirmation = false
}

// CloseTransaction hides the transaction dialog. The hash stays in the
// location, so the next observed update opens it again.
func (s *Session) CloseTransaction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs.Transaction = false
}

// Confirm records the submitted transaction hash in the location and shows
// the transaction dialog.
func (s *Session) Confirm(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs.Confirmation = false
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return
	}
	loc := s.copyLocation()
	loc.Query.Set(TxHashParam, hash)
	s.replace(loc)
	s.dialogs.Transaction = true
}

// Complete closes the transaction dialog and moves to the redeem view.
func (s *Session) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs.Transaction = false
	s.push(locationWithTx(ViewRedeem, s.location.TxHash()))
}

// Observe reacts to a polled transaction record. It reports whether the
// session was redirected.
func (s *Session) Observe(tx models.Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc, ok := Redirect(tx); ok {
		s.dialogs.Transaction = false
		s.replace(loc)
		return true
	}
	if s.location.TxHash() != "" {
		s.dialogs.Transaction = true
	}
	return false
}
