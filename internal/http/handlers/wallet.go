package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/pribylovaa/crypto-dashboard/internal/errors"
	"github.com/pribylovaa/crypto-dashboard/internal/models"
)

type accountsEvent struct {
	Accounts []string `json:"accounts"`
}

type chainEvent struct {
	ChainID string `json:"chain_id"`
}

type connectResponse struct {
	Account string             `json:"account"`
	Wallet  models.WalletState `json:"wallet"`
}

func (h *Handlers) GetWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Wallet.State())
}

// ConnectWallet запрашивает аккаунты у провайдера; при успехе
// состояние уже содержит баланс и цену.
func (h *Handlers) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	account, err := h.deps.Wallet.Connect(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{Account: account, Wallet: h.deps.Wallet.State()})
}

func (h *Handlers) DisconnectWallet(w http.ResponseWriter, r *http.Request) {
	h.deps.Wallet.Disconnect(r.Context())
	writeJSON(w, http.StatusOK, h.deps.Wallet.State())
}

// AccountsChanged принимает событие accountsChanged от UI.
// Пустой список означает отключение.
func (h *Handlers) AccountsChanged(w http.ResponseWriter, r *http.Request) {
	var in accountsEvent
	if err := decodeStrict(w, r, &in, false); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	accounts := make([]string, 0, len(in.Accounts))
	for _, a := range in.Accounts {
		if a = strings.TrimSpace(a); a != "" {
			accounts = append(accounts, a)
		}
	}

	if h.deps.Events != nil {
		h.deps.Events.EmitAccountsChanged(accounts)
	} else {
		h.deps.Wallet.OnAccountsChanged(r.Context(), accounts)
	}

	writeJSON(w, http.StatusAccepted, h.deps.Wallet.State())
}

func (h *Handlers) ChainChanged(w http.ResponseWriter, r *http.Request) {
	var in chainEvent
	if err := decodeStrict(w, r, &in, false); err != nil || strings.TrimSpace(in.ChainID) == "" {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	chainID := strings.TrimSpace(in.ChainID)
	if h.deps.Events != nil {
		h.deps.Events.EmitChainChanged(chainID)
	} else {
		h.deps.Wallet.OnChainChanged(r.Context(), chainID)
	}

	writeJSON(w, http.StatusAccepted, h.deps.Wallet.State())
}

// SyncWallet перечитывает сеть, баланс и цену. Ошибка чтения сети
// не прерывает синхронизацию: флаг сети просто остаётся прежним.
func (h *Handlers) SyncWallet(w http.ResponseWriter, r *http.Request) {
	if st := h.deps.Wallet.State(); st.IsConnected {
		_, _ = h.deps.Wallet.RefreshChain(r.Context())
	}

	writeJSON(w, http.StatusOK, h.deps.Wallet.Sync(r.Context()))
}
