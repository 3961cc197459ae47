package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"smsgate-backend/services/acquisition"
	"smsgate-backend/services/ledger"
)

// registerApi exposes the acquisition flow over plain HTTP. The chat
// frontend in a full deployment talks to the service in-process; this
// surface exists for standalone runs, debugging and smoke tests.
func registerApi(mux *http.ServeMux, svc *acquisition.Service, linkBase string) {
	api := apiHandler{svc: svc, linkBase: linkBase}

	mux.HandleFunc("POST /v1/start", api.start)
	mux.HandleFunc("POST /v1/membership/confirm", api.confirmMembership)
	mux.HandleFunc("POST /v1/numbers", api.requestNumbers)
	mux.HandleFunc("GET /v1/numbers/page", api.currentPage)
	mux.HandleFunc("POST /v1/numbers/page/next", api.nextPage)
	mux.HandleFunc("POST /v1/numbers/page/prev", api.prevPage)
	mux.HandleFunc("POST /v1/numbers/select", api.selectNumber)
	mux.HandleFunc("POST /v1/numbers/confirm", api.confirmNumber)
	mux.HandleFunc("POST /v1/numbers/poll", api.startPoll)
	mux.HandleFunc("POST /v1/back", api.backToMain)
	mux.HandleFunc("GET /v1/referral", api.referralInfo)
	mux.HandleFunc("GET /v1/rewards", api.listRewards)
	mux.HandleFunc("POST /v1/rewards/select", api.selectReward)
	mux.HandleFunc("POST /v1/rewards/confirm", api.confirmReward)
}

type apiHandler struct {
	svc      *acquisition.Service
	linkBase string
}

func participantId(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.URL.Query().Get("participant"), 10, 64)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, acquisition.ErrInvalidSelection),
		errors.Is(err, acquisition.ErrUnknownReward):
		status = http.StatusBadRequest
	case errors.Is(err, acquisition.ErrNotMember),
		errors.Is(err, acquisition.ErrNotAdmin):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, acquisition.ErrConcurrentSpend):
		status = http.StatusPaymentRequired
	}
	http.Error(w, err.Error(), status)
}

func writeJson(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func (h apiHandler) start(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	referrer, _ := strconv.ParseInt(r.URL.Query().Get("referrer"), 10, 64)
	if err := h.svc.Start(r.Context(), participant, referrer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h apiHandler) confirmMembership(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.ConfirmMembership(r.Context(), participant); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h apiHandler) requestNumbers(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.svc.RequestNumbers(r.Context(), participant); err != nil {
		writeError(w, err)
		return
	}
	view, err := h.svc.CurrentPage(participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, view)
}

func (h apiHandler) pageOp(w http.ResponseWriter, r *http.Request,
	op func(int64) (acquisition.PageView, error)) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := op(participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, view)
}

func (h apiHandler) currentPage(w http.ResponseWriter, r *http.Request) {
	h.pageOp(w, r, h.svc.CurrentPage)
}

func (h apiHandler) nextPage(w http.ResponseWriter, r *http.Request) {
	h.pageOp(w, r, h.svc.NextPage)
}

func (h apiHandler) prevPage(w http.ResponseWriter, r *http.Request) {
	h.pageOp(w, r, h.svc.PrevPage)
}

func (h apiHandler) selectNumber(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		writeError(w, err)
		return
	}
	cand, err := h.svc.Select(r.Context(), participant, index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, cand)
}

func (h apiHandler) confirmNumber(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cand, err := h.svc.Confirm(r.Context(), participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, cand)
}

func (h apiHandler) startPoll(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.StartPoll(r.Context(), participant); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h apiHandler) backToMain(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.svc.BackToMain(participant)
	w.WriteHeader(http.StatusNoContent)
}

func (h apiHandler) listRewards(w http.ResponseWriter, r *http.Request) {
	writeJson(w, h.svc.ListRewards())
}

func (h apiHandler) selectReward(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	reward, err := h.svc.SelectReward(r.Context(), participant, r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, reward)
}

func (h apiHandler) confirmReward(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	reward, err := h.svc.ConfirmReward(r.Context(), participant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, reward)
}

func (h apiHandler) referralInfo(w http.ResponseWriter, r *http.Request) {
	participant, err := participantId(r)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.svc.ReferralInfo(r.Context(), participant, h.linkBase)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, info)
}
