package securedraw

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBodySize = 64 << 10

type (
	InitializePoolRequest struct {
		Capacity int `json:"capacity"`
	}
	InitializePoolResponse struct {
		PoolID string `json:"pool_id"`
	}
	SetParticipantsRequest struct {
		Participants []peer.ID `json:"participants"`
	}
	PoolResponse struct {
		PoolID   string    `json:"pool_id"`
		Capacity int       `json:"capacity"`
		Members  []peer.ID `json:"members"`
	}
	DrawRequest struct {
		Winners int `json:"winners"`
	}
	DrawResponse struct {
		DrawID  string    `json:"draw_id"`
		Slot    uint64    `json:"slot"`
		Seed    string    `json:"seed"`
		Winners []peer.ID `json:"winners"`
	}
	DrawsResponse struct {
		Draws []DrawRecord `json:"draws"`
	}
	CommitmentResponse struct {
		Authority   peer.ID `json:"authority"`
		OracleRef   peer.ID `json:"oracle_ref,omitempty"`
		Status      string  `json:"status"`
		CommitSlot  uint64  `json:"commit_slot"`
		CommittedAt uint64  `json:"committed_at"`
		TTL         uint64  `json:"ttl"`
	}
	GenerateRandomnessRequest struct {
		OracleRef peer.ID `json:"oracle_ref"`
	}
	RandomnessResponse struct {
		Value string `json:"value"`
	}
	OracleRequestResponse struct {
		SeedSlot uint64 `json:"seed_slot"`
	}
	OracleRevealResponse struct {
		Signature string `json:"signature"`
	}
	OraclePublicKeyResponse struct {
		PublicKey string `json:"public_key"`
	}
	SlotResponse struct {
		Slot uint64 `json:"slot"`
	}
	Error struct {
		Error string `json:"error"`
	}
)

func (s *Securedraw) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /securedraw/v0/slot", s.slotHandler)
	mux.HandleFunc("POST /securedraw/v0/pools", s.initializePoolHandler)
	mux.HandleFunc("GET /securedraw/v0/pools/{pool_id}", s.poolHandler)
	mux.HandleFunc("DELETE /securedraw/v0/pools/{pool_id}", s.closeHandler)
	mux.HandleFunc("PUT /securedraw/v0/pools/{pool_id}/participants", s.setParticipantsHandler)
	mux.HandleFunc("POST /securedraw/v0/pools/{pool_id}/draw", s.drawHandler)
	mux.HandleFunc("GET /securedraw/v0/pools/{pool_id}/draws", s.drawsHandler)
	mux.HandleFunc("POST /securedraw/v0/commitments", s.initializeCommitmentHandler)
	mux.HandleFunc("GET /securedraw/v0/commitments/{authority}", s.commitmentHandler)
	mux.HandleFunc("DELETE /securedraw/v0/commitments/{authority}", s.closeHandler)
	mux.HandleFunc("POST /securedraw/v0/commitments/{authority}/generate", s.generateRandomnessHandler)
	mux.HandleFunc("POST /securedraw/v0/commitments/{authority}/reveal", s.getRandomnessHandler)
	if _, ok := s.oracle.(*BeaconOracle); ok {
		mux.HandleFunc("GET /securedraw/v0/oracle/public-key", s.oraclePublicKeyHandler)
		mux.HandleFunc("POST /securedraw/v0/oracle/{ref}", s.oracleRequestHandler)
		mux.HandleFunc("POST /securedraw/v0/oracle/{ref}/reveal", s.oracleRevealHandler)
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return mux
}

// authenticate verifies the caller headers against the request and returns the
// caller with the request body it signed. A signature is accepted once, within the
// request window of the slot it names.
func (s *Securedraw) authenticate(w http.ResponseWriter, r *http.Request) (peer.ID, []byte, bool) {
	caller, err := peer.Decode(r.Header.Get(CallerHeader))
	if err != nil {
		s.writeJson(w, http.StatusUnauthorized, Error{Error: "missing or invalid caller"})
		return "", nil, false
	}
	sig, err := base58.Decode(r.Header.Get(SignatureHeader))
	if err != nil || len(sig) == 0 {
		s.writeJson(w, http.StatusUnauthorized, Error{Error: "missing or invalid signature"})
		return "", nil, false
	}
	slot, err := strconv.ParseUint(r.Header.Get(SlotHeader), 10, 64)
	if err != nil {
		s.writeJson(w, http.StatusUnauthorized, Error{Error: "missing or invalid slot"})
		return "", nil, false
	}
	nonce := r.Header.Get(NonceHeader)
	if nonce == "" || len(nonce) > maxNonceLength {
		s.writeJson(w, http.StatusUnauthorized, Error{Error: "missing or invalid nonce"})
		return "", nil, false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		s.writeJson(w, http.StatusBadRequest, Error{Error: "failed to read request body"})
		return "", nil, false
	}
	if err := VerifySignature(caller, RequestPayload(r.Method, r.URL.Path, slot, nonce, body), sig); err != nil {
		logger.Debugw("Rejected request signature", "caller", caller, "path", r.URL.Path, "err", err)
		s.writeJson(w, http.StatusUnauthorized, Error{Error: "invalid signature"})
		return "", nil, false
	}
	now, err := s.slot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return "", nil, false
	}
	if err := checkRequestSlot(slot, now, s.requestWindow); err != nil {
		logger.Debugw("Rejected stale request", "caller", caller, "path", r.URL.Path, "err", err)
		s.writeJson(w, http.StatusUnauthorized, Error{Error: "stale request"})
		return "", nil, false
	}
	if err := s.replay.claim(caller, nonce); err != nil {
		if errors.Is(err, ErrReplayedRequest) {
			logger.Warnw("Rejected replayed request", "caller", caller, "path", r.URL.Path)
			s.writeJson(w, http.StatusUnauthorized, Error{Error: "replayed request"})
		} else {
			s.writeError(w, err)
		}
		return "", nil, false
	}
	return caller, body, true
}

func (s *Securedraw) slotHandler(w http.ResponseWriter, r *http.Request) {
	slot, err := s.slot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, SlotResponse{Slot: slot})
}

func (s *Securedraw) decodeBody(w http.ResponseWriter, body []byte, v any) bool {
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		s.writeJson(w, http.StatusBadRequest, Error{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Securedraw) initializePoolHandler(w http.ResponseWriter, r *http.Request) {
	caller, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req InitializePoolRequest
	if !s.decodeBody(w, body, &req) {
		return
	}
	id, err := s.InitializePool(r.Context(), caller, req.Capacity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, InitializePoolResponse{PoolID: id})
}

func (s *Securedraw) poolHandler(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("pool_id")
	pool, err := s.Pool(r.Context(), poolID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, PoolResponse{PoolID: poolID, Capacity: pool.Capacity, Members: pool.Members})
}

func (s *Securedraw) setParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	caller, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req SetParticipantsRequest
	if !s.decodeBody(w, body, &req) {
		return
	}
	poolID := r.PathValue("pool_id")
	if err := s.SetParticipants(r.Context(), poolID, caller, req.Participants); err != nil {
		s.writeError(w, err)
		return
	}
	s.poolHandler(w, r)
}

func (s *Securedraw) drawHandler(w http.ResponseWriter, r *http.Request) {
	caller, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req DrawRequest
	if !s.decodeBody(w, body, &req) {
		return
	}
	if req.Winners < 1 || req.Winners > MaxWinners {
		s.writeJson(w, http.StatusBadRequest, Error{
			Error: "invalid winner count: must be at least 1 and no more than 255",
		})
		return
	}
	result, err := s.DrawWinners(r.Context(), r.PathValue("pool_id"), caller, req.Winners)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, DrawResponse{
		DrawID:  result.DrawID,
		Slot:    result.Slot,
		Seed:    hex.EncodeToString(result.Seed),
		Winners: result.Winners,
	})
}

func (s *Securedraw) drawsHandler(w http.ResponseWriter, r *http.Request) {
	draws, err := s.Draws(r.PathValue("pool_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if draws == nil {
		draws = []DrawRecord{}
	}
	s.writeJson(w, http.StatusOK, DrawsResponse{Draws: draws})
}

func (s *Securedraw) initializeCommitmentHandler(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if err := s.InitializeCommitment(r.Context(), caller); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCommitment(w, r, caller)
}

func (s *Securedraw) commitmentHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := s.authorityPath(w, r)
	if !ok {
		return
	}
	s.writeCommitment(w, r, authority)
}

func (s *Securedraw) writeCommitment(w http.ResponseWriter, r *http.Request, authority peer.ID) {
	c, err := s.Commitment(r.Context(), authority)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, CommitmentResponse{
		Authority:   c.Authority,
		OracleRef:   c.OracleRef,
		Status:      c.Status.String(),
		CommitSlot:  c.CommitSlot,
		CommittedAt: c.CommittedAt,
		TTL:         c.TTL,
	})
}

func (s *Securedraw) generateRandomnessHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := s.authorityPath(w, r)
	if !ok {
		return
	}
	caller, body, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	var req GenerateRandomnessRequest
	if !s.decodeBody(w, body, &req) {
		return
	}
	if checkID(req.OracleRef) != nil {
		s.writeJson(w, http.StatusBadRequest, Error{Error: "invalid oracle reference"})
		return
	}
	if err := s.GenerateRandomness(r.Context(), authority, caller, req.OracleRef); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCommitment(w, r, authority)
}

func (s *Securedraw) getRandomnessHandler(w http.ResponseWriter, r *http.Request) {
	authority, ok := s.authorityPath(w, r)
	if !ok {
		return
	}
	caller, _, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	value, err := s.GetRandomness(r.Context(), authority, caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, RandomnessResponse{Value: hex.EncodeToString(value)})
}

func (s *Securedraw) closeHandler(w http.ResponseWriter, r *http.Request) {
	var key string
	if poolID := r.PathValue("pool_id"); poolID != "" {
		key = PoolKey(poolID)
	} else {
		authority, ok := s.authorityPath(w, r)
		if !ok {
			return
		}
		key = CommitmentKey(authority)
	}
	caller, _, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	payer := caller
	if p := r.URL.Query().Get("payer"); p != "" {
		var err error
		if payer, err = peer.Decode(p); err != nil {
			s.writeJson(w, http.StatusBadRequest, Error{Error: "invalid payer"})
			return
		}
	}
	if err := s.Close(r.Context(), key, caller, payer); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Securedraw) oraclePublicKeyHandler(w http.ResponseWriter, _ *http.Request) {
	pub, err := s.oracle.(*BeaconOracle).PublicKey()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, OraclePublicKeyResponse{PublicKey: base58.Encode(pub)})
}

func (s *Securedraw) oracleRequestHandler(w http.ResponseWriter, r *http.Request) {
	ref, err := peer.Decode(r.PathValue("ref"))
	if err != nil {
		s.writeJson(w, http.StatusBadRequest, Error{Error: "invalid oracle reference"})
		return
	}
	slot, err := s.oracle.(*BeaconOracle).Request(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, OracleRequestResponse{SeedSlot: slot})
}

func (s *Securedraw) oracleRevealHandler(w http.ResponseWriter, r *http.Request) {
	ref, err := peer.Decode(r.PathValue("ref"))
	if err != nil {
		s.writeJson(w, http.StatusBadRequest, Error{Error: "invalid oracle reference"})
		return
	}
	sig, err := s.oracle.(*BeaconOracle).Reveal(r.Context(), ref)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJson(w, http.StatusOK, OracleRevealResponse{Signature: base58.Encode(sig)})
}

func (s *Securedraw) authorityPath(w http.ResponseWriter, r *http.Request) (peer.ID, bool) {
	authority, err := peer.Decode(r.PathValue("authority"))
	if err != nil {
		s.writeJson(w, http.StatusBadRequest, Error{Error: "invalid authority"})
		return "", false
	}
	return authority, true
}

func (s *Securedraw) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Errorw("Request failed", "err", err)
		s.writeJson(w, status, Error{Error: "internal error"})
		return
	}
	s.writeJson(w, status, Error{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotResolved):
		return http.StatusTooEarly
	case errors.Is(err, ErrStaleSeed),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrCommitmentPending),
		errors.Is(err, ErrRecordExists),
		errors.Is(err, ErrRequestExists),
		errors.Is(err, ErrSelectionStalled),
		errors.Is(err, ErrArithmeticOverflow):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientPool),
		errors.Is(err, ErrPoolCapacity),
		errors.Is(err, ErrDuplicateParticipant),
		errors.Is(err, ErrInvalidParticipant),
		errors.Is(err, ErrInvalidDrawSize),
		errors.Is(err, ErrEmptySeed),
		errors.Is(err, ErrWrongRecordKind),
		errors.Is(err, ErrUnknownRandomness),
		errors.Is(err, ErrInvalidReference):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Securedraw) writeJson(w http.ResponseWriter, statusCode int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorw("Failed to write JSON", "status", statusCode, "error", err)
	}
}
