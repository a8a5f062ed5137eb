package cascade

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	dto "infinity_stones/internal/api/dto/cascade"
	"infinity_stones/internal/api/middleware"
	"infinity_stones/internal/engine"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
	statsModel "infinity_stones/internal/repository/stats_repo/model"
	"infinity_stones/pkg/token"
)

var secret = []byte("test-secret")

const validRequestID = "6f1c1f0e-3d0c-4e55-9a3a-2b8f0b4f5f10"

type stubService struct {
	spinErr   error
	verifyErr error
	lastSpin  model.CascadeSpin
}

func (s *stubService) Open(_ context.Context, sessionID string) (*model.OpenedSession, error) {
	return &model.OpenedSession{State: model.NewSessionState(sessionID), Grid: model.Grid{{0, 1}, {1, 0}}}, nil
}

func (s *stubService) Spin(_ context.Context, req model.CascadeSpin) (*model.CascadeSpinResult, error) {
	s.lastSpin = req
	if s.spinErr != nil {
		return nil, s.spinErr
	}
	return &model.CascadeSpinResult{
		RequestID:   req.RequestID,
		SessionID:   req.SessionID,
		Wager:       req.Wager,
		InitialGrid: model.Grid{{0, 1}, {1, 0}},
		TotalWin:    decimal.RequireFromString("1.5"),
		Balance:     decimal.NewFromInt(10),
		ModeBefore:  model.ModeBase,
		ModeAfter:   model.ModeBase,
	}, nil
}

func (s *stubService) BuyBonus(context.Context, model.BuyBonus) (*model.BuyBonusResult, error) {
	return nil, errs.WrapLevel(errs.Warn, errs.ErrNotAllowed, "bonus is already active")
}

func (s *stubService) Deposit(_ context.Context, req model.Deposit) (decimal.Decimal, error) {
	return req.Amount, nil
}

func (s *stubService) CheckData(_ context.Context, sessionID string) (*model.CascadeData, error) {
	return &model.CascadeData{State: model.NewSessionState(sessionID), Balance: decimal.NewFromInt(3)}, nil
}

func (s *stubService) Result(context.Context, string, string) (*model.CascadeSpinResult, error) {
	return nil, errs.WrapLevel(errs.Warn, errs.ErrNotFound, "spin")
}

func (s *stubService) Verify(context.Context, string, string) error {
	return s.verifyErr
}

func (s *stubService) ReportDesync(context.Context, model.DesyncReport) error {
	return nil
}

func (s *stubService) Stats() statsModel.Stats {
	return statsModel.Stats{TotalSpins: 7, TotalBet: decimal.NewFromInt(7), TotalPayout: decimal.NewFromInt(5)}
}

func newServer(t *testing.T, serv *stubService) *httptest.Server {
	t.Helper()

	h := NewHandler(HandlerDeps{Serv: serv, Logger: zap.NewNop()})
	r := chi.NewRouter()
	r.Route("/cascade", func(rr chi.Router) {
		rr.Use(middleware.Auth(secret))
		h.Register(rr)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	tok, err := token.GenerateAccessToken("s1", secret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestUnauthorized(t *testing.T) {
	srv := newServer(t, &stubService{})

	res, err := http.Post(srv.URL+"/cascade/spin", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestSpin(t *testing.T) {
	serv := &stubService{}
	srv := newServer(t, serv)

	res := do(t, srv, http.MethodPost, "/cascade/spin", `{"wager":"1.00","client_mode":"base"}`,
		map[string]string{idempotencyHeader: validRequestID})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}

	var out dto.SpinResponse
	if err := jsoniter.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.TotalWin != "1.50" || out.Balance != "10.00" || out.Wager != "1.00" {
		t.Fatalf("money fields %q %q %q", out.TotalWin, out.Balance, out.Wager)
	}
	if len(out.InitialGrid) != 2 || out.InitialGrid[0][1] != 1 {
		t.Fatalf("grid %v", out.InitialGrid)
	}

	if serv.lastSpin.SessionID != "s1" || serv.lastSpin.RequestID != validRequestID {
		t.Fatalf("service got %+v", serv.lastSpin)
	}
	if serv.lastSpin.ClientMode != model.ModeBase {
		t.Fatalf("client mode %q", serv.lastSpin.ClientMode)
	}
}

func TestSpinRequestIDFromBody(t *testing.T) {
	serv := &stubService{}
	srv := newServer(t, serv)

	body := fmt.Sprintf(`{"request_id":%q,"wager":1}`, validRequestID)
	res := do(t, srv, http.MethodPost, "/cascade/spin", body, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if serv.lastSpin.RequestID != validRequestID {
		t.Fatalf("request id %q", serv.lastSpin.RequestID)
	}
}

func TestSpinRejectsBadRequestID(t *testing.T) {
	srv := newServer(t, &stubService{})

	res := do(t, srv, http.MethodPost, "/cascade/spin", `{"request_id":"r1","wager":"1"}`, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"wager", errs.WrapLevel(errs.Warn, errs.ErrInvalidWager, "wager"), http.StatusBadRequest},
		{"funds", errs.WrapLevel(errs.Warn, errs.ErrInsufficientFunds, "debit"), http.StatusPaymentRequired},
		{"conflict", errs.WrapLevel(errs.Warn, errs.ErrConflict, "exhausted"), http.StatusConflict},
		{"duplicate", errs.WrapLevel(errs.Warn, errs.ErrDuplicateRequest, "other session"), http.StatusConflict},
		{"busy", errs.WrapLevel(errs.Warn, errs.ErrSessionBusy, "deadline"), http.StatusTooManyRequests},
		{"fatal", errs.Fatalf("cascade depth exceeded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, &stubService{spinErr: tc.err})
			res := do(t, srv, http.MethodPost, "/cascade/spin", `{"wager":"1"}`,
				map[string]string{idempotencyHeader: validRequestID})
			if res.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tc.want)
			}
		})
	}
}

func TestBuyBonusNotAllowed(t *testing.T) {
	srv := newServer(t, &stubService{})

	res := do(t, srv, http.MethodPost, "/cascade/buy-bonus", `{"wager":"1"}`,
		map[string]string{idempotencyHeader: validRequestID})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", res.StatusCode)
	}
}

func TestResultNotFound(t *testing.T) {
	srv := newServer(t, &stubService{})

	res := do(t, srv, http.MethodGet, "/cascade/result/"+validRequestID, "", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}

func TestVerifyMismatchIsReported(t *testing.T) {
	srv := newServer(t, &stubService{verifyErr: errs.WrapLevel(errs.Warn, engine.ErrVerifyMismatch, "verify")})

	res := do(t, srv, http.MethodGet, "/cascade/verify/"+validRequestID, "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var out dto.VerifyResponse
	if err := jsoniter.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Valid || out.Reason == "" {
		t.Fatalf("verify response %+v", out)
	}
}

func TestStateAndDesync(t *testing.T) {
	srv := newServer(t, &stubService{})

	res := do(t, srv, http.MethodGet, "/cascade/state", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("state status = %d", res.StatusCode)
	}
	var st dto.StateResponse
	if err := jsoniter.NewDecoder(res.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.SessionID != "s1" || st.Balance != "3.00" || st.Mode != "base" {
		t.Fatalf("state %+v", st)
	}

	res = do(t, srv, http.MethodPost, "/cascade/desync",
		fmt.Sprintf(`{"request_id":%q,"step_index":1,"client_hash":"ab"}`, validRequestID), nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("desync status = %d", res.StatusCode)
	}
}
