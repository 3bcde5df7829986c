package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/bimakw/wallet-indexer/internal/application/services"
)

func TestAskHandler_Ask(t *testing.T) {
	f := setupAPI(t, true)
	f.ingest(t)

	body := `{"question":"How much ETH did I get?","wallet":"` + wallet + `","chain":"ethereum-mainnet"}`
	rec := f.do(t, http.MethodPost, "/api/v1/ai/ask", jsonBody(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp services.AskResponse
	decode(t, rec, &resp)
	if resp.Answer != "You received 1 ETH." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if f.answerer.LastQuestion != "How much ETH did I get?" {
		t.Errorf("unexpected question forwarded: %q", f.answerer.LastQuestion)
	}
	if !strings.Contains(string(f.answerer.LastData), "USDC") {
		t.Error("expected stored events in the model context")
	}
}

func TestAskHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		answerer   bool
		answerErr  error
		body       string
		wantStatus int
	}{
		{"malformed body", true, nil, `{"question":`, http.StatusBadRequest},
		{"empty question", true, nil, `{"question":" ","wallet":"` + wallet + `"}`, http.StatusBadRequest},
		{"unknown chain", true, nil, `{"question":"hi","wallet":"` + wallet + `","chain":"tron"}`, http.StatusBadRequest},
		{"no answerer", false, nil, `{"question":"hi","wallet":"` + wallet + `"}`, http.StatusServiceUnavailable},
		{"model failure", true, errors.New("quota exceeded"), `{"question":"hi","wallet":"` + wallet + `"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupAPI(t, tt.answerer)
			if f.answerer != nil {
				f.answerer.Err = tt.answerErr
			}

			rec := f.do(t, http.MethodPost, "/api/v1/ai/ask", jsonBody(tt.body))
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if errorBody(t, rec) == "" {
				t.Error("expected an error message")
			}
		})
	}
}
