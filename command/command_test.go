package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDispatchRoutesByType(t *testing.T) {
	r := New()
	r.Register(TypeDetectionResult, func(_ context.Context, _ json.RawMessage) (any, error) {
		return map[string]any{"isQualifying": true, "score": 75}, nil
	})

	resp := r.Dispatch(context.Background(), Request{Type: TypeDetectionResult})
	if !resp.OK {
		t.Fatalf("resp = %+v", resp)
	}
	var data struct {
		IsQualifying bool `json:"isQualifying"`
		Score        int  `json:"score"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatal(err)
	}
	if !data.IsQualifying || data.Score != 75 {
		t.Errorf("data = %+v", data)
	}
}

func TestDispatchUnknownTypeIsStructuredFailure(t *testing.T) {
	r := New()
	resp := r.Dispatch(context.Background(), Request{Type: "FORMAT_HARD_DRIVE"})
	if resp.OK {
		t.Fatal("unknown type reported OK")
	}
	if !strings.Contains(resp.Error, "unknown command type") || !strings.Contains(resp.Error, "FORMAT_HARD_DRIVE") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	r := New()
	r.Register(TypeReDetect, func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("page not ready")
	})

	resp := r.Dispatch(context.Background(), Request{Type: TypeReDetect})
	if resp.OK {
		t.Fatal("handler error reported OK")
	}
	if resp.Error != "page not ready" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestDispatchPassesPayload(t *testing.T) {
	r := New()
	var gotBrand string
	r.Register(TypeTriggerSearch, func(_ context.Context, payload json.RawMessage) (any, error) {
		var p struct {
			Brand string `json:"brand"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		gotBrand = p.Brand
		return nil, nil
	})

	resp := r.Dispatch(context.Background(), Request{
		Type:    TypeTriggerSearch,
		Payload: json.RawMessage(`{"brand":"Nike"}`),
	})
	if !resp.OK {
		t.Fatalf("resp = %+v", resp)
	}
	if gotBrand != "Nike" {
		t.Errorf("brand = %q", gotBrand)
	}
}

func TestRegisterReplacesHandler(t *testing.T) {
	r := New()
	r.Register(TypeReDetect, func(context.Context, json.RawMessage) (any, error) {
		return "first", nil
	})
	r.Register(TypeReDetect, func(context.Context, json.RawMessage) (any, error) {
		return "second", nil
	})

	resp := r.Dispatch(context.Background(), Request{Type: TypeReDetect})
	if string(resp.Data) != `"second"` {
		t.Errorf("data = %s", resp.Data)
	}
}

func TestHTTPEndpoint(t *testing.T) {
	router := New()
	router.Register(TypeShowNotification, func(context.Context, json.RawMessage) (any, error) {
		return map[string]string{"state": "displaying"}, nil
	})
	srv := httptest.NewServer(NewHTTPHandler(router))
	defer srv.Close()

	body, _ := json.Marshal(Request{Type: TypeShowNotification})
	resp, err := http.Post(srv.URL+"/v1/commands", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var env Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if !env.OK {
		t.Errorf("env = %+v", env)
	}
}

func TestHTTPUnknownTypeStaysTwoHundred(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(New()))
	defer srv.Close()

	body := strings.NewReader(`{"type":"NOT_A_COMMAND"}`)
	resp, err := http.Post(srv.URL+"/v1/commands", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with envelope failure", resp.StatusCode)
	}
	var env Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatal(err)
	}
	if env.OK || env.Error == "" {
		t.Errorf("env = %+v", env)
	}
}

func TestHTTPBadBody(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(New()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/commands", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
