package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/novaboard/lineplan/planner/scheduling"
)

func authStub(t *testing.T, token string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("login body: %v", err)
		}
		if creds["username"] != "arke" {
			t.Errorf("login username = %q", creds["username"])
		}
		json.NewEncoder(w).Encode(map[string]string{"accessToken": token})
	}
}

func TestClientLogsInLazily(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		authStub(t, "tok-1")(w, r)
	})
	mux.HandleFunc("GET /api/sales/order/_active", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "arke", "arke")
	if _, err := c.ListSalesOrders(context.Background(), scheduling.OrderAccepted); err != nil {
		t.Fatalf("ListSalesOrders: %v", err)
	}
	if _, err := c.ListSalesOrders(context.Background(), scheduling.OrderAccepted); err != nil {
		t.Fatalf("second ListSalesOrders: %v", err)
	}
	if logins.Load() != 1 {
		t.Errorf("logged in %d times, want 1", logins.Load())
	}
}

func TestClientRefreshesExpiredToken(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		n := logins.Add(1)
		token := "stale"
		if n > 1 {
			token = "fresh"
		}
		json.NewEncoder(w).Encode(map[string]string{"accessToken": token})
	})
	mux.HandleFunc("GET /api/product/production/po-1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id":"po-1","lot":"PO-001","quantity":2,"status":"draft"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "arke", "arke")
	po, err := c.GetProductionOrder(context.Background(), "po-1")
	if err != nil {
		t.Fatalf("GetProductionOrder: %v", err)
	}
	if po.InternalID != "PO-001" {
		t.Errorf("po = %+v", po)
	}
	if logins.Load() != 2 {
		t.Errorf("logged in %d times, want 2 (initial + refresh)", logins.Load())
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", authStub(t, "tok"))
	mux.HandleFunc("DELETE /api/product/production/po-9", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "arke", "arke")
	if err := c.DeleteProductionOrder(context.Background(), "po-9"); err != nil {
		t.Fatalf("DeleteProductionOrder after retries: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("endpoint hit %d times, want 3", hits.Load())
	}
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", authStub(t, "tok"))
	mux.HandleFunc("GET /api/product/product", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "arke", "arke")
	_, err := c.GetProducts(context.Background())
	if !IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
	if hits.Load() != maxAttempts {
		t.Errorf("endpoint hit %d times, want %d", hits.Load(), maxAttempts)
	}
}

func TestClientDoesNotRetryPermanentFailures(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", authStub(t, "tok"))
	mux.HandleFunc("GET /api/sales/order/so-404", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "arke", "arke")
	_, err := c.GetSalesOrder(context.Background(), "so-404")
	if !IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
	if hits.Load() != 1 {
		t.Errorf("endpoint hit %d times, want 1", hits.Load())
	}
}

func TestListSalesOrdersParsing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", authStub(t, "tok"))
	mux.HandleFunc("GET /api/sales/order/_active", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"uuid-so-005","internal_id":"SO-005","status":"accepted","priority":1,
			 "expected_shipping_time":"2026-03-08T08:00:00Z","notes":"Priority escalated from P3",
			 "customer_attr":{"id":"cust-smar","name":"SmartHome IoT"},
			 "products":[{"extra_id":"IOT-200","name":"IOT-200","quantity":10}]},
			{"id":"uuid-so-099","internal_id":"SO-099","status":"completed","priority":2,
			 "expected_shipping_time":"2026-03-01T08:00:00Z",
			 "customer_attr":{"id":"cust-x","name":"TechFlex"},
			 "products":[{"extra_id":"PCB-PWR-500","quantity":1}]}
		]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "arke", "arke")
	orders, err := c.ListSalesOrders(context.Background(), scheduling.OrderAccepted)
	if err != nil {
		t.Fatalf("ListSalesOrders: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d accepted orders, want 1 (completed filtered out)", len(orders))
	}
	so := orders[0]
	if so.InternalID != "SO-005" || so.ProductCode != "IOT-200" || so.Quantity != 10 {
		t.Errorf("parsed order = %+v", so)
	}
	if !so.Deadline.Equal(time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("deadline = %v", so.Deadline)
	}
	if so.Customer.Name != "SmartHome IoT" {
		t.Errorf("customer = %+v", so.Customer)
	}
}

func TestProductionOrderParsing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", authStub(t, "tok"))
	mux.HandleFunc("GET /api/product/production/po-7", func(w http.ResponseWriter, r *http.Request) {
		// Phases arrive out of order and under mixed name nesting; the
		// PO window disagrees with the dated phases.
		w.Write([]byte(`{
			"id":"po-7","lot":"PO-007","product_id":"pid-iot","product_internal_id":"IOT-200",
			"quantity":10,"status":"scheduled",
			"starts_at":"2026-03-01T00:00:00Z","ends_at":"2026-03-20T00:00:00Z",
			"phases":[
				{"id":"ph-2","phase":{"name":"Reflow"},"status":"not_ready",
				 "starts_at":"2026-03-02T11:00:00Z","ends_at":"2026-03-02T13:00:00Z"},
				{"id":"ph-1","name":"SMT","status":"not_ready",
				 "starts_at":"2026-03-02T08:00:00Z","ends_at":"2026-03-02T11:00:00Z"},
				{"id":"ph-x","status":"not_ready"}
			]
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, "arke", "arke")
	po, err := c.GetProductionOrder(context.Background(), "po-7")
	if err != nil {
		t.Fatalf("GetProductionOrder: %v", err)
	}
	if len(po.Phases) != 2 {
		t.Fatalf("parsed %d phases, want 2 (nameless dropped)", len(po.Phases))
	}
	if po.Phases[0].Type != scheduling.PhaseSMT || po.Phases[1].Type != scheduling.PhaseReflow {
		t.Errorf("phases out of canonical order: %v, %v", po.Phases[0].Type, po.Phases[1].Type)
	}
	// Window derived from dated phases, not the PO's own fields.
	if !po.Start.Equal(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)) ||
		!po.End.Equal(time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("window = [%v, %v]", po.Start, po.End)
	}
}
