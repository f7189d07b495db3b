package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"PawnPrice/internal/domain/models"
)

func TestIdentify(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/identify" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req identifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		if len(req.Images) != 2 || req.Description != "blue case" {
			t.Errorf("request = %+v", req)
		}
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"brand":" Apple ","model":"iPhone 13","category":"Phones & Tablets",
			"condition":"Good","confidence":140,"description_match":false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second, nil, WithRetry(2, time.Millisecond))
	id, err := c.Identify(context.Background(), []string{"aGVsbG8=", "d29ybGQ="}, "blue case")
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if id.Brand != "Apple" || id.Model != "iPhone 13" || id.Confidence != 100 {
		t.Errorf("identification = %+v", id)
	}
	if !id.ConditionClear || id.DescriptionMatch {
		t.Errorf("flags: clear=%v match=%v", id.ConditionClear, id.DescriptionMatch)
	}
}

func TestIdentifyDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"brand":"Acme","model":"X1","confidence":60}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, time.Second, nil).Identify(context.Background(), []string{"x"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if id.Category != models.CategoryUnknown || id.Condition != models.ConditionUnknown {
		t.Errorf("defaults = %+v", id)
	}
}

func TestIdentifyErrors(t *testing.T) {
	if _, err := NewClient("", time.Second, nil).Identify(context.Background(), []string{"x"}, ""); err != ErrNotConfigured {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := NewClient("http://x", time.Second, nil).Identify(context.Background(), nil, ""); err != ErrNoImages {
		t.Errorf("err = %v, want ErrNoImages", err)
	}
}
