package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"posecam/calibration"

	"github.com/golang/geo/r3"
)

// newTestStore points the Admin SDK at srv in emulator mode (plain http
// with an ns query parameter), which needs no credentials.
func newTestStore(t *testing.T, url string, timeout time.Duration) *FirebaseStore {
	t.Helper()
	store, err := NewFirebaseStore(context.Background(), FirebaseConfig{
		DatabaseURL: url + "?ns=posecam-test",
		OrdersPath:  "/orders/",
		Timeout:     timeout,
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestFirebaseStoreFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/orders.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("ns"); got != "posecam-test" {
			t.Errorf("ns = %q", got)
		}
		io.WriteString(w, `{
			"o1": {"status": "waiting_pose", "pose_required": true, "items": [{"id": "2"}]},
			"o2": {"status": "done", "pose_required": false, "items": [{"id": 3}]},
			"o3": {"status": "waiting_pose", "pose_required": true, "items": ["loose"]},
			"meta": "not an order"
		}`)
	}))
	defer srv.Close()

	orders, err := newTestStore(t, srv.URL, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3 (non-object skipped)", len(orders))
	}
	if !orders["o1"].WaitingForPose() {
		t.Error("o1 should be waiting for a pose")
	}
	if z, ok := ParseZone(orders["o2"].Items); !ok || z != 3 {
		t.Errorf("numeric item id: zone %d,%v", z, ok)
	}
	if _, ok := ParseZone(orders["o3"].Items); ok || !orders["o3"].WaitingForPose() {
		t.Error("non-object item must keep the order but yield no zone")
	}
}

func TestFirebaseStoreFetchArrayCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"status": "done", "pose_required": false, "items": [{"id": "1"}]},
			null,
			{"status": "waiting_pose", "pose_required": true, "items": [{"id": "2"}]}
		]`)
	}))
	defer srv.Close()

	orders, err := newTestStore(t, srv.URL, time.Second).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2 (null hole dropped)", len(orders))
	}
	if !orders["2"].WaitingForPose() {
		t.Errorf("orders = %+v", orders)
	}

	state := transition(State{}, orders)
	if !state.Armed || state.TargetID != "2" {
		t.Errorf("state = %s", state)
	}
	if z, ok := state.Zone(); !ok || z != 2 {
		t.Errorf("zone = %d,%v", z, ok)
	}
}

func TestDecodeCollection(t *testing.T) {
	tests := []struct {
		name string
		body string
		keys []string
	}{
		{"null", `null`, nil},
		{"empty", ``, nil},
		{"object", `{"a": {}, "b": {}}`, []string{"a", "b"}},
		{"array", `[{}, null, {}]`, []string{"0", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := decodeCollection(json.RawMessage(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if len(raw) != len(tt.keys) {
				t.Fatalf("got %d entries, want %d", len(raw), len(tt.keys))
			}
			for _, k := range tt.keys {
				if _, ok := raw[k]; !ok {
					t.Errorf("missing key %q", k)
				}
			}
		})
	}

	if _, err := decodeCollection(json.RawMessage(`"text"`)); err == nil {
		t.Error("scalar document must fail")
	}
}

func TestFirebaseStoreFetchEmptyCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "null")
	}))
	defer srv.Close()

	orders, err := newTestStore(t, srv.URL, time.Second).Fetch(context.Background())
	if err != nil || len(orders) != 0 {
		t.Errorf("orders = %v, err = %v", orders, err)
	}
}

func TestFirebaseStoreWritePose(t *testing.T) {
	var gotPath, gotMethod string
	var body map[string]PosePayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pose := calibration.Pose{
		Position: r3.Vector{X: 12.3456, Y: -7.891, Z: 206.2},
		Roll:     180.004, Pitch: 0, Yaw: 45.556,
	}
	if err := newTestStore(t, srv.URL, time.Second).WritePose(context.Background(), "order-1", pose); err != nil {
		t.Fatal(err)
	}

	if gotMethod != http.MethodPatch || gotPath != "/orders/order-1.json" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	p, ok := body["pose"]
	if !ok || p.Type != "coords" {
		t.Fatalf("body = %+v", body)
	}
	want := [6]float64{12.35, -7.89, 206.2, 180, 0, 45.56}
	if p.Values != want {
		t.Errorf("values = %v, want %v", p.Values, want)
	}
}

func TestFirebaseStoreErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Permission denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := newTestStore(t, srv.URL, time.Second)
	if _, err := store.Fetch(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("fetch err = %v", err)
	}
	if err := store.WritePose(context.Background(), "o", calibration.Pose{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("write err = %v", err)
	}
}

func TestFirebaseStoreUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestStore(t, url, 200*time.Millisecond).Fetch(context.Background())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestMemoryStoreWritePoseRounds(t *testing.T) {
	m := NewMemoryStore()
	pose := calibration.Pose{Position: r3.Vector{X: 1.5, Y: 2.994, Z: 3}}
	if err := m.WritePose(context.Background(), "o", pose); err != nil {
		t.Fatal(err)
	}
	p, ok := m.Pose("o")
	if !ok || p.Values[1] != 2.99 || p.Values[2] != 3 {
		t.Errorf("pose = %+v", p)
	}
}
