package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"posecam/calibration"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// FirebaseConfig locates the orders collection in a Realtime Database
type FirebaseConfig struct {
	DatabaseURL     string
	OrdersPath      string
	CredentialsFile string
	Timeout         time.Duration
}

// FirebaseStore reads orders and writes poses through the Firebase Admin SDK
type FirebaseStore struct {
	orders  *db.Ref
	path    string
	timeout time.Duration
}

// NewFirebaseStore initializes the Admin SDK and returns a store rooted at
// {DatabaseURL}/{OrdersPath}. With no credentials file the SDK falls back to
// application default credentials. Extra options are passed to the app.
func NewFirebaseStore(ctx context.Context, cfg FirebaseConfig, opts ...option.ClientOption) (*FirebaseStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}

	path := "/" + strings.Trim(cfg.OrdersPath, "/")
	debugMsg("STORE", fmt.Sprintf("Firebase initialized: %s%s", cfg.DatabaseURL, path))
	return &FirebaseStore{
		orders:  client.NewRef(path),
		path:    path,
		timeout: cfg.Timeout,
	}, nil
}

// Fetch reads the whole orders collection. Entries that are not order
// objects are skipped.
func (f *FirebaseStore) Fetch(ctx context.Context) (map[string]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var body json.RawMessage
	if err := f.orders.Get(ctx, &body); err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, f.path, err)
	}

	raw, err := decodeCollection(body)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid orders document: %v", ErrStoreUnavailable, err)
	}

	orders := make(map[string]Order, len(raw))
	for id, msg := range raw {
		var o Order
		if err := json.Unmarshal(msg, &o); err != nil {
			debugMsg("STORE_WARN", fmt.Sprintf("Skipping order %s: %v", id, err), id)
			continue
		}
		orders[id] = o
	}
	return orders, nil
}

// decodeCollection accepts both shapes the database returns for a node:
// an object keyed by child id, or an array when the child keys are
// sequential integers. Array holes come back as null and are dropped.
func decodeCollection(body json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}

	if trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		raw := make(map[string]json.RawMessage, len(list))
		for i, msg := range list {
			if bytes.Equal(bytes.TrimSpace(msg), []byte("null")) {
				continue
			}
			raw[strconv.Itoa(i)] = msg
		}
		return raw, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// WritePose updates orders/{orderID}/pose with the rounded pose
func (f *FirebaseStore) WritePose(ctx context.Context, orderID string, pose calibration.Pose) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	update := map[string]interface{}{"pose": NewPosePayload(pose)}
	if err := f.orders.Child(orderID).Update(ctx, update); err != nil {
		return fmt.Errorf("%w: update %s/%s: %v", ErrStoreUnavailable, f.path, orderID, err)
	}
	debugMsg("STORE", fmt.Sprintf("Wrote pose to %s: %s", orderID, pose), orderID)
	return nil
}
