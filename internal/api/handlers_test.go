package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siamwms/asrsd/internal/status"
	"github.com/siamwms/asrsd/internal/store"
	"github.com/siamwms/asrsd/pkg/wms"
)

type fakeMover struct {
	resetErr   error
	resetCalls int
}

func (f *fakeMover) ResetCommand(ctx context.Context) error {
	f.resetCalls++
	return f.resetErr
}

type fakeScanner struct {
	resetCalls int
}

func (f *fakeScanner) ResetState() { f.resetCalls++ }

func setupServer(t *testing.T) (*gin.Engine, *store.Store, *fakeMover, *fakeScanner, *redis.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.UpsertShelf(ctx, wms.Shelf{ID: 1, Column: 3, Row: 12, CanUse: true}))
	require.NoError(t, st.UpsertShelf(ctx, wms.Shelf{ID: 2, Column: 4, Row: 1, CanUse: false}))
	require.NoError(t, st.UpsertMapping(ctx, "5", 1))
	require.NoError(t, st.UpsertMapping(ctx, "6", 2))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	mover := &fakeMover{}
	scanner := &fakeScanner{}
	srv := NewServer(st, mover, scanner, rdb, "wh1")
	return srv.Router(), st, mover, scanner, rdb
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPickEnqueues(t *testing.T) {
	router, st, _, _, _ := setupServer(t)

	w := doJSON(t, router, http.MethodPost, "/wms/pick", `{"basket_id":"b5"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp pickResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "B000000005", resp.BasketID)
	assert.Equal(t, int64(1), resp.ShelfID)
	assert.Equal(t, 3, resp.X)
	assert.Equal(t, 12, resp.Y)
	assert.Equal(t, "enqueued", resp.Message)
	assert.NotZero(t, resp.QueueID)

	picks, _, err := st.NextWindow(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, picks, 1)
	assert.Equal(t, "B000000005", picks[0].Basket)
}

func TestPickByNumber(t *testing.T) {
	router, _, _, _, _ := setupServer(t)

	w := doJSON(t, router, http.MethodPost, "/wms/pick/5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp pickResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "B000000005", resp.BasketID)
}

func TestPickRejections(t *testing.T) {
	router, _, _, _, _ := setupServer(t)

	t.Run("unmapped basket", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/wms/pick", `{"basket_id":"B000000099"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unusable shelf", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/wms/pick", `{"basket_id":"6"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed basket", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/wms/pick", `{"basket_id":"XYZ"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/wms/pick", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBasketStatus(t *testing.T) {
	router, st, _, _, _ := setupServer(t)
	ctx := context.Background()

	_, err := st.MovePut(ctx, 1, "B000000005", false)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/wms/status/basket/5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp basketStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "B000000005", resp.BasketID)
	require.NotNil(t, resp.MappedShelfID)
	assert.Equal(t, int64(1), *resp.MappedShelfID)
	require.NotNil(t, resp.MappedXYZ)
	assert.Equal(t, [3]int{3, 12, 0}, *resp.MappedXYZ)
	require.NotNil(t, resp.OccupiedShelfID)
	assert.Equal(t, int64(1), *resp.OccupiedShelfID)
}

func TestBasketStatusUnknownBasket(t *testing.T) {
	router, _, _, _, _ := setupServer(t)

	w := doJSON(t, router, http.MethodGet, "/wms/status/basket/99", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp basketStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.MappedShelfID)
	assert.Nil(t, resp.OccupiedShelfID)
}

func TestNormalize(t *testing.T) {
	router, _, _, _, _ := setupServer(t)

	w := doJSON(t, router, http.MethodGet, "/wms/normalize/b5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"basket_id":"B000000005"}`, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/wms/normalize/9999999999", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistory(t *testing.T) {
	router, st, _, _, _ := setupServer(t)
	ctx := context.Background()

	_, err := st.MovePut(ctx, 1, "B000000005", false)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodGet, "/wms/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		History []wms.OperationRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.History, 1)
	assert.Equal(t, wms.MethodPut, resp.History[0].Operation)

	w = doJSON(t, router, http.MethodGet, "/wms/history?limit=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetQueue(t *testing.T) {
	router, st, _, _, _ := setupServer(t)
	ctx := context.Background()

	_, err := st.EnqueuePick(ctx, "5", 3, 12, 0)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/wms/reset/queue", "")
	require.Equal(t, http.StatusOK, w.Code)

	picks, _, err := st.NextWindow(ctx, 20)
	require.NoError(t, err)
	assert.Empty(t, picks)
}

func TestResetSystem(t *testing.T) {
	router, _, mover, scanner, _ := setupServer(t)

	w := doJSON(t, router, http.MethodPost, "/wms/reset/system", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, 1, mover.resetCalls)
	assert.Equal(t, 1, scanner.resetCalls)
}

func TestResetSystemPartialFailure(t *testing.T) {
	router, _, mover, _, _ := setupServer(t)
	mover.resetErr = assert.AnError

	w := doJSON(t, router, http.MethodPost, "/wms/reset/system", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "partial", resp["status"])
}

func TestStatusSocketStreamsSnapshots(t *testing.T) {
	router, _, _, _, rdb := setupServer(t)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status/system"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler's subscription a moment to register, then publish.
	ctx := context.Background()
	snap := status.Snapshot{Ready: true, AutoMode: true}
	payload, err := json.Marshal(snap)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := rdb.Publish(ctx, status.Channel("wh1"), payload).Result()
		return err == nil && n > 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got status.Snapshot
	require.NoError(t, conn.ReadJSON(&got))
	assert.True(t, got.Ready)
	assert.True(t, got.AutoMode)
	assert.False(t, got.Alarm)
}
