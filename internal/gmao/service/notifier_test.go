package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JBDLC/GMAO/internal/gmao/entity"
	"github.com/JBDLC/GMAO/internal/gmao/repository"
	"github.com/JBDLC/GMAO/internal/gmao/testutil"
	"github.com/JBDLC/GMAO/internal/shared/feishu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	ch chan Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.ch <- n
	return nil
}

// collect 等待 n 条异步通知
func (r *recordingNotifier) collect(t *testing.T, n int) []Notification {
	t.Helper()
	var got []Notification
	for len(got) < n {
		select {
		case x := <-r.ch:
			got = append(got, x)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d notifications, got %d", n, len(got))
		}
	}
	return got
}

func byEvent(ns []Notification, event string) []Notification {
	var out []Notification
	for _, n := range ns {
		if n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

func TestFeishuNotifier_CardsByEvent(t *testing.T) {
	var got []feishu.BotMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg feishu.BotMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		got = append(got, msg)
		w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer srv.Close()

	n := NewFeishuNotifier(feishu.NewBotClient(srv.URL, ""))
	ctx := context.Background()
	require.NoError(t, n.Notify(ctx, Notification{Event: EventLowStock, EntityID: "prod-1", Message: "FLT-1 in Atelier: 3 left, minimum 5"}))
	require.NoError(t, n.Notify(ctx, Notification{Event: EventCorrectiveRecorded, ActorID: actor, MachineID: "mach-1", EntityID: "corr-1", Message: "corrective maintenance on CMP-1"}))
	require.NoError(t, n.Notify(ctx, Notification{Event: EventMovementApplied, Message: "sortie"}))
	require.Len(t, got, 3)

	low := got[0]
	assert.Equal(t, "interactive", low.MsgType)
	require.NotNil(t, low.Card)
	assert.Equal(t, "red", low.Card.Header.Template)
	assert.Equal(t, "库存告警", low.Card.Header.Title.Content)

	corrective := got[1]
	assert.Equal(t, "interactive", corrective.MsgType)
	require.NotNil(t, corrective.Card)
	assert.Equal(t, "orange", corrective.Card.Header.Template)
	require.Len(t, corrective.Card.Elements, 3)
	assert.Len(t, corrective.Card.Elements[0].Fields, 4)
	note := corrective.Card.Elements[2]
	require.Len(t, note.Elements, 1)
	assert.Equal(t, "corrective maintenance on CMP-1", note.Elements[0].Content)

	text := got[2]
	assert.Equal(t, "text", text.MsgType)
	require.NotNil(t, text.Content)
	assert.Equal(t, "[movement_applied] sortie", text.Content.Text)
}

func TestLowStockAfter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()
	a := testutil.SeedStock(t, db, "Atelier")
	b := testutil.SeedStock(t, db, "Magasin")
	watched := testutil.SeedProduct(t, db, "FLT-1", "2.00", 5)
	plain := testutil.SeedProduct(t, db, "VIS-1", "0.10", 0)
	testutil.SeedQuantity(t, db, a.ID, watched.ID, 4)
	testutil.SeedQuantity(t, db, a.ID, plain.ID, 0)

	m := &entity.Movement{
		Type:          entity.MovementTransfert,
		SourceStockID: &a.ID,
		DestStockID:   &b.ID,
		Items: []entity.MovementItem{
			{ProductID: watched.ID, Quantity: 1},
			{ProductID: plain.ID, Quantity: 1},
			{ProductID: watched.ID, Quantity: 1},
		},
	}
	alerts, err := lowStockAfter(ctx, repos, m)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, watched.ID, alerts[0].ProductID)
	assert.Equal(t, "Atelier", alerts[0].StockName)
	assert.Equal(t, 4, alerts[0].Quantity)
	assert.Equal(t, 1, alerts[0].Missing)

	// 入库没有源库存点
	alerts, err = lowStockAfter(ctx, repos, &entity.Movement{Type: entity.MovementEntree, DestStockID: &a.ID, Items: m.Items})
	require.NoError(t, err)
	assert.Empty(t, alerts)

	alerts, err = lowStockAfter(ctx, repos, nil)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestMovement_SortieBelowMinimumNotifies(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec := &recordingNotifier{ch: make(chan Notification, 8)}
	movements := NewMovementService(db, repository.NewRepositories(db), &MovementEngine{}, zap.NewNop(), newEvents(rec, nil, zap.NewNop()))
	ctx := context.Background()
	stock := testutil.SeedStock(t, db, "Atelier")
	p := testutil.SeedProduct(t, db, "FLT-1", "2.00", 5)
	testutil.SeedQuantity(t, db, stock.ID, p.ID, 8)

	sortie := func(q int) {
		_, err := movements.Create(ctx, actor, MovementInput{
			Type:          entity.MovementSortie,
			SourceStockID: &stock.ID,
			Items:         []MovementItemInput{{ProductID: p.ID, Quantity: q}},
		})
		require.NoError(t, err)
	}

	sortie(2)
	sortie(3)
	got := rec.collect(t, 3)
	assert.Len(t, byEvent(got, EventMovementApplied), 2)
	low := byEvent(got, EventLowStock)
	require.Len(t, low, 1)
	assert.Equal(t, p.ID, low[0].EntityID)
	assert.Contains(t, low[0].Message, "3 left, minimum 5")

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.ch)
}
