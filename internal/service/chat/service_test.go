package chat_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/z-pharmacy/backend/internal/model/chat"
	chat "github.com/zhouzirui/z-pharmacy/backend/internal/service/chat"
)

func TestSaveMessageCreatesSession(t *testing.T) {
	svc := chat.NewService(0)
	ctx := context.Background()

	require.NoError(t, svc.SaveMessage(ctx, model.Message{SessionID: "s1", Sender: model.SenderUser, Content: "ibuprofen"}))
	require.NoError(t, svc.SaveMessage(ctx, model.Message{SessionID: "s1", Sender: model.SenderAssistant, Content: "I found Ibuprofen 200mg"}))

	session, err := svc.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.Turns)
	assert.False(t, session.CreatedAt.IsZero())

	transcript, err := svc.LoadTranscript(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.NotEmpty(t, transcript[0].ID)
	assert.Equal(t, "ibuprofen", transcript[0].Content)
}

func TestSaveMessageRequiresSession(t *testing.T) {
	svc := chat.NewService(0)
	assert.ErrorIs(t, svc.SaveMessage(context.Background(), model.Message{Content: "hi"}), chat.ErrSessionRequired)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService(0)
	ctx := context.Background()

	_, err := svc.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	_, err = svc.LoadTranscript(ctx, "missing")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestTranscriptIsBounded(t *testing.T) {
	svc := chat.NewService(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.SaveMessage(ctx, model.Message{SessionID: "s", Sender: model.SenderUser, Content: fmt.Sprint(i)}))
	}

	transcript, err := svc.LoadTranscript(ctx, "s")
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, "2", transcript[0].Content)
	assert.Equal(t, "4", transcript[2].Content)

	session, err := svc.GetSession(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 5, session.Turns)

	svc.Forget(ctx, "s")
	_, err = svc.GetSession(ctx, "s")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestRecordTurn(t *testing.T) {
	svc := chat.NewService(0)
	ctx := context.Background()
	require.NoError(t, svc.RecordTurn(ctx, "s", "show my cart", "Your cart is empty.", "pharmacy", "view_cart"))

	transcript, err := svc.LoadTranscript(ctx, "s")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, model.SenderUser, transcript[0].Sender)
	assert.Equal(t, "view_cart", transcript[1].Branch)
}
