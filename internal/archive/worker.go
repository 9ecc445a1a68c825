// Package archive guarda no object storage o snapshot final de cada mercado liquidado,
// a partir dos eventos resolved e cancelled do tópico de mercado.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/events"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, meta map[string]string) error
}

// Resultados por mensagem
const (
	ResultArchived = "archived"
	ResultIgnored  = "ignored"
	ResultInvalid  = "invalid"
	ResultDLQ      = "dlq"
)

var errInvalidSnapshot = errors.New("archive: invalid snapshot")

type Worker struct {
	Log     *zap.Logger
	Reader  MessageReader
	Store   BlobStore
	DLQ     MessageWriter // nil descarta o que falhar
	Retries int
	Backoff time.Duration

	snapshots *prometheus.CounterVec
}

func NewWorker(log *zap.Logger, r MessageReader, store BlobStore, dlq MessageWriter, reg prometheus.Registerer) *Worker {
	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_snapshots_total",
		Help: "mensagens de mercado processadas pelo arquivador por resultado",
	}, []string{"result"})
	reg.MustRegister(snapshots)
	return &Worker{Log: log, Reader: r, Store: store, DLQ: dlq, Retries: 3, Backoff: 300 * time.Millisecond, snapshots: snapshots}
}

// ObjectKey é onde o snapshot de um mercado terminal fica guardado.
func ObjectKey(market string, status accounts.Status) string {
	return fmt.Sprintf("markets/%s/%s.bin", market, status)
}

// Run consome até ctx terminar. O offset só é confirmado depois do upload ou do envio à DLQ.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			time.Sleep(500 * time.Millisecond)
			continue
		}

		result := w.Handle(ctx, msg)
		w.snapshots.WithLabelValues(result).Inc()

		if err := w.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// Handle processa uma mensagem e devolve o resultado para métrica.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) string {
	h, err := events.PeekHeader(msg.Value)
	if err != nil {
		w.Log.Warn("invalid message", zap.Error(err))
		w.deadLetter(ctx, msg, err)
		return ResultInvalid
	}
	if h.Type != events.TypeResolved && h.Type != events.TypeCancelled {
		return ResultIgnored
	}

	m, data, err := snapshotOf(h.Type, msg.Value)
	if err != nil {
		w.Log.Warn("invalid snapshot", zap.String("market", h.Market), zap.Error(err))
		w.deadLetter(ctx, msg, err)
		return ResultInvalid
	}

	key := ObjectKey(h.Market, m.Status)
	meta := map[string]string{"event-id": h.EventID, "event-type": string(h.Type)}

	err = w.Store.Put(ctx, key, data, meta)
	for i := 0; err != nil && i < w.Retries; i++ {
		select {
		case <-ctx.Done():
			return ResultDLQ
		case <-time.After(w.Backoff * time.Duration(i+1)):
		}
		err = w.Store.Put(ctx, key, data, meta)
	}
	if err != nil {
		w.Log.Error("snapshot upload failed", zap.String("key", key), zap.Error(err))
		w.deadLetter(ctx, msg, err)
		return ResultDLQ
	}

	w.Log.Info("snapshot archived", zap.String("key", key))
	return ResultArchived
}

// snapshotOf decodifica o Market do evento e confere que bate com o tipo do evento.
// Devolve também os bytes validados, que são os enviados ao bucket.
func snapshotOf(t events.Type, payload []byte) (*accounts.Market, []byte, error) {
	var (
		raw  []byte
		want accounts.Status
	)
	switch t {
	case events.TypeResolved:
		var ev events.Resolved
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, nil, err
		}
		raw, want = ev.Snapshot, accounts.StatusResolved
	case events.TypeCancelled:
		var ev events.Cancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, nil, err
		}
		raw, want = ev.Snapshot, accounts.StatusCancelled
	}
	m, err := accounts.DecodeMarket(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errInvalidSnapshot, err)
	}
	if m.Status != want {
		return nil, nil, fmt.Errorf("%w: %s event carries %s market", errInvalidSnapshot, t, m.Status)
	}
	return m, raw, nil
}

func (w *Worker) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if w.DLQ == nil {
		return
	}
	out := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: []kafka.Header{
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "source-topic", Value: []byte(msg.Topic)},
		},
		Time: time.Now(),
	}
	if err := w.DLQ.WriteMessages(ctx, out); err != nil {
		w.Log.Error("dlq write failed", zap.Error(err))
	}
}
