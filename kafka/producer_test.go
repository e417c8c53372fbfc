package kafka

import (
	"context"
	"testing"
	"time"
)

func TestProduceTripWithoutConnectionErrors(t *testing.T) {
	cfg := DefaultConfig("cluster1")
	p := NewProducer(&cfg)

	err := p.ProduceTrip(context.Background(), "trips", TripMessage{
		Source:    "CB1",
		Kind:      "breaker",
		Detail:    map[string]string{"state": "OPEN"},
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err == nil {
		t.Fatal("ProduceTrip on a disconnected producer = nil error, want error")
	}
}

func TestProduceGapWithoutConnectionErrors(t *testing.T) {
	cfg := DefaultConfig("cluster1")
	p := NewProducer(&cfg)

	err := p.ProduceGap(context.Background(), "gaps", GapMessage{
		SvID:      "IED1LD0/MSVCB01",
		Expected:  41,
		Got:       43,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err == nil {
		t.Fatal("ProduceGap on a disconnected producer = nil error, want error")
	}
}

func TestProduceTripBatchEmptyIsNoop(t *testing.T) {
	cfg := DefaultConfig("cluster1")
	p := NewProducer(&cfg)

	if err := p.ProduceTripBatch(context.Background(), "trips", nil); err != nil {
		t.Errorf("ProduceTripBatch(nil) = %v, want nil", err)
	}
}

func TestProduceTripWithRetryExhaustsAndReturnsError(t *testing.T) {
	cfg := DefaultConfig("cluster1")
	p := NewProducer(&cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := p.ProduceTripWithRetry(ctx, "trips", TripMessage{Source: "CB1", Kind: "breaker"}, 1, time.Millisecond)
	if err == nil {
		t.Fatal("ProduceTripWithRetry on a disconnected producer = nil error, want error")
	}
}

func TestGetStatsInitiallyZero(t *testing.T) {
	cfg := DefaultConfig("cluster1")
	p := NewProducer(&cfg)

	sent, errs, lastSend := p.GetStats()
	if sent != 0 || errs != 0 || !lastSend.IsZero() {
		t.Errorf("GetStats() = (%d, %d, %v), want (0, 0, zero time)", sent, errs, lastSend)
	}
}

func TestConnectionStatusString(t *testing.T) {
	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusDisconnected, "Disconnected"},
		{StatusConnecting, "Connecting"},
		{StatusConnected, "Connected"},
		{StatusError, "Error"},
		{ConnectionStatus(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("ConnectionStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
