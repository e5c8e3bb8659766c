package worker

import (
	"testing"
	"time"

	"github.com/fenxiao-next/internal/constants"
	"github.com/fenxiao-next/internal/models"
)

func TestPeriodStartFromZeroFallsBackToCurrentMonth(t *testing.T) {
	got := periodStartFrom(0)
	now := time.Now().UTC()
	if got.Year() != now.Year() || got.Month() != now.Month() {
		t.Fatalf("expected current month start, got %s", got)
	}
	if got.Day() != 1 || got.Hour() != 0 || got.Minute() != 0 {
		t.Fatalf("expected month start boundary, got %s", got)
	}
}

func TestPeriodStartFromNormalizesToMonthStart(t *testing.T) {
	at := time.Date(2026, 3, 17, 14, 30, 0, 0, time.UTC)
	got := periodStartFrom(at.Unix())
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("period start want %s got %s", want, got)
	}
}

func TestConsumerRegisterNilSafe(t *testing.T) {
	var consumer *Consumer
	// nil 消费者或 nil mux 均不应 panic
	consumer.Register(nil)
	NewConsumer(nil).Register(nil)
}

func TestSettleDueCommissionIDs(t *testing.T) {
	now := time.Now()
	rows := []models.Commission{
		{ID: 1, Status: constants.CommissionStatusPending, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: 2, Status: constants.CommissionStatusPaid, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: 3, Status: constants.CommissionStatusPending, CreatedAt: now.Add(-time.Hour)},
		{ID: 4, Status: constants.CommissionStatusPending, CreatedAt: now.Add(-30 * time.Hour)},
	}

	batches := settleDueCommissionIDs(rows, now.Add(-24*time.Hour), 100)
	if len(batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(batches))
	}
	// 已结算与未满持有期的记录都被跳过
	if len(batches[0]) != 2 || batches[0][0] != 1 || batches[0][1] != 4 {
		t.Fatalf("batch ids = %v, want [1 4]", batches[0])
	}
}

func TestSettleDueCommissionIDsBatching(t *testing.T) {
	now := time.Now()
	rows := make([]models.Commission, 0, 5)
	for i := uint(1); i <= 5; i++ {
		rows = append(rows, models.Commission{
			ID:        i,
			Status:    constants.CommissionStatusPending,
			CreatedAt: now.Add(-48 * time.Hour),
		})
	}

	batches := settleDueCommissionIDs(rows, now, 2)
	if len(batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
		t.Fatalf("batch sizes = %d/%d/%d, want 2/2/1", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}
